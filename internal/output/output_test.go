package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/invsearch/internal/search"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Rebuilding index...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Rebuilding index...\n", buf.String())
}

func TestWriter_StatusWithoutIconIsIndented(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_LevelsUseIcons(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("indexed %d documents", 3)
	w.Warning("index was rebuilt")
	w.Errorf("failed: %s", "boom")

	out := buf.String()
	assert.Contains(t, out, "✅ indexed 3 documents")
	assert.Contains(t, out, "⚠️")
	assert.Contains(t, out, "❌ failed: boom")
}

func TestWriter_BufferIsNeverATerminal(t *testing.T) {
	// Given: a non-file writer
	buf := &bytes.Buffer{}

	// Then: no ANSI escapes are emitted
	w := New(buf)
	w.Header("Inventories")
	assert.False(t, IsTerminal(buf))
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestWriter_KeyValueAligns(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).KeyValue("backend", "sqlite")

	assert.Equal(t, "  backend:         sqlite\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func sampleResult() *search.Result {
	invID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return &search.Result{
		Query: "red",
		Inventories: []search.InventoryHit{
			{ID: invID, Title: "Paint", Snippet: "Leftover paint", Score: 1.5},
		},
		Items: []search.ItemHit{
			{ID: uuid.New(), InventoryID: invID, InventoryTitle: "Paint", CustomID: "INV-0001", Snippet: "Red Color Red", Score: 0.75},
		},
	}
}

func TestWriter_SearchResultText(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).SearchResult(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Inventories (1)")
	assert.Contains(t, out, "Paint  6ba7b810-9dad-11d1-80b4-00c04fd430c8 1.500")
	assert.Contains(t, out, "Items (1)")
	assert.Contains(t, out, "INV-0001  in Paint 0.750")
	assert.Contains(t, out, "    Red Color Red")
}

func TestWriter_SearchResultJSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewWithFormat(buf, FormatJSON).SearchResult(sampleResult()))

	var got search.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "INV-0001", got.Items[0].CustomID)
}

func TestWriter_EmptySearchResult(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).SearchResult(&search.Result{Query: "nothing"}))

	assert.Contains(t, buf.String(), `No results for "nothing"`)
}
