package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_DebugShowsDetails(t *testing.T) {
	err := New(ErrCodeCustomIDMismatch, "does not match", errors.New("regex")).
		WithDetail("inventory", "inv-1")

	assert.NotContains(t, FormatForUser(err, false), "inv-1")
	out := FormatForUser(err, true)
	assert.Contains(t, out, "inventory: inv-1")
	assert.Contains(t, out, "cause: regex")
}

func TestFormatJSON_OmitsCause(t *testing.T) {
	err := IOError("query inventories", errors.New("SELECT * FROM secret"))

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeStoreUnavailable, decoded["code"])
	assert.NotContains(t, string(data), "secret")
}

func TestToJSON_PlainErrorBecomesInternal(t *testing.T) {
	je := ToJSON(errors.New("boom"))

	assert.Equal(t, ErrCodeInternal, je.Code)
	assert.Equal(t, "internal error", je.Message)
}

func TestLogAttrs(t *testing.T) {
	attrs := LogAttrs(New(ErrCodeNotFound, "missing", nil).WithDetail("id", "7"))

	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, a.Key)
	}
	assert.Contains(t, keys, "error_code")
	assert.Contains(t, keys, "detail_id")
	assert.Nil(t, LogAttrs(nil))
}
