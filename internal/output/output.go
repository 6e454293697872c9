// Package output provides consistent CLI output: styled text on a terminal,
// plain text in pipes and JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/invsearch/internal/search"
)

// Format selects how results are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: text, json)", s)
}

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	format Format
	styles Styles
}

// New creates a text Writer. Color is used only when out is a terminal.
func New(out io.Writer) *Writer {
	return NewWithFormat(out, FormatText)
}

// NewWithFormat creates a Writer for the given format.
func NewWithFormat(out io.Writer, format Format) *Writer {
	styles := NoColorStyles()
	if format == FormatText && IsTerminal(out) {
		styles = DefaultStyles()
	}
	return &Writer{out: out, format: format, styles: styles}
}

// IsTerminal reports whether w is a terminal. Non-file writers never are.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Format returns the output format.
func (w *Writer) Format() Format { return w.format }

// Status prints a message with an icon. Write errors are ignored for
// console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with a checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✅"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("⚠️ "), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("❌"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold section title.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KeyValue prints an aligned label and value.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-16s", key+":")), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Emit writes v as JSON in JSON mode; otherwise it calls text.
func (w *Writer) Emit(v any, text func()) error {
	if w.format == FormatJSON {
		return w.JSON(v)
	}
	text()
	return nil
}

// SearchResult renders a search result set.
func (w *Writer) SearchResult(res *search.Result) error {
	return w.Emit(res, func() {
		if res.Empty() {
			w.Warningf("No results for %q", res.Query)
			return
		}
		if len(res.Inventories) > 0 {
			w.Header(fmt.Sprintf("Inventories (%d)", len(res.Inventories)))
			for _, inv := range res.Inventories {
				_, _ = fmt.Fprintf(w.out, "  %s  %s %s\n",
					w.styles.ID.Render(inv.Title),
					w.styles.Dim.Render(inv.ID.String()),
					w.styles.Score.Render(fmt.Sprintf("%.3f", inv.Score)))
				if inv.Snippet != "" {
					_, _ = fmt.Fprintf(w.out, "    %s\n", inv.Snippet)
				}
			}
			w.Newline()
		}
		if len(res.Items) > 0 {
			w.Header(fmt.Sprintf("Items (%d)", len(res.Items)))
			for _, it := range res.Items {
				inventory := it.InventoryTitle
				if inventory == "" {
					inventory = it.InventoryID.String()
				}
				_, _ = fmt.Fprintf(w.out, "  %s  %s %s\n",
					w.styles.ID.Render(it.CustomID),
					w.styles.Label.Render("in "+inventory),
					w.styles.Score.Render(fmt.Sprintf("%.3f", it.Score)))
				if it.Snippet != "" {
					_, _ = fmt.Fprintf(w.out, "    %s\n", it.Snippet)
				}
			}
		}
	})
}
