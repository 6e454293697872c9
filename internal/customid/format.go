package customid

import (
	"fmt"
	"strconv"
	"strings"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/store"
)

// Default formats, used when an element has none or its format is malformed.
const (
	DefaultSequenceFormat = "D"
	DefaultDateTimeFormat = "yyyyMMddHHmmss"
	DefaultGuidFormat     = "N"
)

const maxSequenceWidth = 18

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokDigits
	tokHex
	tokMeridiem
)

// source names the value a digits token renders.
type source int

const (
	srcSequence source = iota
	srcYear
	srcYear2
	srcMonth
	srcDay
	srcHour24
	srcHour12
	srcMinute
	srcSecond
	srcFraction
	srcRandom6
	srcRandom9
	srcRandom20
	srcRandom32
)

// token is the unit shared by rendering and pattern compilation.
//
//	tokLiteral:  text
//	tokDigits:   a decimal value from src, zero-padded to min digits; the
//	             pattern accepts min..max digits, max 0 meaning unbounded
//	tokHex:      width hex digits of the element's GUID starting at offset
//	tokMeridiem: AM/PM, or A/P when short
type token struct {
	kind   tokenKind
	text   string
	src    source
	min    int
	max    int
	width  int
	offset int
	short  bool
}

func literal(s string) token { return token{kind: tokLiteral, text: s} }

func digits(src source, min, max int) token {
	return token{kind: tokDigits, src: src, min: min, max: max}
}

func hexGroup(width, offset int) token { return token{kind: tokHex, width: width, offset: offset} }

// compileElement turns one template element into tokens. A malformed format
// falls back to the kind's default; an unknown kind is an error.
func compileElement(el *store.Element) ([]token, error) {
	switch el.Kind {
	case store.KindFixedText:
		if el.Text == "" {
			return nil, nil
		}
		return []token{literal(el.Text)}, nil
	case store.KindSequence:
		return sequenceTokens(el.Format), nil
	case store.KindDateTime:
		return dateTimeTokens(el.Format), nil
	case store.KindGuid:
		return guidTokens(el.Format), nil
	case store.KindRandom6Digits:
		return []token{digits(srcRandom6, 6, 6)}, nil
	case store.KindRandom9Digits:
		return []token{digits(srcRandom9, 9, 9)}, nil
	case store.KindRandom20Bit:
		return []token{digits(srcRandom20, 1, 7)}, nil
	case store.KindRandom32Bit:
		return []token{digits(srcRandom32, 1, 10)}, nil
	default:
		return nil, apperr.New(apperr.ErrCodeUnsupportedElement,
			fmt.Sprintf("unsupported custom ID element kind %q", el.Kind), nil).
			WithDetail("element_id", strconv.FormatInt(el.ID, 10)).
			WithDetail("kind", string(el.Kind))
	}
}

// sequenceTokens accepts "D" (unpadded), "Dn"/"dn" (at least n digits) and
// "000…" (at least as many digits as zeros). Wider values are never
// truncated, so the pattern has no upper bound.
func sequenceTokens(format string) []token {
	width, ok := parseSequenceWidth(strings.TrimSpace(format))
	if !ok {
		width, _ = parseSequenceWidth(DefaultSequenceFormat)
	}
	return []token{digits(srcSequence, width, 0)}
}

func parseSequenceWidth(format string) (int, bool) {
	if format == "" {
		return 1, true
	}
	if format[0] == 'D' || format[0] == 'd' {
		if len(format) == 1 {
			return 1, true
		}
		n, err := strconv.Atoi(format[1:])
		if err != nil || n < 1 || n > maxSequenceWidth || format[1] == '+' {
			return 0, false
		}
		return n, true
	}
	if strings.Trim(format, "0") == "" && len(format) <= maxSequenceWidth {
		return len(format), true
	}
	return 0, false
}

// guidTokens maps N, D, B and P onto hex groups of one GUID.
func guidTokens(format string) []token {
	dashed := []token{
		hexGroup(8, 0), literal("-"), hexGroup(4, 8), literal("-"), hexGroup(4, 12),
		literal("-"), hexGroup(4, 16), literal("-"), hexGroup(12, 20),
	}
	switch strings.ToUpper(strings.TrimSpace(format)) {
	case "D":
		return dashed
	case "B":
		return append(append([]token{literal("{")}, dashed...), literal("}"))
	case "P":
		return append(append([]token{literal("(")}, dashed...), literal(")"))
	default:
		return []token{hexGroup(32, 0)}
	}
}

func dateTimeTokens(format string) []token {
	if format == "" {
		format = DefaultDateTimeFormat
	}
	toks, ok := parseDateTime(format)
	if !ok {
		toks, _ = parseDateTime(DefaultDateTimeFormat)
	}
	return toks
}

// parseDateTime understands yyyy yy MM M dd d HH H hh h mm m ss s, f to
// fffffff, tt and t, quoted literals and backslash escapes. Any other
// character is literal. Runs longer than a token's widest form use the
// widest form. An unterminated quote or trailing backslash is malformed.
func parseDateTime(format string) ([]token, bool) {
	rs := []rune(format)
	var out []token
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, literal(lit.String()))
			lit.Reset()
		}
	}

	for i := 0; i < len(rs); {
		c := rs[i]
		run := 1
		for i+run < len(rs) && rs[i+run] == c {
			run++
		}

		switch c {
		case '\'', '"':
			end := i + 1
			for end < len(rs) && rs[end] != c {
				end++
			}
			if end >= len(rs) {
				return nil, false
			}
			lit.WriteString(string(rs[i+1 : end]))
			i = end + 1
			continue
		case '\\':
			if i+1 >= len(rs) {
				return nil, false
			}
			lit.WriteRune(rs[i+1])
			i += 2
			continue
		}

		tok, ok := dateToken(c, run)
		if !ok {
			lit.WriteRune(c)
			i++
			continue
		}
		flush()
		out = append(out, tok)
		i += run
	}
	flush()
	return out, len(out) > 0
}

func dateToken(c rune, run int) (token, bool) {
	pair := func(src source) token {
		if run >= 2 {
			return digits(src, 2, 2)
		}
		return digits(src, 1, 2)
	}
	switch c {
	case 'y':
		switch {
		case run == 1:
			return digits(srcYear2, 1, 2), true
		case run == 2:
			return digits(srcYear2, 2, 2), true
		default:
			width := min(run, 4)
			return digits(srcYear, width, 4), true
		}
	case 'M':
		return pair(srcMonth), true
	case 'd':
		return pair(srcDay), true
	case 'H':
		return pair(srcHour24), true
	case 'h':
		return pair(srcHour12), true
	case 'm':
		return pair(srcMinute), true
	case 's':
		return pair(srcSecond), true
	case 'f':
		n := min(run, 7)
		return digits(srcFraction, n, n), true
	case 't':
		return token{kind: tokMeridiem, short: run == 1}, true
	}
	return token{}, false
}
