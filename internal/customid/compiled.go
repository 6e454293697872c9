package customid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/store"
)

// Template is a compiled custom-ID template. It is immutable and safe for
// concurrent use.
type Template struct {
	elements    [][]token
	pattern     *regexp.Regexp
	hasSequence bool
	fingerprint string
}

// Compile compiles ordered template elements. An empty template returns
// ErrTemplateNotConfigured.
func Compile(elements []*store.Element) (*Template, error) {
	if len(elements) == 0 {
		return nil, apperr.ErrTemplateNotConfigured
	}
	t := &Template{
		elements:    make([][]token, 0, len(elements)),
		fingerprint: Fingerprint(elements),
	}

	var flat []token
	for _, el := range elements {
		toks, err := compileElement(el)
		if err != nil {
			return nil, err
		}
		t.elements = append(t.elements, toks)
		flat = append(flat, toks...)
		if el.Kind == store.KindSequence {
			t.hasSequence = true
		}
	}

	// The first sequence value is captured so supplied IDs keep their
	// number, but only when its digits cannot shift into a neighbour.
	capture := sequenceCapture(flat)
	var re strings.Builder
	re.WriteString("^")
	for i, tok := range flat {
		p := tokenPattern(tok)
		if i == capture {
			p = "(?P<seq>" + p + ")"
		}
		re.WriteString(p)
	}
	re.WriteString("$")

	pattern, err := regexp.Compile(re.String())
	if err != nil {
		return nil, apperr.InternalError("failed to compile custom ID pattern", err)
	}
	t.pattern = pattern
	return t, nil
}

// Fingerprint identifies the ordered element definitions. Any edit,
// including a reorder, changes it.
func Fingerprint(elements []*store.Element) string {
	h := sha256.New()
	for _, el := range elements {
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00%s\x01", el.Position, el.Kind, el.Text, el.Format)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HasSequence reports whether rendering needs a sequence number.
func (t *Template) HasSequence() bool { return t.hasSequence }

// Pattern returns the anchored regular expression matching every ID the
// template can render.
func (t *Template) Pattern() string { return t.pattern.String() }

// Matches reports whether candidate could have been produced by the template.
func (t *Template) Matches(candidate string) bool {
	return t.pattern.MatchString(candidate)
}

// SequenceOf extracts the sequence number from a matching candidate.
func (t *Template) SequenceOf(candidate string) (int64, bool) {
	if !t.hasSequence {
		return 0, false
	}
	m := t.pattern.FindStringSubmatch(candidate)
	idx := t.pattern.SubexpIndex("seq")
	if m == nil || idx < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(m[idx], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Render produces an identifier at now using seq for Sequence elements.
// Random and GUID values are drawn per element.
func (t *Template) Render(now time.Time, seq int64) (string, error) {
	now = now.UTC()
	var b strings.Builder
	for _, toks := range t.elements {
		var guid string
		for _, tok := range toks {
			switch tok.kind {
			case tokLiteral:
				b.WriteString(tok.text)
			case tokHex:
				if guid == "" {
					u, err := uuid.NewRandom()
					if err != nil {
						return "", apperr.InternalError("failed to generate GUID", err)
					}
					guid = strings.ReplaceAll(u.String(), "-", "")
				}
				b.WriteString(guid[tok.offset : tok.offset+tok.width])
			case tokMeridiem:
				b.WriteString(meridiem(now, tok.short))
			case tokDigits:
				v, err := value(tok, now, seq)
				if err != nil {
					return "", err
				}
				s := strconv.FormatUint(v, 10)
				if pad := tok.min - len(s); pad > 0 {
					s = strings.Repeat("0", pad) + s
				}
				b.WriteString(s)
			}
		}
	}
	return b.String(), nil
}

// sequenceCapture returns the index of the first sequence token, or -1 when
// there is none or its boundaries are ambiguous. The boundaries are
// ambiguous when the unbroken run of digit-matching tokens around it holds
// another token of variable width.
func sequenceCapture(toks []token) int {
	seq := -1
	for i, tok := range toks {
		if tok.kind == tokDigits && tok.src == srcSequence {
			seq = i
			break
		}
	}
	if seq < 0 {
		return -1
	}
	for _, step := range []int{-1, 1} {
		for i := seq + step; i >= 0 && i < len(toks); i += step {
			tok := toks[i]
			if !matchesDigits(tok) {
				break
			}
			if tok.kind == tokDigits && (tok.max == 0 || tok.min != tok.max) {
				return -1
			}
		}
	}
	return seq
}

// matchesDigits reports whether tok can consume a digit that a neighbouring
// digit token could also claim.
func matchesDigits(tok token) bool {
	switch tok.kind {
	case tokDigits, tokHex:
		return true
	case tokLiteral:
		return tok.text != "" && strings.Trim(tok.text, "0123456789") == ""
	}
	return false
}

func tokenPattern(tok token) string {
	switch tok.kind {
	case tokLiteral:
		return regexp.QuoteMeta(tok.text)
	case tokHex:
		return fmt.Sprintf("[0-9a-fA-F]{%d}", tok.width)
	case tokMeridiem:
		if tok.short {
			return "[AP]"
		}
		return "(?:AM|PM)"
	case tokDigits:
		switch {
		case tok.max == 0 && tok.min <= 1:
			return `\d+`
		case tok.max == 0:
			return fmt.Sprintf(`\d{%d,}`, tok.min)
		case tok.min == tok.max:
			return fmt.Sprintf(`\d{%d}`, tok.min)
		default:
			return fmt.Sprintf(`\d{%d,%d}`, tok.min, tok.max)
		}
	}
	return ""
}

func meridiem(now time.Time, short bool) string {
	s := "AM"
	if now.Hour() >= 12 {
		s = "PM"
	}
	if short {
		return s[:1]
	}
	return s
}

func value(tok token, now time.Time, seq int64) (uint64, error) {
	switch tok.src {
	case srcSequence:
		if seq < 0 {
			seq = 0
		}
		return uint64(seq), nil
	case srcYear:
		return uint64(now.Year() % 10000), nil
	case srcYear2:
		return uint64(now.Year() % 100), nil
	case srcMonth:
		return uint64(now.Month()), nil
	case srcDay:
		return uint64(now.Day()), nil
	case srcHour24:
		return uint64(now.Hour()), nil
	case srcHour12:
		h := now.Hour() % 12
		if h == 0 {
			h = 12
		}
		return uint64(h), nil
	case srcMinute:
		return uint64(now.Minute()), nil
	case srcSecond:
		return uint64(now.Second()), nil
	case srcFraction:
		div := uint64(1)
		for i := tok.min; i < 9; i++ {
			div *= 10
		}
		return uint64(now.Nanosecond()) / div, nil
	case srcRandom6:
		return randomBelow(1_000_000)
	case srcRandom9:
		return randomBelow(1_000_000_000)
	case srcRandom20:
		return randomBits(20)
	case srcRandom32:
		return randomBits(32)
	}
	return 0, nil
}

func randomBelow(n int64) (uint64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, apperr.InternalError("failed to read random source", err)
	}
	return v.Uint64(), nil
}

func randomBits(bits uint) (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, apperr.InternalError("failed to read random source", err)
	}
	return binary.BigEndian.Uint64(buf[:]) & (1<<bits - 1), nil
}
