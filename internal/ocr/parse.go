package ocr

import (
	"strconv"
	"strings"
)

// ValueKind tags the parsed variant held by a ParsedValue.
type ValueKind int

const (
	// KindNone - the text did not parse
	KindNone ValueKind = iota
	// KindNumber - a plain integer or float
	KindNumber
	// KindHand - a card-hand total, possibly soft (slash notation)
	KindHand
)

// HandTotal is a card-hand value. Soft hands carry both readings of the
// ambiguous ace ("11/21" reads as low 11, high 21).
type HandTotal struct {
	Low  int
	High int
	Soft bool
}

// Value returns the total a player acts on: the higher reading.
func (h HandTotal) Value() int {
	if h.High > h.Low {
		return h.High
	}
	return h.Low
}

// ParsedValue is the typed result of an OCR parse. Exactly one variant is
// meaningful, selected by Kind.
type ParsedValue struct {
	Kind   ValueKind
	Number float64
	Hand   HandTotal
}

// JSONValue renders the active variant for snapshot metadata: a number, a
// [low, high] pair, or nil.
func (v ParsedValue) JSONValue() interface{} {
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindHand:
		return []int{v.Hand.Low, v.Hand.High}
	default:
		return nil
	}
}

// corrections maps glyphs the recognizer confuses with digits on stylized
// game fonts. Applied character by character before numeric parsing.
var corrections = map[rune]rune{
	'&': '8',
	'@': '8',
	'B': '8',
	'O': '0',
	'o': '0',
	'l': '1',
	'I': '1',
	'|': '1',
	'S': '5',
	's': '5',
	'Z': '2',
	'z': '2',
}

// CorrectDigits substitutes known digit misreads in the input, leaving every
// other character untouched.
func CorrectDigits(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, ch := range text {
		if fixed, ok := corrections[ch]; ok {
			b.WriteRune(fixed)
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// CleanNumeric strips currency symbols, thousands separators, and spaces,
// keeping only digits and decimal points.
func CleanNumeric(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, ch := range text {
		if (ch >= '0' && ch <= '9') || ch == '.' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ParseNumber extracts a float from recognized text. Digit corrections run
// first, then cleaning; it reports failure when no digits remain or the
// remainder is not a valid number (for example two decimal points).
func ParseNumber(text string) (float64, bool) {
	numeric := CleanNumeric(CorrectDigits(text))
	if numeric == "" || !strings.ContainsAny(numeric, "0123456789") {
		return 0, false
	}

	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseHandTotal reads a card-hand total. Digit corrections run first, then
// slash notation splits into a soft (low, high) pair; plain digits yield a
// hard total with both readings equal.
func ParseHandTotal(text string) (HandTotal, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, " ", ""))
	cleaned = CorrectDigits(cleaned)

	if strings.Contains(cleaned, "/") {
		parts := strings.Split(cleaned, "/")
		if len(parts) != 2 {
			return HandTotal{}, false
		}
		low, errLow := strconv.Atoi(parts[0])
		high, errHigh := strconv.Atoi(parts[1])
		if errLow != nil || errHigh != nil {
			return HandTotal{}, false
		}
		return HandTotal{Low: low, High: high, Soft: true}, true
	}

	var digits strings.Builder
	for _, ch := range cleaned {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	if digits.Len() == 0 {
		return HandTotal{}, false
	}

	total, err := strconv.Atoi(digits.String())
	if err != nil {
		return HandTotal{}, false
	}
	return HandTotal{Low: total, High: total, Soft: false}, true
}
