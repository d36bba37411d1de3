package ledger

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SequenceExtractor pulls the integer sequence number out of a free-text
// label. It reports false when the label carries no number.
type SequenceExtractor func(label string) (int, bool)

var sequencePattern = regexp.MustCompile(`(?i)n°\s*(\d+)`)

// ExtractSequenceNumber captures the number following "n°" in labels such as
// "Situation n°12".
func ExtractSequenceNumber(label string) (int, bool) {
	m := sequencePattern.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DefaultLocale is the collation used for chantier and supplier names.
var DefaultLocale = language.French

// compareSequence orders labels by their extracted number; labels without a
// number come after every numbered label and compare by raw string.
func compareSequence(extract SequenceExtractor, a, b string) int {
	if extract == nil {
		extract = ExtractSequenceNumber
	}
	na, okA := extract(a)
	nb, okB := extract(b)
	switch {
	case okA && okB:
		return cmp.Compare(na, nb)
	case okA:
		return -1
	case okB:
		return 1
	}
	return strings.Compare(a, b)
}

// compareBucket orders records by month. Dateless invoices come last.
func compareBucket(a, b Record) int {
	ka, okA := a.Bucket()
	kb, okB := b.Bucket()
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	if c := cmp.Compare(ka.Year, kb.Year); c != 0 {
		return c
	}
	return cmp.Compare(ka.Month, kb.Month)
}

// Sort orders records for the flat recap listing: chantier name (French
// collation), then month, then label sequence number. The sort is stable and
// the input slice is left untouched.
func Sort(records []Record, extract SequenceExtractor) []Record {
	return SortIn(DefaultLocale, records, extract)
}

// SortIn is Sort with an explicit collation locale.
func SortIn(tag language.Tag, records []Record, extract SequenceExtractor) []Record {
	out := slices.Clone(records)
	if len(out) < 2 {
		return out
	}
	// A collator keeps internal buffers and must not be shared across goroutines.
	col := collate.New(tag)
	slices.SortStableFunc(out, func(a, b Record) int {
		if c := col.CompareString(a.ChantierName(), b.ChantierName()); c != 0 {
			return c
		}
		if c := compareBucket(a, b); c != 0 {
			return c
		}
		return compareSequence(extract, a.Label(), b.Label())
	})
	return out
}

// SortByChantier is Sort keyed on chantier ID instead of name.
func SortByChantier(records []Record, extract SequenceExtractor) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		if c := cmp.Compare(a.ChantierID(), b.ChantierID()); c != 0 {
			return c
		}
		if c := compareBucket(a, b); c != 0 {
			return c
		}
		return compareSequence(extract, a.Label(), b.Label())
	})
	return out
}
