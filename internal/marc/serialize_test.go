package marc

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func TestSerializer_RecordLines(t *testing.T) {
	g := &Group{Bib: Bibliographic{
		ISBNs:        []Entry{{Primary: "111-2", Secondary: "avail"}, {Primary: "222-3"}},
		Source:       CatalogingSource{A: "DLC", C: "DLC"},
		Title:        TitleStatement{A: "Sample Title", B: "a subtitle"},
		Physical:     PhysicalDescription{E: "1 map"},
		Subjects:     []Entry{{Primary: "Ecology", Secondary: "Fiction"}, {Primary: "Deserts"}},
		AddedPersons: []string{"Herbert, Frank"},
	}}

	s := NewSerializer("eng", fixedNow, nil)
	got := s.Record(g)

	assert.Equal(t, []string{
		`=LDR  00000nam a2200000Ia 4500`,
		`=001  000000001`,
		`=008  261018s9999||||xx\||||||||||||||\||eng||`,
		`=020  \\$a111-2$cavail`,
		`=020  \\$a222-3`,
		`=040  \\$aDLC$cDLC`,
		`=245  \\$aSample Title$ba subtitle`,
		`=300  \\$e1 map`,
		`=650  \\$aEcology$xFiction`,
		`=650  \\$aDeserts`,
		`=700  \\$aHerbert, Frank`,
	}, got)
}

func TestSerializer_SequenceAndLanguage(t *testing.T) {
	s := NewSerializer("  ", fixedNow, nil)

	first := s.Record(&Group{Bib: Bibliographic{Language: Text{A: " fre "}}})
	second := s.Record(&Group{})

	assert.Equal(t, "=001  000000001", first[1])
	assert.Equal(t, `=008  261018s9999||||xx\||||||||||||||\||fre||`, first[2])
	assert.Equal(t, "=041  \\\\$afre", first[3])
	assert.Equal(t, "=001  000000002", second[1])
	assert.True(t, strings.HasSuffix(second[2], `\||und||`))
	assert.Len(t, second, 3)
}

func TestSerializer_HoldingsOrder(t *testing.T) {
	g := &Group{Holdings: []HoldingsItem{
		{
			{Code: 'y', Value: "BOOK"},
			{Code: 'Q', Value: "unknown-1"},
			{Code: 'a', Value: "MAIN"},
			{Code: 'p', Value: "B001"},
			{Code: '9', Value: "unknown-2"},
			{Code: 'o', Value: "813.54"},
		},
		{{Code: 'p', Value: "  "}},
		{{Code: 'y', Value: "DVD"}},
	}}

	lines := NewSerializer("", fixedNow, nil).Record(g)

	assert.Equal(t, []string{
		`=952  \\$pB001$o813.54$yBOOK$aMAIN$Qunknown-1$9unknown-2`,
		`=952  \\$yDVD`,
	}, lines[3:])
}

func TestSerializer_MalformedHoldingsPair(t *testing.T) {
	stats := &Stats{}
	s := newSerializer("", fixedNow, orDiscard(nil), stats)

	lines := s.Record(&Group{Holdings: []HoldingsItem{
		{{Code: '$', Value: "bad"}, {Code: 'p', Value: "B001"}},
		{{Code: 0, Value: "bad"}},
	}})

	assert.Equal(t, []string{`=952  \\$pB001`}, lines[3:])
	assert.Equal(t, 2, stats.MalformedPairs)
}

func TestSerializer_Encode(t *testing.T) {
	var buf bytes.Buffer
	s := NewSerializer("und", fixedNow, nil)

	err := s.Encode(&buf, []*Group{
		{Bib: Bibliographic{Title: TitleStatement{A: "One"}}},
		{Bib: Bibliographic{Title: TitleStatement{A: "Two"}}},
	})
	require.NoError(t, err)

	want := strings.Join([]string{
		`=LDR  00000nam a2200000Ia 4500`,
		`=001  000000001`,
		`=008  261018s9999||||xx\||||||||||||||\||und||`,
		`=245  \\$aOne`,
		``,
		`=LDR  00000nam a2200000Ia 4500`,
		`=001  000000002`,
		`=008  261018s9999||||xx\||||||||||||||\||und||`,
		`=245  \\$aTwo`,
		``,
		``,
	}, "\n")
	assert.Equal(t, want, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSerializer_EncodeError(t *testing.T) {
	s := NewSerializer("und", fixedNow, nil)
	err := s.Encode(failingWriter{}, []*Group{{}})
	assert.ErrorContains(t, err, "disk full")
}

func TestSingleLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb", "a b"},
		{"a \r\n  b", "a b"},
		{"a\n\n\nb", "a b"},
		{"\ntrailing\n", "trailing"},
		{"tab\t\nnext", "tab next"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, singleLine(tt.in), "input %q", tt.in)
	}
}
