package marc

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyOnTitle groups by 245 $a only so tests can vary other fields freely.
var keyOnTitle = NewKeyBuilder([]string{"245$a"}, nil)

func accumulate(t *testing.T, kb KeyBuilder, header []any, rows ...[]any) []*Group {
	t.Helper()
	acc := NewAccumulator(header, kb, nil, nil)
	for i, row := range rows {
		acc.Add(row, i, i == len(rows)-1)
	}
	return acc.Groups()
}

func TestAccumulator_ScalarFirstNonEmptyWins(t *testing.T) {
	groups := accumulate(t, keyOnTitle,
		[]any{"245$a", "250$a"},
		[]any{"Dune", ""},
		[]any{"Dune", "A"},
		[]any{"Dune", "B"},
	)

	require.Len(t, groups, 1)
	assert.Equal(t, "A", groups[0].Bib.Edition.A)
	assert.Equal(t, 3, groups[0].Rows)
}

func TestAccumulator_QualifierOnFirstTokenOnly(t *testing.T) {
	groups := accumulate(t, keyOnTitle,
		[]any{"245$a", "020$a", "020$c"},
		[]any{"Dune", "111-2|222-3", "avail"},
	)

	require.Len(t, groups, 1)
	assert.Equal(t, []Entry{
		{Primary: "111-2", Secondary: "avail"},
		{Primary: "222-3"},
	}, groups[0].Bib.ISBNs)
}

func TestAccumulator_QualifierDroppedWhenFirstTokenEmpty(t *testing.T) {
	groups := accumulate(t, keyOnTitle,
		[]any{"245$a", "020$a", "020$c"},
		[]any{"Dune", "|222-3", "avail"},
	)

	assert.Equal(t, []Entry{{Primary: "222-3"}}, groups[0].Bib.ISBNs)
}

func TestAccumulator_PairedEntries(t *testing.T) {
	groups := accumulate(t, keyOnTitle,
		[]any{"245$a", "650$a", "650$x"},
		[]any{"Dune", "Ecology|Deserts|Politics", "Fiction||History|Extra"},
	)

	assert.Equal(t, []Entry{
		{Primary: "Ecology", Secondary: "Fiction"},
		{Primary: "Deserts"},
		{Primary: "Politics", Secondary: "History"},
	}, groups[0].Bib.Subjects)
}

func TestAccumulator_SimpleListsAreTrimmed(t *testing.T) {
	groups := accumulate(t, keyOnTitle,
		[]any{"245$a", "700$a"},
		[]any{"Dune", " Herbert, Frank | |Schoenherr, John"},
		[]any{"Dune", "Herbert, Frank"},
	)

	assert.Equal(t, []string{"Herbert, Frank", "Schoenherr, John"}, groups[0].Bib.AddedPersons)
}

func TestAccumulator_HoldingsNeverMerged(t *testing.T) {
	header := []any{"245$a", "952$p", "952$y"}
	groups := accumulate(t, keyOnTitle, header,
		[]any{"Dune", "B001", "BOOK"},
		[]any{"Dune", "B001", "BOOK"},
		[]any{"Dune", "B001", "BOOK"},
		[]any{"Dune", "", ""},
	)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Holdings, 3)
	assert.Equal(t, 4, groups[0].Rows)
	for _, item := range groups[0].Holdings {
		assert.Equal(t, HoldingsItem{{Code: 'p', Value: "B001"}, {Code: 'y', Value: "BOOK"}}, item)
	}
}

func TestAccumulator_HoldingsHeaderDetection(t *testing.T) {
	acc := NewAccumulator([]any{"952$p", "952$pp", "952$Y", "952 $a", "  952$7  ", "952$", "999$a"}, keyOnTitle, nil, nil)
	assert.Equal(t, []byte{'p', 'Y', '7'}, acc.HoldingsColumns())
}

func TestAccumulator_SkipsEmptyRows(t *testing.T) {
	acc := NewAccumulator([]any{"245$a"}, keyOnTitle, nil, nil)
	acc.Add([]any{""}, 0, false)
	acc.Add([]any{nil, "none"}, 1, false)
	acc.Add([]any{"Dune"}, 2, true)

	assert.Len(t, acc.Groups(), 1)
	assert.Equal(t, 3, acc.fmt.stats.Rows)
	assert.Equal(t, 2, acc.fmt.stats.EmptyRows)
}

func TestAccumulator_FirstSeenOrder(t *testing.T) {
	groups := accumulate(t, keyOnTitle,
		[]any{"245$a"},
		[]any{"Zebra"},
		[]any{"apple"},
		[]any{"ZEBRA"},
		[]any{"Mango"},
	)

	var titles []string
	for _, g := range groups {
		titles = append(titles, g.Bib.Title.A)
	}
	assert.Equal(t, []string{"Zebra", "apple", "Mango"}, titles)
}

func TestAccumulator_ReorderingKeepsCoGrouping(t *testing.T) {
	header := []any{"245$a", "100$a", "952$p"}
	rows := [][]any{
		{"Dune", "Herbert", "1"},
		{"Emma", "Austen", "2"},
		{"DUNE ", "herbert", "3"},
		{"Emma", "Austen", "4"},
		{"Dune", "Someone Else", "5"},
	}
	reversed := make([][]any, len(rows))
	for i, r := range rows {
		reversed[len(rows)-1-i] = r
	}

	members := func(groups []*Group) map[string]bool {
		sets := make(map[string]bool)
		for _, g := range groups {
			var ids []string
			for _, item := range g.Holdings {
				ids = append(ids, item[0].Value)
			}
			sort.Strings(ids)
			sets[strings.Join(ids, "")] = true
		}
		return sets
	}

	forward := accumulate(t, DefaultKeyBuilder(), header, rows...)
	backward := accumulate(t, DefaultKeyBuilder(), header, reversed...)

	assert.Len(t, forward, 3)
	assert.Equal(t, members(forward), members(backward))
	assert.Equal(t, map[string]bool{"13": true, "24": true, "5": true}, members(forward))
}

type stubCells struct {
	values map[[2]int]any
	calls  int
}

func (s *stubCells) CellAt(row, col int) (any, error) {
	s.calls++
	v, ok := s.values[[2]int{row, col}]
	if !ok {
		return nil, errors.New("no such cell")
	}
	return v, nil
}

func TestAccumulator_RereadsLastRowHoldings(t *testing.T) {
	cells := &stubCells{values: map[[2]int]any{
		{3, 2}: "B002",
		{3, 3}: "BOOK",
	}}
	acc := NewAccumulator([]any{"245$a", "952$p", "952$y"}, keyOnTitle, cells, nil)
	acc.Add([]any{"Dune", "B001", ""}, 0, false)
	acc.Add([]any{"Dune"}, 1, true)

	groups := acc.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []HoldingsItem{
		{{Code: 'p', Value: "B001"}},
		{{Code: 'p', Value: "B002"}, {Code: 'y', Value: "BOOK"}},
	}, groups[0].Holdings)
	assert.Equal(t, 2, cells.calls)
	assert.Equal(t, 1, acc.fmt.stats.HoldingsRereads)
}

func TestAccumulator_NoRereadBeforeLastRow(t *testing.T) {
	cells := &stubCells{values: map[[2]int]any{}}
	acc := NewAccumulator([]any{"245$a", "952$p"}, keyOnTitle, cells, nil)
	acc.Add([]any{"Dune"}, 0, false)
	acc.Add([]any{"Dune", "B001"}, 1, true)

	assert.Zero(t, cells.calls)
	assert.Len(t, acc.Groups()[0].Holdings, 1)
}

func TestAccumulator_ParseAnomalyIsCounted(t *testing.T) {
	acc := NewAccumulator([]any{"245$a", "260$c"}, keyOnTitle, nil, nil)
	acc.Add([]any{"Dune", "2024-99-99"}, 0, true)

	groups := acc.Groups()
	assert.Equal(t, "2024-99-99", groups[0].Bib.Publication.C)
	assert.Equal(t, 1, acc.fmt.stats.ParseAnomalies)
}

func TestDedupe(t *testing.T) {
	b := Bibliographic{
		AddedPersons: []string{"x", "y", "x"},
		ISBNs: []Entry{
			{Primary: "111"},
			{Primary: "222", Secondary: "avail"},
			{Primary: "111", Secondary: "late qualifier"},
		},
		Subjects: []Entry{
			{Primary: "Ecology", Secondary: "Fiction"},
			{Primary: "Ecology"},
			{Primary: "Ecology", Secondary: "Fiction"},
		},
	}

	dedupe(&b)

	assert.Equal(t, []string{"x", "y"}, b.AddedPersons)
	assert.Equal(t, []Entry{{Primary: "111"}, {Primary: "222", Secondary: "avail"}}, b.ISBNs)
	assert.Equal(t, []Entry{{Primary: "Ecology", Secondary: "Fiction"}, {Primary: "Ecology"}}, b.Subjects)
}
