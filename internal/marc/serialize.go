package marc

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Leader is the fixed leader written for every record.
const Leader = "00000nam a2200000Ia 4500"

// DefaultLanguage is the MARC code for an undetermined language.
const DefaultLanguage = "und"

// indicators are the two blank indicators written on every data field.
const indicators = `\\`

var holdingsRank = func() map[byte]int {
	rank := make(map[byte]int, len(HoldingsOrder))
	for i, code := range HoldingsOrder {
		if _, ok := rank[code]; !ok {
			rank[code] = i
		}
	}
	return rank
}()

// Serializer renders groups as MARC line text. Control numbers are
// assigned in the order records are rendered, starting at 1.
type Serializer struct {
	lang  string
	date  string
	seq   int
	log   *slog.Logger
	stats *Stats
}

// NewSerializer returns a Serializer that writes lang into 008 for records
// without their own 041 $a, and stamps 008 with now.
func NewSerializer(lang string, now time.Time, log *slog.Logger) *Serializer {
	return newSerializer(lang, now, orDiscard(log), &Stats{})
}

func newSerializer(lang string, now time.Time, log *slog.Logger, stats *Stats) *Serializer {
	lang = singleLine(lang)
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Serializer{
		lang:  lang,
		date:  now.Format("060102"),
		log:   log,
		stats: stats,
	}
}

// Record returns the lines of the next record, without the trailing blank
// separator line.
func (s *Serializer) Record(g *Group) []string {
	s.seq++

	lang := singleLine(g.Bib.Language.A)
	if lang == "" {
		lang = s.lang
	}

	lines := []string{
		"=LDR  " + Leader,
		fmt.Sprintf("=001  %09d", s.seq),
		fmt.Sprintf(`=008  %ss9999||||xx\||||||||||||||\||%s||`, s.date, lang),
	}

	for _, t := range schema {
		switch t.kind {
		case scalarField:
			var sb strings.Builder
			for _, sf := range t.subfields {
				writeSubfield(&sb, sf.code, *sf.ref(&g.Bib))
			}
			if sb.Len() > 0 {
				lines = append(lines, dataField(t.tag, sb.String()))
			}

		case listField:
			for _, v := range *t.list(&g.Bib) {
				var sb strings.Builder
				writeSubfield(&sb, 'a', v)
				if sb.Len() > 0 {
					lines = append(lines, dataField(t.tag, sb.String()))
				}
			}

		case qualifiedField, pairedField:
			for _, e := range *t.entries(&g.Bib) {
				var sb strings.Builder
				writeSubfield(&sb, t.primary, e.Primary)
				writeSubfield(&sb, t.secondary, e.Secondary)
				if sb.Len() > 0 {
					lines = append(lines, dataField(t.tag, sb.String()))
				}
			}
		}
	}

	for _, item := range g.Holdings {
		if line := s.holdingsLine(item); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Encode writes every group followed by a blank line. Output goes through
// a buffered writer one record at a time.
func (s *Serializer) Encode(w io.Writer, groups []*Group) error {
	bw := bufio.NewWriter(w)
	for _, g := range groups {
		for _, line := range s.Record(g) {
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return fmt.Errorf("write record %d: %w", s.seq, err)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write record %d: %w", s.seq, err)
		}
		s.stats.Records++
		s.stats.HoldingsItems += len(g.Holdings)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func (s *Serializer) holdingsLine(item HoldingsItem) string {
	pairs := make([]HoldingsPair, 0, len(item))
	for _, p := range item {
		if !validCode(p.Code) {
			s.stats.MalformedPairs++
			s.log.Warn("skipping malformed holdings pair",
				"record", s.seq,
				"code", p.Code,
				"value", p.Value,
			)
			continue
		}
		pairs = append(pairs, p)
	}

	slices.SortStableFunc(pairs, func(a, b HoldingsPair) int {
		return holdingsPosition(a.Code) - holdingsPosition(b.Code)
	})

	var sb strings.Builder
	for _, p := range pairs {
		writeSubfield(&sb, p.Code, p.Value)
	}
	if sb.Len() == 0 {
		return ""
	}
	return dataField(HoldingsTag, sb.String())
}

func holdingsPosition(code byte) int {
	if r, ok := holdingsRank[code]; ok {
		return r
	}
	return len(HoldingsOrder)
}

func validCode(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// lineBreaks matches a run of line breaks with the blanks around it.
var lineBreaks = regexp.MustCompile(`[ \t]*[\r\n]+[ \t]*`)

// singleLine cleans v and folds embedded line breaks into one space, so
// every output line starts with a tag.
func singleLine(v string) string {
	return CleanText(lineBreaks.ReplaceAllString(v, " "))
}

func writeSubfield(sb *strings.Builder, code byte, value string) {
	value = singleLine(value)
	if value == "" {
		return
	}
	sb.WriteByte('$')
	sb.WriteByte(code)
	sb.WriteString(value)
}

func dataField(tag, subfields string) string {
	return "=" + tag + "  " + indicators + subfields
}
