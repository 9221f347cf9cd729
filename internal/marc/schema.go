package marc

import (
	"regexp"
	"strings"
)

// KeySchemaVersion identifies the grouping semantics of KeyFields and
// MultiValuedFields. Any change to either list must bump it.
const KeySchemaVersion = 2

// Delimiter separates repeated values inside a single cell.
const Delimiter = "|"

// HoldingsTag is the tag holdings columns are recognised by.
const HoldingsTag = "952"

// holdingsHeader matches cleaned headers such as "952$p". Case-sensitive.
var holdingsHeader = regexp.MustCompile(`^952\$[A-Za-z0-9]$`)

// KeyFields lists the field identifiers that make up a grouping key, in
// key order.
var KeyFields = []string{
	"020$a", "020$c", "040$a", "040$b", "040$c", "040$d", "041$a", "082$a", "082$b",
	"100$a", "110$a", "245$a", "245$b", "246$a", "250$a", "260$a", "260$b", "260$c",
	"300$a", "300$b", "300$c", "300$e", "362$a", "365$a", "365$b", "365$c", "365$d",
	"365$e", "365$j", "490$a", "490$v", "500$a", "520$a", "521$a", "942$c", "856$u",
	"650$a", "650$x", "700$a", "710$a",
}

// MultiValuedFields are key fields whose cells hold Delimiter-separated
// headings; each token contributes its own key segment.
var MultiValuedFields = []string{"650$a", "700$a", "710$a"}

// HoldingsOrder is the canonical subfield precedence for holdings lines.
var HoldingsOrder = []byte{
	'p', 'd', 'o', 'e', 'g', '0', '1', '2', '4', '5', '7', 'f', 't',
	'A', 'B', 'c', 'C', '8', 'w', 'x', 'z', 'y', 'a', 'b',
}

// Entry is one occurrence of a repeatable field carrying up to two
// subfields: an identifier with its qualifier, or a heading with its
// subdivision.
type Entry struct {
	Primary   string
	Secondary string
}

// CatalogingSource is field 040.
type CatalogingSource struct{ A, B, C, D string }

// Classification is field 082 (Dewey number and item number).
type Classification struct{ A, B string }

// TitleStatement is field 245.
type TitleStatement struct{ A, B string }

// Publication is field 260.
type Publication struct{ A, B, C string }

// PhysicalDescription is field 300.
type PhysicalDescription struct{ A, B, C, E string }

// Price is field 365.
type Price struct{ A, B, C, D, E, J string }

// Series is field 490.
type Series struct{ A, V string }

// Text is a field with a single $a.
type Text struct{ A string }

// ElectronicLocation is field 856.
type ElectronicLocation struct{ U string }

// LocalItemType is field 942.
type LocalItemType struct{ C string }

// Bibliographic holds every supported field of one record. ISBNs (020) and
// Subjects (650) are entry lists; AddedPersons (700) and AddedCorporate
// (710) are plain lists.
type Bibliographic struct {
	ISBNs          []Entry
	Source         CatalogingSource
	Language       Text
	Classification Classification
	MainPerson     Text
	MainCorporate  Text
	Title          TitleStatement
	VaryingTitle   Text
	Edition        Text
	Publication    Publication
	Physical       PhysicalDescription
	Dates          Text
	Price          Price
	Series         Series
	Note           Text
	Summary        Text
	Audience       Text
	Location       ElectronicLocation
	ItemType       LocalItemType
	Subjects       []Entry
	AddedPersons   []string
	AddedCorporate []string
}

type fieldKind int

const (
	scalarField fieldKind = iota
	listField
	qualifiedField
	pairedField
)

// subfield binds a subfield code to its storage in Bibliographic.
type subfield struct {
	code byte
	ref  func(*Bibliographic) *string
}

// tagSpec describes how one tag is read, merged, deduplicated and written.
type tagSpec struct {
	tag  string
	kind fieldKind

	// scalarField
	subfields []subfield

	// listField
	list func(*Bibliographic) *[]string

	// qualifiedField, pairedField
	entries   func(*Bibliographic) *[]Entry
	primary   byte
	secondary byte
}

func (t tagSpec) field(code byte) string {
	return t.tag + "$" + string(code)
}

func sub(code byte, ref func(*Bibliographic) *string) subfield {
	return subfield{code: code, ref: ref}
}

// schema is the fixed, declared-order table of supported tags.
var schema = []tagSpec{
	{tag: "020", kind: qualifiedField, primary: 'a', secondary: 'c',
		entries: func(b *Bibliographic) *[]Entry { return &b.ISBNs }},
	{tag: "040", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Source.A }),
		sub('b', func(b *Bibliographic) *string { return &b.Source.B }),
		sub('c', func(b *Bibliographic) *string { return &b.Source.C }),
		sub('d', func(b *Bibliographic) *string { return &b.Source.D }),
	}},
	{tag: "041", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Language.A }),
	}},
	{tag: "082", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Classification.A }),
		sub('b', func(b *Bibliographic) *string { return &b.Classification.B }),
	}},
	{tag: "100", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.MainPerson.A }),
	}},
	{tag: "110", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.MainCorporate.A }),
	}},
	{tag: "245", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Title.A }),
		sub('b', func(b *Bibliographic) *string { return &b.Title.B }),
	}},
	{tag: "246", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.VaryingTitle.A }),
	}},
	{tag: "250", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Edition.A }),
	}},
	{tag: "260", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Publication.A }),
		sub('b', func(b *Bibliographic) *string { return &b.Publication.B }),
		sub('c', func(b *Bibliographic) *string { return &b.Publication.C }),
	}},
	{tag: "300", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Physical.A }),
		sub('b', func(b *Bibliographic) *string { return &b.Physical.B }),
		sub('c', func(b *Bibliographic) *string { return &b.Physical.C }),
		sub('e', func(b *Bibliographic) *string { return &b.Physical.E }),
	}},
	{tag: "362", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Dates.A }),
	}},
	{tag: "365", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Price.A }),
		sub('b', func(b *Bibliographic) *string { return &b.Price.B }),
		sub('c', func(b *Bibliographic) *string { return &b.Price.C }),
		sub('d', func(b *Bibliographic) *string { return &b.Price.D }),
		sub('e', func(b *Bibliographic) *string { return &b.Price.E }),
		sub('j', func(b *Bibliographic) *string { return &b.Price.J }),
	}},
	{tag: "490", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Series.A }),
		sub('v', func(b *Bibliographic) *string { return &b.Series.V }),
	}},
	{tag: "500", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Note.A }),
	}},
	{tag: "520", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Summary.A }),
	}},
	{tag: "521", kind: scalarField, subfields: []subfield{
		sub('a', func(b *Bibliographic) *string { return &b.Audience.A }),
	}},
	{tag: "856", kind: scalarField, subfields: []subfield{
		sub('u', func(b *Bibliographic) *string { return &b.Location.U }),
	}},
	{tag: "942", kind: scalarField, subfields: []subfield{
		sub('c', func(b *Bibliographic) *string { return &b.ItemType.C }),
	}},
	{tag: "650", kind: pairedField, primary: 'a', secondary: 'x',
		entries: func(b *Bibliographic) *[]Entry { return &b.Subjects }},
	{tag: "700", kind: listField,
		list: func(b *Bibliographic) *[]string { return &b.AddedPersons }},
	{tag: "710", kind: listField,
		list: func(b *Bibliographic) *[]string { return &b.AddedCorporate }},
}

// SupportedFields returns every column identifier the converter reads,
// in declared tag order. Holdings columns are not included.
func SupportedFields() []string {
	var fields []string
	for _, t := range schema {
		switch t.kind {
		case scalarField:
			for _, s := range t.subfields {
				fields = append(fields, t.field(s.code))
			}
		case listField:
			fields = append(fields, t.field('a'))
		case qualifiedField, pairedField:
			fields = append(fields, t.field(t.primary), t.field(t.secondary))
		}
	}
	return fields
}

// IsHoldingsColumn reports whether a cleaned header names a holdings
// subfield, returning its code.
func IsHoldingsColumn(header string) (byte, bool) {
	if !holdingsHeader.MatchString(header) {
		return 0, false
	}
	return header[strings.IndexByte(header, '$')+1], true
}

// TemplateHeaders returns SupportedFields followed by one holdings column
// per canonical holdings code.
func TemplateHeaders() []string {
	headers := SupportedFields()
	seen := make(map[byte]bool, len(HoldingsOrder))
	for _, c := range HoldingsOrder {
		if seen[c] {
			continue
		}
		seen[c] = true
		headers = append(headers, HoldingsTag+"$"+string(c))
	}
	return headers
}
