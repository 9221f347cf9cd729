package marc

// dedupe removes repeated values from every repeatable field of b,
// keeping first occurrences in their original order. Holdings are left
// alone.
func dedupe(b *Bibliographic) {
	for _, t := range schema {
		switch t.kind {
		case listField:
			list := t.list(b)
			*list = uniqueStrings(*list)
		case qualifiedField:
			entries := t.entries(b)
			*entries = uniqueEntries(*entries, func(e Entry) Entry { return Entry{Primary: e.Primary} })
		case pairedField:
			entries := t.entries(b)
			*entries = uniqueEntries(*entries, func(e Entry) Entry { return e })
		}
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// uniqueEntries keeps the first entry for each identity returned by id.
func uniqueEntries(in []Entry, id func(Entry) Entry) []Entry {
	seen := make(map[Entry]struct{}, len(in))
	out := in[:0]
	for _, e := range in {
		k := id(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
