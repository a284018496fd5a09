package search

// Segment is a run of text, bold when Match is set.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match,omitempty"`
}

// Item is a prediction laid out for the suggestion list: the first term as
// the title, the other terms comma-joined after it.
type Item struct {
	Index       int       `json:"index"`
	PlaceID     string    `json:"placeId"`
	Title       []Segment `json:"title"`
	Detail      []Segment `json:"detail,omitempty"`
	Highlighted bool      `json:"highlighted,omitempty"`
}

// Layout renders p. A match applies to the term starting at the same offset
// and bolds its first Length characters.
func Layout(index int, p Prediction) Item {
	item := Item{Index: index, PlaceID: p.PlaceID}

	terms := p.Terms
	if len(terms) == 0 {
		terms = []Term{{Value: p.Description}}
	}

	for i, t := range terms {
		segs := termSegments(t, p.Matches)
		if i == 0 {
			item.Title = segs
			continue
		}
		if i > 1 {
			item.Detail = append(item.Detail, Segment{Text: ", "})
		}
		item.Detail = append(item.Detail, segs...)
	}
	return item
}

func termSegments(t Term, matches []Match) []Segment {
	for _, m := range matches {
		if m.Offset != t.Offset || m.Length <= 0 {
			continue
		}
		runes := []rune(t.Value)
		n := min(m.Length, len(runes))
		segs := []Segment{{Text: string(runes[:n]), Match: true}}
		if n < len(runes) {
			segs = append(segs, Segment{Text: string(runes[n:])})
		}
		return segs
	}
	return []Segment{{Text: t.Value}}
}

// Text joins the segments back into plain text.
func Text(segs []Segment) string {
	var s string
	for _, seg := range segs {
		s += seg.Text
	}
	return s
}
