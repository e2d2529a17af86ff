package redline

import (
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// paragraphSeparator is the virtual separator contributed between
// consecutive paragraphs in the flat text. No run owns these characters.
const paragraphSeparator = "\n\n"

var paragraphExpr = xpath.MustCompile(".//w:p")

// IndexEntry maps one text node of one run to its absolute offset range in
// the flat text. Entries are lookup keys into the tree, not owners: after
// a run is split they are updated in place so that every entry still
// points at a run whose text length equals the entry's length.
type IndexEntry struct {
	Run    *xmlquery.Node
	Text   *xmlquery.Node
	Start  int
	Length int
}

// End returns the exclusive flat-text end offset of the entry.
func (e *IndexEntry) End() int {
	return e.Start + e.Length
}

// RunSlice addresses a sub-range of a single index entry, with local
// offsets satisfying 0 <= Start < End <= entry.Length.
type RunSlice struct {
	Entry *IndexEntry
	Start int
	End   int
}

// Mapper projects the document body to flat text and resolves flat ranges
// back to run slices. Build it once per job, immediately after opening;
// it is consistent across splits performed through SplitAt but must not be
// rebuilt or re-queried at offsets at or beyond an applied mutation.
type Mapper struct {
	body    *xmlquery.Node
	flat    string
	entries []*IndexEntry
}

// NewMapper builds the flat index of a document body with a depth-first
// traversal: runs in document order within each paragraph, table-cell
// paragraphs flattened row-major, a virtual two-character separator
// between consecutive paragraphs and none after the last. Table-cell
// boundaries contribute no separator.
func NewMapper(body *xmlquery.Node) *Mapper {
	m := &Mapper{body: body}

	var flat strings.Builder
	cursor := 0

	paragraphs := xmlquery.QuerySelectorAll(body, paragraphExpr)
	for i, p := range paragraphs {
		if i > 0 {
			flat.WriteString(paragraphSeparator)
			cursor += len(paragraphSeparator)
		}
		for _, run := range paragraphRuns(p) {
			for child := run.FirstChild; child != nil; child = child.NextSibling {
				if !isWordElement(child, "t") {
					continue
				}
				text := elementText(child)
				if text == "" {
					continue
				}
				m.entries = append(m.entries, &IndexEntry{
					Run:    run,
					Text:   child,
					Start:  cursor,
					Length: len(text),
				})
				flat.WriteString(text)
				cursor += len(text)
			}
		}
	}

	m.flat = flat.String()
	return m
}

// paragraphRuns collects the runs of a paragraph in document order,
// descending into existing insertion wrappers but not into nested
// paragraphs (paragraphs do not nest in WordprocessingML).
func paragraphRuns(p *xmlquery.Node) []*xmlquery.Node {
	var runs []*xmlquery.Node
	walkElements(p, func(n *xmlquery.Node) bool {
		if isWordElement(n, "r") {
			runs = append(runs, n)
			return false
		}
		return true
	})
	return runs
}

// FlatText returns the flat logical text of the body.
func (m *Mapper) FlatText() string {
	return m.flat
}

// Entries returns the flat index in document order.
func (m *Mapper) Entries() []*IndexEntry {
	return m.entries
}

// FindOccurrence returns the start offset of the kth (0-based) literal
// match of target in the flat text, or -1 if fewer than k+1 matches
// exist. Matches are counted allowing overlap, scanning left to right.
func (m *Mapper) FindOccurrence(target string, k int) int {
	return findOccurrence(m.flat, target, k)
}

func findOccurrence(s, target string, k int) int {
	if target == "" {
		return -1
	}
	from := 0
	for i := 0; ; i++ {
		idx := strings.Index(s[from:], target)
		if idx < 0 {
			return -1
		}
		idx += from
		if i == k {
			return idx
		}
		from = idx + 1
	}
}

// Resolve maps the kth occurrence of target to the run slices covering
// it. A range crossing a virtual paragraph gap yields one slice per
// involved run, skipping the gap characters.
func (m *Mapper) Resolve(target string, occurrence int) ([]RunSlice, error) {
	if target == "" {
		return nil, NewResolveError(EmptyTarget, target, occurrence)
	}
	start := m.FindOccurrence(target, occurrence)
	if start < 0 {
		return nil, NewResolveError(TargetNotFound, target, occurrence)
	}
	slices := m.SlicesFor(start, start+len(target))
	if len(slices) == 0 {
		// The match consists solely of virtual separator characters;
		// no run owns them.
		return nil, NewResolveError(TargetNotFound, target, occurrence)
	}
	return slices, nil
}

// SlicesFor returns the run slices covering the absolute flat range
// [start, end). Virtual gap characters inside the range produce no slice.
func (m *Mapper) SlicesFor(start, end int) []RunSlice {
	// First entry whose end exceeds start.
	first := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].End() > start
	})

	var slices []RunSlice
	for i := first; i < len(m.entries) && m.entries[i].Start < end; i++ {
		entry := m.entries[i]
		localStart := 0
		if start > entry.Start {
			localStart = start - entry.Start
		}
		localEnd := entry.Length
		if end < entry.End() {
			localEnd = end - entry.Start
		}
		if localStart >= localEnd {
			continue
		}
		slices = append(slices, RunSlice{Entry: entry, Start: localStart, End: localEnd})
	}
	return slices
}

// EntryAfter returns the index entry immediately following the given one
// in flat order, or nil if it is the last.
func (m *Mapper) EntryAfter(entry *IndexEntry) *IndexEntry {
	for i, e := range m.entries {
		if e == entry {
			if i+1 < len(m.entries) {
				return m.entries[i+1]
			}
			return nil
		}
	}
	return nil
}

// SplitAt splits an entry's run at a local offset within the entry's text
// node. The original run keeps the prefix characters and every content
// child up to the text node; a new sibling run receives the suffix, a
// deep copy of the run properties, and every content child after the
// split point. The new run becomes the immediate next sibling of the
// original.
//
// Returns (left, right): at offset 0 the split is a no-op and left is
// nil; at offset Length it is a no-op and right is nil. The nil side is
// the synthetic empty neighbor so callers can uniformly address "before"
// and "after" the boundary. The flat index is updated in place.
func (m *Mapper) SplitAt(entry *IndexEntry, offset int) (*IndexEntry, *IndexEntry) {
	if offset <= 0 {
		return nil, entry
	}
	if offset >= entry.Length {
		return entry, nil
	}

	text := elementText(entry.Text)
	prefix := text[:offset]
	suffix := text[offset:]

	sibling := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         entry.Run.Data,
		Prefix:       entry.Run.Prefix,
		NamespaceURI: entry.Run.NamespaceURI,
	}
	if len(entry.Run.Attr) > 0 {
		sibling.Attr = append([]xmlquery.Attr(nil), entry.Run.Attr...)
	}
	if props := runProperties(entry.Run); props != nil {
		appendChild(sibling, cloneNode(props))
	}

	// The suffix text node inherits the original's element shape and
	// attributes (including any xml:space flag already present).
	suffixText := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         entry.Text.Data,
		Prefix:       entry.Text.Prefix,
		NamespaceURI: entry.Text.NamespaceURI,
	}
	if len(entry.Text.Attr) > 0 {
		suffixText.Attr = append([]xmlquery.Attr(nil), entry.Text.Attr...)
	}
	setElementText(suffixText, suffix)
	if needsSpacePreserve(suffix) {
		setSpacePreserve(suffixText)
	}
	appendChild(sibling, suffixText)

	// Content children after the split point move to the new run; index
	// entries referencing them follow their text nodes.
	moved := make(map[*xmlquery.Node]bool)
	for child := entry.Text.NextSibling; child != nil; {
		next := child.NextSibling
		detach(child)
		appendChild(sibling, child)
		moved[child] = true
		child = next
	}

	setElementText(entry.Text, prefix)
	if needsSpacePreserve(prefix) {
		setSpacePreserve(entry.Text)
	}

	insertAfter(entry.Run, sibling)

	right := &IndexEntry{
		Run:    sibling,
		Text:   suffixText,
		Start:  entry.Start + offset,
		Length: entry.Length - offset,
	}
	entry.Length = offset

	for _, e := range m.entries {
		if moved[e.Text] {
			e.Run = sibling
		}
	}

	// Keep the index ordered so later binary searches stay valid.
	for i, e := range m.entries {
		if e == entry {
			m.entries = append(m.entries[:i+1], append([]*IndexEntry{right}, m.entries[i+1:]...)...)
			break
		}
	}

	return entry, right
}
