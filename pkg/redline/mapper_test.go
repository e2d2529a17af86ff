package redline

import (
	"strings"
	"testing"
)

func openMapper(t *testing.T, data []byte) (*Document, *Mapper) {
	t.Helper()
	doc := mustOpen(data)
	body, err := doc.Body()
	if err != nil {
		t.Fatalf("Body() error = %v", err)
	}
	return doc, NewMapper(body)
}

func TestMapperFlatText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "single paragraph single run",
			body: paragraphXML("Hello world"),
			want: "Hello world",
		},
		{
			name: "multiple runs concatenate without separator",
			body: paragraphXML("Agree", "ment"),
			want: "Agreement",
		},
		{
			name: "paragraphs separated by blank line",
			body: paragraphXML("First") + paragraphXML("Second"),
			want: "First\n\nSecond",
		},
		{
			name: "empty paragraph still contributes separator",
			body: paragraphXML("First") + "<w:p></w:p>" + paragraphXML("Third"),
			want: "First\n\n\n\nThird",
		},
		{
			name: "no trailing separator after last paragraph",
			body: paragraphXML("Only"),
			want: "Only",
		},
		{
			name: "table cells flatten in row-major order without cell separator",
			body: paragraphXML("Before") +
				"<w:tbl><w:tr>" +
				"<w:tc>" + paragraphXML("A1") + "</w:tc>" +
				"<w:tc>" + paragraphXML("B1") + "</w:tc>" +
				"</w:tr><w:tr>" +
				"<w:tc>" + paragraphXML("A2") + "</w:tc>" +
				"<w:tc>" + paragraphXML("B2") + "</w:tc>" +
				"</w:tr></w:tbl>" +
				paragraphXML("After"),
			want: "Before\n\nA1\n\nB1\n\nA2\n\nB2\n\nAfter",
		},
		{
			name: "runs inside existing insertion wrappers are indexed",
			body: "<w:p>" + runXML("", "Keep ") +
				`<w:ins w:id="1" w:author="A" w:date="2026-01-01T00:00:00Z">` + runXML("", "added") + "</w:ins>" +
				"</w:p>",
			want: "Keep added",
		},
		{
			name: "deleted text does not contribute",
			body: "<w:p>" + runXML("", "Live ") +
				`<w:del w:id="1" w:author="A" w:date="2026-01-01T00:00:00Z">` +
				"<w:r><w:delText>gone</w:delText></w:r></w:del>" +
				"</w:p>",
			want: "Live ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mapper := openMapper(t, docxWithBody(tt.body))
			if got := mapper.FlatText(); got != tt.want {
				t.Errorf("FlatText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapperFindOccurrence(t *testing.T) {
	tests := []struct {
		name   string
		flat   string
		target string
		k      int
		want   int
	}{
		{"first occurrence", "one two one", "one", 0, 0},
		{"second occurrence", "one two one", "one", 1, 8},
		{"too few occurrences", "one two one", "one", 2, -1},
		{"absent target", "one two one", "three", 0, -1},
		{"empty target", "one", "", 0, -1},
		{"overlapping matches counted", "aaa", "aa", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findOccurrence(tt.flat, tt.target, tt.k); got != tt.want {
				t.Errorf("findOccurrence(%q, %q, %d) = %d, want %d", tt.flat, tt.target, tt.k, got, tt.want)
			}
		})
	}
}

func TestMapperResolve(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		target     string
		occurrence int
		wantErr    ResolveErrorKind
		wantSlices int
		check      func(t *testing.T, slices []RunSlice)
	}{
		{
			name:    "empty target",
			body:    paragraphXML("Hello"),
			target:  "",
			wantErr: EmptyTarget,
		},
		{
			name:    "target not found",
			body:    paragraphXML("Hello"),
			target:  "missing",
			wantErr: TargetNotFound,
		},
		{
			name:       "occurrence beyond matches",
			body:       paragraphXML("Hello"),
			target:     "Hello",
			occurrence: 1,
			wantErr:    TargetNotFound,
		},
		{
			name:       "single run interior",
			body:       paragraphXML("The term is 30 days."),
			target:     "30 days",
			wantSlices: 1,
			check: func(t *testing.T, slices []RunSlice) {
				if slices[0].Start != 12 || slices[0].End != 19 {
					t.Errorf("slice = [%d,%d), want [12,19)", slices[0].Start, slices[0].End)
				}
			},
		},
		{
			name:       "target spans adjacent runs",
			body:       paragraphXML("Agree", "ment"),
			target:     "greem",
			wantSlices: 2,
			check: func(t *testing.T, slices []RunSlice) {
				if slices[0].Start != 1 || slices[0].End != 5 {
					t.Errorf("first slice = [%d,%d), want [1,5)", slices[0].Start, slices[0].End)
				}
				if slices[1].Start != 0 || slices[1].End != 1 {
					t.Errorf("second slice = [%d,%d), want [0,1)", slices[1].Start, slices[1].End)
				}
			},
		},
		{
			name:       "range crossing paragraph gap skips virtual characters",
			body:       paragraphXML("end") + paragraphXML("start"),
			target:     "nd\n\nst",
			wantSlices: 2,
			check: func(t *testing.T, slices []RunSlice) {
				if slices[0].Start != 1 || slices[0].End != 3 {
					t.Errorf("first slice = [%d,%d), want [1,3)", slices[0].Start, slices[0].End)
				}
				if slices[1].Start != 0 || slices[1].End != 2 {
					t.Errorf("second slice = [%d,%d), want [0,2)", slices[1].Start, slices[1].End)
				}
			},
		},
		{
			name:    "target of only gap characters cannot resolve",
			body:    paragraphXML("a") + paragraphXML("b"),
			target:  "\n\n",
			wantErr: TargetNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mapper := openMapper(t, docxWithBody(tt.body))
			slices, err := mapper.Resolve(tt.target, tt.occurrence)
			if tt.wantErr != "" {
				if !IsResolveError(err, tt.wantErr) {
					t.Errorf("Resolve() error = %v, want kind %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(slices) != tt.wantSlices {
				t.Fatalf("Resolve() returned %d slices, want %d", len(slices), tt.wantSlices)
			}
			if tt.check != nil {
				tt.check(t, slices)
			}
		})
	}
}

func TestMapperSplitAt(t *testing.T) {
	t.Run("boundary offsets are no-ops", func(t *testing.T) {
		doc, mapper := openMapper(t, simpleDocxBytes("Hello"))
		entry := mapper.Entries()[0]

		tree, _ := doc.MainTree()
		before := string(serializeTree(tree))

		left, right := mapper.SplitAt(entry, 0)
		if left != nil || right != entry {
			t.Error("SplitAt(0) should return (nil, entry)")
		}
		left, right = mapper.SplitAt(entry, entry.Length)
		if left != entry || right != nil {
			t.Error("SplitAt(length) should return (entry, nil)")
		}

		if after := string(serializeTree(tree)); after != before {
			t.Error("boundary split must not change the serialized tree")
		}
		if len(mapper.Entries()) != 1 {
			t.Errorf("boundary split must not grow the index, got %d entries", len(mapper.Entries()))
		}
	})

	t.Run("interior split produces sibling runs with cloned properties", func(t *testing.T) {
		body := "<w:p>" + runXML(`<w:rPr><w:b/></w:rPr>`, "Agreement") + "</w:p>"
		doc, mapper := openMapper(t, docxWithBody(body))
		entry := mapper.Entries()[0]

		left, right := mapper.SplitAt(entry, 5)
		if left == nil || right == nil {
			t.Fatal("interior split must return both sides")
		}
		if got := elementText(left.Text); got != "Agree" {
			t.Errorf("left text = %q, want %q", got, "Agree")
		}
		if got := elementText(right.Text); got != "ment" {
			t.Errorf("right text = %q, want %q", got, "ment")
		}
		if left.Run.NextSibling != right.Run {
			t.Error("right run must be the immediate next sibling of the left run")
		}
		if runProperties(right.Run) == nil {
			t.Error("right run must carry a deep copy of the run properties")
		}
		if left.Length != 5 || right.Length != 4 {
			t.Errorf("entry lengths = %d,%d, want 5,4", left.Length, right.Length)
		}
		if right.Start != entry.Start+5 {
			t.Errorf("right start = %d, want %d", right.Start, entry.Start+5)
		}

		// The prefix text stays in the tree after splitting.
		tree, _ := doc.MainTree()
		if !strings.Contains(string(serializeTree(tree)), "Agree") {
			t.Error("serialized tree lost the prefix text")
		}
		if len(mapper.Entries()) != 2 {
			t.Errorf("index should have 2 entries after split, got %d", len(mapper.Entries()))
		}
	})

	t.Run("split copies space preservation to whitespace-edged children", func(t *testing.T) {
		_, mapper := openMapper(t, simpleDocxBytes("Hello world"))
		entry := mapper.Entries()[0]

		left, right := mapper.SplitAt(entry, 6)
		if got := elementText(left.Text); got != "Hello " {
			t.Fatalf("left text = %q, want %q", got, "Hello ")
		}
		if !hasSpacePreserve(left.Text) {
			t.Error("left text ends with whitespace and must carry xml:space=preserve")
		}
		if got := elementText(right.Text); got != "world" {
			t.Fatalf("right text = %q, want %q", got, "world")
		}
	})

	t.Run("splitting at an already-split boundary is idempotent", func(t *testing.T) {
		doc, mapper := openMapper(t, simpleDocxBytes("Agreement"))
		entry := mapper.Entries()[0]

		mapper.SplitAt(entry, 5)
		tree, _ := doc.MainTree()
		before := string(serializeTree(tree))

		// The boundary at offset 5 now falls exactly between two entries;
		// splitting either side at the shared boundary is a no-op.
		mapper.SplitAt(mapper.Entries()[0], 5)
		mapper.SplitAt(mapper.Entries()[1], 0)

		if after := string(serializeTree(tree)); after != before {
			t.Error("splitting at an already-split boundary must not change the tree")
		}
	})
}

func TestMapperInvariantAfterSplit(t *testing.T) {
	// After any split, every entry must still point at a run whose text
	// node content length equals the entry's length.
	_, mapper := openMapper(t, docxWithBody(paragraphXML("Hello", " there", " world")))

	mapper.SplitAt(mapper.Entries()[1], 3)
	mapper.SplitAt(mapper.Entries()[0], 2)

	for i, entry := range mapper.Entries() {
		if got := len(elementText(entry.Text)); got != entry.Length {
			t.Errorf("entry %d: text length %d != entry length %d", i, got, entry.Length)
		}
		if entry.Text.Parent != entry.Run {
			t.Errorf("entry %d: text node is not a child of its run", i)
		}
	}
}
