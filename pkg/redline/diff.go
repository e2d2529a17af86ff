package redline

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// insertAnchorLength bounds how much trailing context of the preceding
// unchanged text is used to anchor an insertion.
const insertAnchorLength = 50

// GenerateEdits compares an original and a modified text and produces the
// edit list that transforms one into the other. Deletions target the
// removed text, insertions anchor on the tail of the last unchanged
// chunk, and an adjacent delete/insert pair collapses into a single
// modification. A leading insertion with no anchor is rewritten to a
// modification of the following chunk's first word.
func GenerateEdits(original, modified string) []Edit {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, modified, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var edits []Edit
	cursor := 0
	lastEqual := ""

	for i, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			lastEqual = d.Text
			cursor += len(d.Text)

		case diffmatchpatch.DiffDelete:
			edits = append(edits, Edit{
				Operation:  OpDelete,
				Target:     d.Text,
				Occurrence: occurrenceBefore(original, d.Text, cursor),
			})
			cursor += len(d.Text)

		case diffmatchpatch.DiffInsert:
			anchor := anchorTail(lastEqual)
			if anchor == "" {
				if rewritten, ok := rewriteLeadingInsert(diffs, i, d.Text); ok {
					edits = append(edits, rewritten)
				}
				continue
			}
			edits = append(edits, Edit{
				Operation:  OpInsert,
				Target:     anchor,
				NewText:    d.Text,
				Occurrence: occurrenceBefore(original, anchor, cursor-len(anchor)),
			})
		}
	}

	return mergeReplacements(edits)
}

// anchorTail returns up to insertAnchorLength trailing bytes of text,
// trimmed forward to a rune boundary.
func anchorTail(text string) string {
	if len(text) <= insertAnchorLength {
		return text
	}
	tail := text[len(text)-insertAnchorLength:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return tail
}

// rewriteLeadingInsert converts an insertion at the very start of the
// document into a modification of the first chunk of the following
// unchanged text, which gives the engine a resolvable target.
func rewriteLeadingInsert(diffs []diffmatchpatch.Diff, i int, text string) (Edit, bool) {
	if i+1 >= len(diffs) || diffs[i+1].Type != diffmatchpatch.DiffEqual {
		return Edit{}, false
	}
	next := diffs[i+1].Text
	target := next
	if idx := strings.Index(next, " "); idx > 0 {
		target = next[:idx]
	} else if len(next) > 20 {
		target = next[:20]
	}
	if target == "" {
		return Edit{}, false
	}
	return Edit{
		Operation: OpModify,
		Target:    target,
		NewText:   text + target,
	}, true
}

// occurrenceBefore returns how many literal matches of target start
// before offset at, which is the occurrence index of the match located
// exactly there. Matches are counted allowing overlap, like edit
// resolution does.
func occurrenceBefore(s, target string, at int) int {
	if target == "" {
		return 0
	}
	count := 0
	from := 0
	for {
		idx := strings.Index(s[from:], target)
		if idx < 0 {
			return count
		}
		idx += from
		if idx >= at {
			return count
		}
		count++
		from = idx + 1
	}
}

// mergeReplacements collapses each DELETE immediately followed by the
// INSERT produced at the same diff point into one MODIFY, giving the
// engine a specific target to replace.
func mergeReplacements(edits []Edit) []Edit {
	var merged []Edit
	i := 0
	for i < len(edits) {
		current := edits[i]
		if i+1 < len(edits) &&
			current.Operation == OpDelete &&
			edits[i+1].Operation == OpInsert {
			merged = append(merged, Edit{
				Operation:  OpModify,
				Target:     current.Target,
				NewText:    edits[i+1].NewText,
				Occurrence: current.Occurrence,
			})
			i += 2
			continue
		}
		merged = append(merged, current)
		i++
	}
	return merged
}
