package redline

import (
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var commentExpr = xpath.MustCompile("//w:comment")

// CommentsManager allocates comment ids, maintains the comments part, and
// writes anchor markers into the document body.
type CommentsManager struct {
	doc *Document
}

// NewCommentsManager creates a comments manager for an opened document.
func NewCommentsManager(doc *Document) *CommentsManager {
	return &CommentsManager{doc: doc}
}

// NextID returns the next free comment id: one above the maximum id found
// in the comments part. Ids are monotonic per save.
func (c *CommentsManager) NextID() (int, error) {
	tree, err := c.doc.CommentsTree()
	if err != nil {
		return 0, err
	}
	max := -1
	for _, comment := range xmlquery.QuerySelectorAll(tree, commentExpr) {
		if id, err := strconv.Atoi(wordAttr(comment, "id")); err == nil && id > max {
			max = id
		}
	}
	return max + 1, nil
}

// Attach anchors a new comment around the sibling range [first, last] in
// the body and records it in the comments part:
//
//   - w:commentRangeStart{id} becomes the immediately preceding sibling
//     of first,
//   - w:commentRangeEnd{id} the immediately following sibling of last,
//   - a run containing only w:commentReference{id} follows the end
//     marker, inheriting the properties of lastRun.
//
// Returns the allocated id.
func (c *CommentsManager) Attach(first, last, lastRun *xmlquery.Node, text, author string, now time.Time) (int, error) {
	id, err := c.NextID()
	if err != nil {
		return 0, err
	}
	idStr := strconv.Itoa(id)

	rangeStart := newWordElement("commentRangeStart")
	setWordAttr(rangeStart, "id", idStr)
	insertBefore(first, rangeStart)

	rangeEnd := newWordElement("commentRangeEnd")
	setWordAttr(rangeEnd, "id", idStr)
	insertAfter(last, rangeEnd)

	refRun := newWordElement("r")
	if lastRun != nil {
		if props := runProperties(lastRun); props != nil {
			appendChild(refRun, cloneNode(props))
		}
	}
	ref := newWordElement("commentReference")
	setWordAttr(ref, "id", idStr)
	appendChild(refRun, ref)
	insertAfter(rangeEnd, refRun)

	if err := c.appendCommentEntry(id, text, author, now); err != nil {
		return 0, err
	}
	if err := c.doc.EnsureCommentsRelationship(); err != nil {
		return 0, err
	}

	c.doc.touch(commentsPart)
	return id, nil
}

// appendCommentEntry appends a w:comment element to the comments part,
// one paragraph per line of the body text.
func (c *CommentsManager) appendCommentEntry(id int, text, author string, now time.Time) error {
	tree, err := c.doc.CommentsTree()
	if err != nil {
		return err
	}
	root := findFirstElement(tree, "comments")
	if root == nil {
		return NewPackageError(CommentPartWriteFailure, commentsPart, nil)
	}

	initials := GetGlobalConfig().Initials
	if initials == "" {
		initials = initialsFor(author)
	}

	comment := newWordElement("comment")
	setWordAttr(comment, "id", strconv.Itoa(id))
	setWordAttr(comment, "author", author)
	setWordAttr(comment, "initials", initials)
	setWordAttr(comment, "date", formatRevisionTime(now))

	for _, line := range strings.Split(text, "\n") {
		p := newWordElement("p")
		run := newWordElement("r")
		t := newWordElement("t")
		setElementText(t, line)
		if needsSpacePreserve(line) {
			setSpacePreserve(t)
		}
		appendChild(run, t)
		appendChild(p, run)
		appendChild(comment, p)
	}

	appendChild(root, comment)
	return nil
}

// initialsFor derives reviewer initials from an author name: the first
// letter of each of the first three words, uppercased.
func initialsFor(author string) string {
	var initials strings.Builder
	for i, word := range strings.Fields(author) {
		if i == 3 {
			break
		}
		initials.WriteString(strings.ToUpper(word[:1]))
	}
	if initials.Len() == 0 {
		return "?"
	}
	return initials.String()
}

// formatRevisionTime renders a timestamp the way revision markup expects:
// ISO-8601 in UTC with a Z suffix and no sub-second precision.
func formatRevisionTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
