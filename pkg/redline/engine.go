package redline

import (
	"fmt"
	"sort"
	"strconv"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
)

// Engine orchestrates one redlining job over one opened document. It is
// single-threaded and non-reentrant: build it, call ApplyEdits once, save
// the document, and discard it.
type Engine struct {
	doc      *Document
	author   string
	now      time.Time
	strict   bool
	mapper   *Mapper
	comments *CommentsManager
	nextRev  int
	log      *Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAuthor sets the author recorded on revision markup and comments.
func WithAuthor(author string) EngineOption {
	return func(e *Engine) {
		if author != "" {
			e.author = author
		}
	}
}

// WithTimestamp sets the revision timestamp. Defaults to time.Now.
func WithTimestamp(now time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithStrictMode makes per-edit resolution failures abort the job instead
// of accumulating in the report.
func WithStrictMode(strict bool) EngineOption {
	return func(e *Engine) {
		e.strict = strict
	}
}

// NewEngine creates an engine for an opened document. Options default
// from the global configuration.
func NewEngine(doc *Document, opts ...EngineOption) *Engine {
	config := GetGlobalConfig()
	e := &Engine{
		doc:      doc,
		author:   config.Author,
		now:      time.Now(),
		strict:   config.StrictMode,
		comments: NewCommentsManager(doc),
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyEdits applies a batch of edits to a document using the caller's
// author name and timestamp. Convenience wrapper around NewEngine.
func ApplyEdits(doc *Document, edits []Edit, author string, now time.Time) (*Report, error) {
	engine := NewEngine(doc, WithAuthor(author), WithTimestamp(now))
	return engine.ApplyEdits(edits)
}

// resolvedEdit is an edit whose target or anchor has been mapped to an
// absolute flat-text range. For INSERT the range is the anchor's; the
// zero-length insertion point is the anchor's end.
type resolvedEdit struct {
	edit       Edit
	index      int
	start, end int
	revisionID int
}

// point returns the offset used for ordering and overlap checks.
func (r *resolvedEdit) point() int {
	if r.edit.Operation == OpInsert {
		return r.end
	}
	return r.start
}

// zeroLength reports whether the edit occupies no characters of its own.
func (r *resolvedEdit) zeroLength() bool {
	return r.edit.Operation == OpInsert
}

// ApplyEdits resolves, orders, and applies the edits, materializing each
// as revision markup. Resolution failures skip the single edit and are
// surfaced in the Report; failures during application are fatal and the
// caller must discard the document.
func (e *Engine) ApplyEdits(edits []Edit) (*Report, error) {
	report := &Report{JobID: uuid.NewString()}
	log := e.log.WithJob(report.JobID)

	body, err := e.doc.Body()
	if err != nil {
		return report, err
	}
	tree, err := e.doc.MainTree()
	if err != nil {
		return report, err
	}

	e.mapper = NewMapper(body)
	e.nextRev = maxRevisionID(tree) + 1

	log.Debug("resolving %d edits against %d characters of flat text", len(edits), len(e.mapper.FlatText()))

	// Resolve every edit against the pristine index and allocate revision
	// ids in input order, so that id sequence reflects the order edits
	// were presented even though application runs back-to-front.
	var accepted []*resolvedEdit
	for i, edit := range edits {
		resolved, err := e.resolve(edit, accepted)
		if err != nil {
			log.WithEdit(i, edit.Operation).Warn("skipping '%.30s': %v", edit.Target, err)
			report.Skipped++
			report.Skips = append(report.Skips, SkipReason{
				Index:  i,
				Edit:   edit.Operation,
				Target: edit.Target,
				Reason: err.Error(),
			})
			continue
		}
		resolved.index = i
		resolved.revisionID = e.nextRev
		e.nextRev++
		accepted = append(accepted, resolved)
	}
	report.Resolved = len(accepted)

	if e.strict && report.Skipped > 0 {
		return report, fmt.Errorf("strict mode: %d of %d edits failed to resolve", report.Skipped, len(edits))
	}

	// Back-to-front: every application happens at a flat offset strictly
	// below all prior ones, so precomputed ranges stay valid without
	// re-indexing.
	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].point() != accepted[j].point() {
			return accepted[i].point() > accepted[j].point()
		}
		return accepted[i].end > accepted[j].end
	})

	for _, resolved := range accepted {
		if err := e.apply(resolved); err != nil {
			return report, err
		}
		report.Applied++
		log.WithEdit(resolved.index, resolved.edit.Operation).Debug("applied at [%d,%d) rev=%d",
			resolved.start, resolved.end, resolved.revisionID)
	}

	if report.Applied > 0 {
		e.doc.touch(mainDocumentPart)
	}
	log.WithFields(Fields{"applied": report.Applied, "skipped": report.Skipped}).Info("job done")

	// The flat index is dead once mutations have been applied.
	e.mapper = nil
	return report, nil
}

// resolve normalizes one edit to an absolute flat range and checks it
// against the ranges already accepted.
func (e *Engine) resolve(edit Edit, accepted []*resolvedEdit) (*resolvedEdit, error) {
	if err := edit.Validate(); err != nil {
		return nil, &ResolveError{
			Kind:       InvalidEdit,
			Target:     edit.Target,
			Occurrence: edit.Occurrence,
			Cause:      err,
		}
	}

	// A beginning-of-document insertion has no preceding anchor; it is
	// rewritten to a modification of the first character.
	if edit.Operation == OpInsert && edit.Target == "" {
		flat := e.mapper.FlatText()
		if flat == "" {
			return nil, NewResolveError(AnchorNotFound, edit.Target, edit.Occurrence)
		}
		_, size := utf8.DecodeRuneInString(flat)
		first := flat[:size]
		edit = Edit{
			Operation:  OpModify,
			Target:     first,
			NewText:    edit.NewText + first,
			Comment:    edit.Comment,
			Occurrence: 0,
		}
	}

	if edit.Target == "" {
		return nil, NewResolveError(EmptyTarget, edit.Target, edit.Occurrence)
	}

	start := e.mapper.FindOccurrence(edit.Target, edit.Occurrence)
	if start < 0 {
		if edit.Operation == OpInsert {
			return nil, NewResolveError(AnchorNotFound, edit.Target, edit.Occurrence)
		}
		return nil, NewResolveError(TargetNotFound, edit.Target, edit.Occurrence)
	}
	end := start + len(edit.Target)

	if len(e.mapper.SlicesFor(start, end)) == 0 {
		// The match consists solely of virtual paragraph separators.
		if edit.Operation == OpInsert {
			return nil, NewResolveError(AnchorNotFound, edit.Target, edit.Occurrence)
		}
		return nil, NewResolveError(TargetNotFound, edit.Target, edit.Occurrence)
	}

	resolved := &resolvedEdit{edit: edit, start: start, end: end}
	for _, prior := range accepted {
		if rangesConflict(resolved, prior) {
			return nil, NewResolveError(OverlapConflict, edit.Target, edit.Occurrence)
		}
	}
	return resolved, nil
}

// rangesConflict reports whether two resolved edits touch the same
// characters. A zero-length insertion conflicts only when it falls
// strictly inside another edit's range.
func rangesConflict(a, b *resolvedEdit) bool {
	if a.zeroLength() && b.zeroLength() {
		return false
	}
	if a.zeroLength() {
		return b.start < a.point() && a.point() < b.end
	}
	if b.zeroLength() {
		return a.start < b.point() && b.point() < a.end
	}
	if a.start >= b.end || b.start >= a.end {
		return false
	}
	return true
}

// apply dispatches a resolved edit and attaches its comment if any.
func (e *Engine) apply(resolved *resolvedEdit) error {
	var first, last, lastRun *xmlquery.Node
	var err error

	switch resolved.edit.Operation {
	case OpDelete:
		first, last, lastRun, err = e.applyDelete(resolved)
	case OpInsert:
		first, last, lastRun, err = e.applyInsert(resolved)
	case OpModify:
		first, last, lastRun, err = e.applyModify(resolved)
	default:
		err = fmt.Errorf("unknown operation %q", resolved.edit.Operation)
	}
	if err != nil {
		return err
	}

	if resolved.edit.Comment != "" {
		if _, err := e.comments.Attach(first, last, lastRun, resolved.edit.Comment, e.author, e.now); err != nil {
			return err
		}
	}
	return nil
}

// applyDelete isolates the target range into whole runs, wraps each in a
// w:del sharing one revision id, and retags their text as deletion text.
// Returns the first wrapper, the last wrapper, and the last wrapped run.
func (e *Engine) applyDelete(resolved *resolvedEdit) (*xmlquery.Node, *xmlquery.Node, *xmlquery.Node, error) {
	runs, err := e.isolate(resolved.start, resolved.end)
	if err != nil {
		return nil, nil, nil, err
	}

	var first, last *xmlquery.Node
	for _, run := range runs {
		wrapper := e.newRevisionWrapper("del", resolved.revisionID)
		wrapNode(run, wrapper)
		retagDeletedText(run)
		if first == nil {
			first = wrapper
		}
		last = wrapper
	}
	return first, last, runs[len(runs)-1], nil
}

// applyInsert builds a fresh run for the new text, wraps it in a w:ins,
// and places it as the immediate next sibling of the anchor run.
func (e *Engine) applyInsert(resolved *resolvedEdit) (*xmlquery.Node, *xmlquery.Node, *xmlquery.Node, error) {
	slices := e.mapper.SlicesFor(resolved.start, resolved.end)
	if len(slices) == 0 {
		return nil, nil, nil, fmt.Errorf("anchor range [%d,%d) no longer maps to any run", resolved.start, resolved.end)
	}

	anchor := slices[len(slices)-1]
	var anchorRun *xmlquery.Node
	var following *IndexEntry
	if anchor.End < anchor.Entry.Length {
		left, right := e.mapper.SplitAt(anchor.Entry, anchor.End)
		anchorRun = left.Run
		following = right
	} else {
		anchorRun = anchor.Entry.Run
		following = e.mapper.EntryAfter(anchor.Entry)
	}

	props := e.inheritedProperties(resolved.edit.NewText, anchorRun, following)
	run := buildRun(props, resolved.edit.NewText)
	wrapper := e.newRevisionWrapper("ins", resolved.revisionID)
	appendChild(wrapper, run)
	insertAfter(revisionHost(anchorRun), wrapper)

	return wrapper, wrapper, run, nil
}

// applyModify deletes the target range and inserts the replacement run
// immediately before the first deletion wrapper, sharing its revision id
// so consumers render the pair as one replacement.
func (e *Engine) applyModify(resolved *resolvedEdit) (*xmlquery.Node, *xmlquery.Node, *xmlquery.Node, error) {
	firstDel, lastDel, lastRun, err := e.applyDelete(resolved)
	if err != nil {
		return nil, nil, nil, err
	}

	// The last deleted run is the style anchor for the replacement.
	var props *xmlquery.Node
	if lastRun != nil {
		if p := runProperties(lastRun); p != nil {
			props = cloneNode(p)
		}
	}

	run := buildRun(props, resolved.edit.NewText)
	wrapper := e.newRevisionWrapper("ins", resolved.revisionID)
	appendChild(wrapper, run)
	insertBefore(firstDel, wrapper)

	return wrapper, lastDel, lastRun, nil
}

// isolate splits boundary runs so the flat range [start, end) corresponds
// to a sequence of whole runs, returned in document order.
func (e *Engine) isolate(start, end int) ([]*xmlquery.Node, error) {
	slices := e.mapper.SlicesFor(start, end)
	if len(slices) == 0 {
		return nil, fmt.Errorf("range [%d,%d) no longer maps to any run", start, end)
	}

	if first := slices[0]; first.Start > 0 {
		_, right := e.mapper.SplitAt(first.Entry, first.Start)
		slices[0] = RunSlice{Entry: right, Start: 0, End: first.End - first.Start}
	}
	if last := slices[len(slices)-1]; last.End < last.Entry.Length {
		left, _ := e.mapper.SplitAt(last.Entry, last.End)
		slices[len(slices)-1] = RunSlice{Entry: left, Start: 0, End: left.Length}
	}

	var runs []*xmlquery.Node
	for _, slice := range slices {
		if len(runs) == 0 || runs[len(runs)-1] != slice.Entry.Run {
			runs = append(runs, slice.Entry.Run)
		}
	}
	return runs, nil
}

// inheritedProperties applies the style-inheritance rule for insertions:
// text ending in whitespace is treated as the prefix of the next word and
// copies the following run's properties; everything else copies the
// anchor run's.
func (e *Engine) inheritedProperties(newText string, anchorRun *xmlquery.Node, following *IndexEntry) *xmlquery.Node {
	last, _ := utf8.DecodeLastRuneInString(newText)
	if unicode.IsSpace(last) {
		if following != nil {
			if props := runProperties(following.Run); props != nil {
				return cloneNode(props)
			}
			return nil
		}
	}
	if anchorRun != nil {
		if props := runProperties(anchorRun); props != nil {
			return cloneNode(props)
		}
	}
	return nil
}

// buildRun constructs a detached w:r with the given (already cloned)
// properties and a single text child.
func buildRun(props *xmlquery.Node, text string) *xmlquery.Node {
	run := newWordElement("r")
	if props != nil {
		appendChild(run, props)
	}
	t := newWordElement("t")
	setElementText(t, text)
	if needsSpacePreserve(text) {
		setSpacePreserve(t)
	}
	appendChild(run, t)
	return run
}

// newRevisionWrapper constructs a w:ins or w:del carrying the revision
// id, author, and UTC timestamp.
func (e *Engine) newRevisionWrapper(kind string, id int) *xmlquery.Node {
	wrapper := newWordElement(kind)
	setWordAttr(wrapper, "id", strconv.Itoa(id))
	setWordAttr(wrapper, "author", e.author)
	setWordAttr(wrapper, "date", formatRevisionTime(e.now))
	return wrapper
}

// retagDeletedText rewrites a run's text children as deletion text so the
// characters no longer render as live content.
func retagDeletedText(run *xmlquery.Node) {
	for child := run.FirstChild; child != nil; child = child.NextSibling {
		if isWordElement(child, "t") {
			child.Data = "delText"
		}
	}
}

// revisionHost walks up from a run to the outermost enclosing revision
// wrapper, if any, so new wrappers become its siblings instead of
// nesting inside it.
func revisionHost(run *xmlquery.Node) *xmlquery.Node {
	host := run
	for host.Parent != nil && (isWordElement(host.Parent, "ins") || isWordElement(host.Parent, "del")) {
		host = host.Parent
	}
	return host
}

// maxRevisionID scans a document tree for the highest revision id already
// present on insertion or deletion wrappers.
func maxRevisionID(tree *xmlquery.Node) int {
	max := 0
	walkElements(tree, func(n *xmlquery.Node) bool {
		if isWordElement(n, "ins") || isWordElement(n, "del") {
			if id, err := strconv.Atoi(wordAttr(n, "id")); err == nil && id > max {
				max = id
			}
		}
		return true
	})
	return max
}
