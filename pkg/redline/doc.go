// Package redline applies tracked-change edits to Microsoft Word
// documents (DOCX). Given an original document and a list of semantic
// edits (insert / delete / modify, each with an optional review comment),
// it produces a new document in which every edit is materialized as
// native revision markup (w:ins, w:del, comment anchors) while preserving
// all structural XML the edit does not touch: styles, headers, footers,
// numbering, field codes, images, and formatting.
//
// Basic Usage:
//
//	data, err := os.ReadFile("contract.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc, err := redline.OpenDocument(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	edits := []redline.Edit{
//	    {Operation: redline.OpModify, Target: "30 days", NewText: "sixty (60) days"},
//	    {Operation: redline.OpDelete, Target: "at its sole discretion", Comment: "Too one-sided"},
//	}
//
//	report, err := redline.ApplyEdits(doc, edits, "Jane Reviewer", time.Now())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("%d applied, %d skipped", report.Applied, report.Skipped)
//
//	out, err := doc.Save()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("contract_redlined.docx", out, 0o644)
//
// Edits address the document through its flat text: the concatenation of
// every text run in document order with a blank line between paragraphs,
// exactly what ExtractText returns. GenerateEdits builds an edit list
// from two versions of that text.
package redline
