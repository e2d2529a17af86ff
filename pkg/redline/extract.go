package redline

// ExtractText returns the flat logical text of a document: every text
// node in document order, with a blank-line separator between paragraphs.
// The same projection rules drive edit resolution, so text extracted here
// can be diffed and the resulting edits applied without offset drift.
func ExtractText(data []byte) (string, error) {
	doc, err := OpenDocument(data)
	if err != nil {
		return "", err
	}
	return doc.FlatText()
}

// FlatText returns the flat logical text of an opened document.
func (d *Document) FlatText() (string, error) {
	body, err := d.Body()
	if err != nil {
		return "", err
	}
	return NewMapper(body).FlatText(), nil
}
