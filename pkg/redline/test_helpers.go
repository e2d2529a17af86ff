// test_helpers.go contains fixture builders shared by the package tests.
// These should not be used in production code.

package redline

import (
	"archive/zip"
	"bytes"
	"strings"
)

const minimalContentTypesXML = xmlHeader + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const minimalPackageRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const minimalDocumentRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

// buildDocxBytes assembles an in-memory DOCX from part name to payload.
func buildDocxBytes(parts map[string]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{contentTypesPart, "_rels/.rels", mainDocumentPart, documentRelsPart} {
		if content, ok := parts[name]; ok {
			f, _ := w.Create(name)
			f.Write([]byte(content))
			delete(parts, name)
		}
	}
	for name, content := range parts {
		f, _ := w.Create(name)
		f.Write([]byte(content))
	}
	w.Close()
	return buf.Bytes()
}

// wrapDocumentXML wraps body-level markup in a document root with the
// wordprocessingML namespace bound to the usual prefix.
func wrapDocumentXML(body string) string {
	return xmlHeader +
		`<w:document xmlns:w="` + wordNamespace + `"><w:body>` + body + `</w:body></w:document>`
}

// docxWithBody builds a complete minimal DOCX around body-level markup.
func docxWithBody(body string) []byte {
	return buildDocxBytes(map[string]string{
		contentTypesPart: minimalContentTypesXML,
		"_rels/.rels":    minimalPackageRelsXML,
		mainDocumentPart: wrapDocumentXML(body),
		documentRelsPart: minimalDocumentRelsXML,
	})
}

// runXML renders a single run with optional properties markup.
func runXML(propsXML, text string) string {
	t := "<w:t>" + escapeXMLText(text) + "</w:t>"
	if text != strings.TrimSpace(text) {
		t = `<w:t xml:space="preserve">` + escapeXMLText(text) + "</w:t>"
	}
	return "<w:r>" + propsXML + t + "</w:r>"
}

// paragraphXML renders a paragraph of single-run texts.
func paragraphXML(texts ...string) string {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	for _, text := range texts {
		sb.WriteString(runXML("", text))
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

// simpleDocxBytes builds a DOCX with one single-run paragraph per string.
func simpleDocxBytes(paragraphs ...string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(paragraphXML(p))
	}
	return docxWithBody(body.String())
}

func escapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// mustOpen opens fixture bytes, panicking on failure; fixtures are
// always valid by construction.
func mustOpen(data []byte) *Document {
	doc, err := OpenDocument(data)
	if err != nil {
		panic(err)
	}
	return doc
}
