package redline

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Relationship represents a relationship in the DOCX package.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Relationships represents the collection of relationships of a part.
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// ContentTypeDefault maps a file extension to a content type.
type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypeOverride maps a single part to a content type.
type ContentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypes represents the package content-type registry.
type ContentTypes struct {
	XMLName   xml.Name              `xml:"Types"`
	Namespace string                `xml:"xmlns,attr"`
	Defaults  []ContentTypeDefault  `xml:"Default"`
	Overrides []ContentTypeOverride `xml:"Override"`
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const emptyCommentsXML = xmlHeader +
	`<w:comments xmlns:w="` + wordNamespace + `"></w:comments>`

const emptyRelationshipsXML = xmlHeader +
	`<Relationships xmlns="` + relationshipNamespace + `"></Relationships>`

// Document is an opened DOCX package: a map from part name to payload plus
// lazily parsed XML trees for the parts the engine mutates. Untouched
// parts are written back byte-for-byte on Save.
type Document struct {
	order   []string
	parts   map[string][]byte
	touched map[string]bool

	mainTree     *xmlquery.Node
	commentsTree *xmlquery.Node

	relationships *Relationships
	contentTypes  *ContentTypes
}

// OpenDocument opens a DOCX archive from raw bytes. It fails with
// MalformedPackage if the bytes are not a readable zip and MissingMainPart
// if word/document.xml is absent.
func OpenDocument(data []byte) (*Document, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewPackageError(MalformedPackage, "", err)
	}

	doc := &Document{
		parts:   make(map[string][]byte),
		touched: make(map[string]bool),
	}

	for _, file := range zipReader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, NewPackageError(MalformedPackage, file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, NewPackageError(MalformedPackage, file.Name, err)
		}
		if _, seen := doc.parts[file.Name]; !seen {
			doc.order = append(doc.order, file.Name)
		}
		doc.parts[file.Name] = content
	}

	if _, ok := doc.parts[mainDocumentPart]; !ok {
		return nil, NewPackageError(MissingMainPart, mainDocumentPart, nil)
	}

	return doc, nil
}

// HasPart reports whether the package contains the named part.
func (d *Document) HasPart(name string) bool {
	_, ok := d.parts[name]
	return ok
}

// Part returns the raw payload of the named part.
func (d *Document) Part(name string) ([]byte, error) {
	content, ok := d.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	return content, nil
}

// PartNames returns all part names in archive order.
func (d *Document) PartNames() []string {
	names := make([]string, len(d.order))
	copy(names, d.order)
	return names
}

// MainTree returns the parsed root of the main document part. The tree is
// parsed once and cached; mutations are picked up by Save after touch().
func (d *Document) MainTree() (*xmlquery.Node, error) {
	if d.mainTree != nil {
		return d.mainTree, nil
	}
	tree, err := xmlquery.Parse(bytes.NewReader(d.parts[mainDocumentPart]))
	if err != nil {
		return nil, NewPackageError(MalformedPackage, mainDocumentPart, err)
	}
	d.mainTree = tree
	return tree, nil
}

// Body returns the w:body element of the main document part.
func (d *Document) Body() (*xmlquery.Node, error) {
	tree, err := d.MainTree()
	if err != nil {
		return nil, err
	}
	body := findFirstElement(tree, "body")
	if body == nil {
		return nil, NewPackageError(MissingMainPart, mainDocumentPart, fmt.Errorf("document has no body element"))
	}
	return body, nil
}

// CommentsTree returns the parsed root of the comments part, creating an
// empty part if the package has none. Idempotent.
func (d *Document) CommentsTree() (*xmlquery.Node, error) {
	if d.commentsTree != nil {
		return d.commentsTree, nil
	}

	source, ok := d.parts[commentsPart]
	if !ok {
		source = []byte(emptyCommentsXML)
		d.parts[commentsPart] = source
		d.order = append(d.order, commentsPart)
	}

	tree, err := xmlquery.Parse(bytes.NewReader(source))
	if err != nil {
		return nil, NewPackageError(CommentPartWriteFailure, commentsPart, err)
	}
	d.commentsTree = tree
	return tree, nil
}

// EnsureCommentsRelationship registers the main-to-comments relationship
// and the comments content type if not already present. Idempotent.
func (d *Document) EnsureCommentsRelationship() error {
	rels, err := d.loadRelationships()
	if err != nil {
		return err
	}

	found := false
	for _, rel := range rels.Relationship {
		if rel.Type == commentsRelationshipType {
			found = true
			break
		}
	}
	if !found {
		rels.Relationship = append(rels.Relationship, Relationship{
			ID:     nextRelationshipID(rels.Relationship),
			Type:   commentsRelationshipType,
			Target: "comments.xml",
		})
		d.touch(documentRelsPart)
	}

	types, err := d.loadContentTypes()
	if err != nil {
		return err
	}

	registered := false
	for _, override := range types.Overrides {
		if override.PartName == "/"+commentsPart {
			registered = true
			break
		}
	}
	if !registered {
		types.Overrides = append(types.Overrides, ContentTypeOverride{
			PartName:    "/" + commentsPart,
			ContentType: commentsContentType,
		})
		d.touch(contentTypesPart)
	}

	return nil
}

// loadRelationships parses the main part's relationships, creating an
// empty collection when the part is absent.
func (d *Document) loadRelationships() (*Relationships, error) {
	if d.relationships != nil {
		return d.relationships, nil
	}

	source, ok := d.parts[documentRelsPart]
	if !ok {
		source = []byte(emptyRelationshipsXML)
		d.parts[documentRelsPart] = source
		d.order = append(d.order, documentRelsPart)
	}

	var rels Relationships
	if err := xml.Unmarshal(source, &rels); err != nil {
		return nil, NewPackageError(MalformedPackage, documentRelsPart, err)
	}
	rels.Namespace = relationshipNamespace
	d.relationships = &rels
	return d.relationships, nil
}

// loadContentTypes parses the package content-type registry.
func (d *Document) loadContentTypes() (*ContentTypes, error) {
	if d.contentTypes != nil {
		return d.contentTypes, nil
	}

	source, ok := d.parts[contentTypesPart]
	if !ok {
		return nil, NewPackageError(MalformedPackage, contentTypesPart, fmt.Errorf("package has no content-type registry"))
	}

	var types ContentTypes
	if err := xml.Unmarshal(source, &types); err != nil {
		return nil, NewPackageError(MalformedPackage, contentTypesPart, err)
	}
	types.Namespace = contentTypesNamespace
	d.contentTypes = &types
	return d.contentTypes, nil
}

// nextRelationshipID allocates the lowest free rId above the maximum in use.
func nextRelationshipID(rels []Relationship) string {
	max := 0
	for _, rel := range rels {
		if strings.HasPrefix(rel.ID, "rId") {
			if n, err := strconv.Atoi(rel.ID[3:]); err == nil && n > max {
				max = n
			}
		}
	}
	return "rId" + strconv.Itoa(max+1)
}

// touch marks a part as modified so Save re-serializes it.
func (d *Document) touch(name string) {
	d.touched[name] = true
}

// Save re-serializes every touched part and copies untouched parts
// byte-for-byte, preserving the archive order of the input.
func (d *Document) Save() ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	for _, name := range d.order {
		payload, err := d.partPayload(name)
		if err != nil {
			return nil, err
		}
		fw, err := w.Create(name)
		if err != nil {
			return nil, NewPackageError(SerializationFailure, name, err)
		}
		if _, err := fw.Write(payload); err != nil {
			return nil, NewPackageError(SerializationFailure, name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, NewPackageError(SerializationFailure, "", err)
	}
	return buf.Bytes(), nil
}

// partPayload returns the bytes to write for a part: the re-serialized
// tree or struct when touched, the original payload otherwise.
func (d *Document) partPayload(name string) ([]byte, error) {
	if !d.touched[name] {
		return d.parts[name], nil
	}

	switch name {
	case mainDocumentPart:
		if d.mainTree == nil {
			return d.parts[name], nil
		}
		return serializeTree(d.mainTree), nil

	case commentsPart:
		if d.commentsTree == nil {
			return d.parts[name], nil
		}
		payload := serializeTree(d.commentsTree)
		if len(payload) == 0 {
			return nil, NewPackageError(CommentPartWriteFailure, commentsPart, fmt.Errorf("empty serialization"))
		}
		return payload, nil

	case documentRelsPart:
		output, err := xml.Marshal(d.relationships)
		if err != nil {
			return nil, NewPackageError(SerializationFailure, name, err)
		}
		return append([]byte(xmlHeader), output...), nil

	case contentTypesPart:
		output, err := xml.Marshal(d.contentTypes)
		if err != nil {
			return nil, NewPackageError(SerializationFailure, name, err)
		}
		return append([]byte(xmlHeader), output...), nil
	}

	return d.parts[name], nil
}

// Relationships returns a copy of the main part's relationship list,
// sorted by ID for stable inspection.
func (d *Document) Relationships() ([]Relationship, error) {
	rels, err := d.loadRelationships()
	if err != nil {
		return nil, err
	}
	out := append([]Relationship(nil), rels.Relationship...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
