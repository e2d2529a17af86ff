package redline

import (
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Namespace URIs and part names used throughout the package.
const (
	wordNamespace         = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	xmlSpaceNamespace     = "http://www.w3.org/XML/1998/namespace"
	relationshipNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"
	contentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"

	commentsRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
	commentsContentType      = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"

	mainDocumentPart = "word/document.xml"
	commentsPart     = "word/comments.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"
)

// isWordElement reports whether n is an element named local in the
// wordprocessingML namespace. Documents produced by Word always bind the
// namespace to the "w" prefix, but we accept any prefix bound to the URI.
func isWordElement(n *xmlquery.Node, local string) bool {
	if n == nil || n.Type != xmlquery.ElementNode || n.Data != local {
		return false
	}
	return n.NamespaceURI == wordNamespace || n.Prefix == "w"
}

// newWordElement creates a detached w:<local> element.
func newWordElement(local string) *xmlquery.Node {
	return &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       "w",
		NamespaceURI: wordNamespace,
	}
}

// wordAttr returns the value of the w:<local> attribute, or "" if absent.
// The attribute name's Space holds the prefix or the namespace URI
// depending on how the node was produced; both are accepted.
func wordAttr(n *xmlquery.Node, local string) string {
	for _, attr := range n.Attr {
		if attr.Name.Local != local {
			continue
		}
		switch attr.Name.Space {
		case "w", "", wordNamespace:
			return attr.Value
		}
	}
	return ""
}

// setWordAttr sets the w:<local> attribute, replacing an existing value.
func setWordAttr(n *xmlquery.Node, local, value string) {
	for i, attr := range n.Attr {
		if attr.Name.Local == local && attr.Name.Space == "w" {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:         xml.Name{Space: "w", Local: local},
		Value:        value,
		NamespaceURI: wordNamespace,
	})
}

// setSpacePreserve marks a text element with xml:space="preserve".
func setSpacePreserve(n *xmlquery.Node) {
	for _, attr := range n.Attr {
		if attr.Name.Space == "xml" && attr.Name.Local == "space" {
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:         xml.Name{Space: "xml", Local: "space"},
		Value:        "preserve",
		NamespaceURI: xmlSpaceNamespace,
	})
}

// hasSpacePreserve reports whether n carries xml:space="preserve".
func hasSpacePreserve(n *xmlquery.Node) bool {
	for _, attr := range n.Attr {
		if attr.Name.Space == "xml" && attr.Name.Local == "space" {
			return attr.Value == "preserve"
		}
	}
	return false
}

// needsSpacePreserve reports whether text would be at risk of whitespace
// trimming by consumers and therefore needs xml:space="preserve".
func needsSpacePreserve(text string) bool {
	return text != strings.TrimSpace(text)
}

// elementText returns the character content of an element (all text node
// descendants concatenated).
func elementText(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return n.InnerText()
}

// setElementText replaces the children of n with a single text node. An
// empty string leaves the element without children.
func setElementText(n *xmlquery.Node, text string) {
	n.FirstChild = nil
	n.LastChild = nil
	if text == "" {
		return
	}
	appendChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
}

// cloneNode deep-copies a node, its attributes, and its descendants. The
// clone is detached from any tree.
func cloneNode(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]xmlquery.Attr(nil), n.Attr...)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		appendChild(c, cloneNode(child))
	}
	return c
}

// appendChild attaches n as the last child of parent.
func appendChild(parent, n *xmlquery.Node) {
	n.Parent = parent
	n.NextSibling = nil
	if parent.FirstChild == nil {
		parent.FirstChild = n
		n.PrevSibling = nil
	} else {
		last := parent.LastChild
		last.NextSibling = n
		n.PrevSibling = last
	}
	parent.LastChild = n
}

// insertAfter attaches n as the immediate next sibling of ref. Revision
// wrappers rely on immediate-sibling placement rather than positional
// index arithmetic on the parent.
func insertAfter(ref, n *xmlquery.Node) {
	n.Parent = ref.Parent
	n.PrevSibling = ref
	n.NextSibling = ref.NextSibling
	if ref.NextSibling != nil {
		ref.NextSibling.PrevSibling = n
	} else if ref.Parent != nil {
		ref.Parent.LastChild = n
	}
	ref.NextSibling = n
}

// insertBefore attaches n as the immediate previous sibling of ref.
func insertBefore(ref, n *xmlquery.Node) {
	n.Parent = ref.Parent
	n.NextSibling = ref
	n.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if ref.Parent != nil {
		ref.Parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// detach unlinks n from its parent and siblings.
func detach(n *xmlquery.Node) {
	if n.Parent != nil {
		if n.Parent.FirstChild == n {
			n.Parent.FirstChild = n.NextSibling
		}
		if n.Parent.LastChild == n {
			n.Parent.LastChild = n.PrevSibling
		}
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// wrapNode replaces n in the tree with wrapper and re-attaches n as
// wrapper's child.
func wrapNode(n, wrapper *xmlquery.Node) {
	insertBefore(n, wrapper)
	detach(n)
	appendChild(wrapper, n)
}

// walkElements visits every element in document order under root, depth
// first. Returning false from visit stops descent into that element's
// subtree but continues with its siblings.
func walkElements(root *xmlquery.Node, visit func(*xmlquery.Node) bool) {
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if visit(child) {
			walkElements(child, visit)
		}
	}
}

// findFirstElement returns the first element named local in the
// wordprocessingML namespace under root, in document order.
func findFirstElement(root *xmlquery.Node, local string) *xmlquery.Node {
	var found *xmlquery.Node
	walkElements(root, func(n *xmlquery.Node) bool {
		if found != nil {
			return false
		}
		if isWordElement(n, local) {
			found = n
			return false
		}
		return true
	})
	return found
}

// runProperties returns the run's rPr child, or nil.
func runProperties(run *xmlquery.Node) *xmlquery.Node {
	for child := run.FirstChild; child != nil; child = child.NextSibling {
		if isWordElement(child, "rPr") {
			return child
		}
	}
	return nil
}

// serializeTree renders a parsed part back to bytes. xmlquery preserves
// element and attribute prefixes exactly as parsed, which Office consumers
// require.
func serializeTree(root *xmlquery.Node) []byte {
	return []byte(root.OutputXML(true))
}
