package callcontrol

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Element is a generic node of a parsed call-control document.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []Element  `xml:",any"`
}

// Parse decodes a rendered document, mainly for inspection in tests and tooling.
func Parse(document string) (*Element, error) {
	var root Element
	if err := xml.Unmarshal([]byte(document), &root); err != nil {
		return nil, fmt.Errorf("failed to parse call-control document: %w", err)
	}

	if root.XMLName.Local != "Response" {
		return nil, fmt.Errorf("unexpected root element %q", root.XMLName.Local)
	}

	return &root, nil
}

func (el *Element) Name() string {
	return el.XMLName.Local
}

func (el *Element) Attr(name string) string {
	for _, attr := range el.Attrs {
		if attr.Name.Local == name {
			return attr.Value
		}
	}

	return ""
}

func (el *Element) Value() string {
	return strings.TrimSpace(el.Text)
}

// Find returns the first descendant with the given name, depth first.
func (el *Element) Find(name string) *Element {
	for i := range el.Children {
		child := &el.Children[i]
		if child.Name() == name {
			return child
		}

		if found := child.Find(name); found != nil {
			return found
		}
	}

	return nil
}

// Names lists the top-level verb names in order.
func (el *Element) Names() []string {
	names := make([]string, 0, len(el.Children))
	for _, child := range el.Children {
		names = append(names, child.Name())
	}

	return names
}
