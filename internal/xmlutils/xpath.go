// Package xmlutils evaluates XPath expressions over XML and HTML documents and
// normalizes the extracted text.
package xmlutils

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/xmlpath.v2"
)

// ParseHTML parses a possibly malformed HTML document into an XPath-queryable tree.
func ParseHTML(r io.Reader) (*xmlpath.Node, error) {
	root, err := xmlpath.ParseHTML(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return root, nil
}

// ParseXML parses a well-formed XML document.
func ParseXML(r io.Reader) (*xmlpath.Node, error) {
	root, err := xmlpath.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return root, nil
}

// ParseHTMLString is ParseHTML over an in-memory document.
func ParseHTMLString(doc string) (*xmlpath.Node, error) {
	return ParseHTML(bytes.NewBufferString(doc))
}

// ExtractAll returns the cleaned text of every node selected by xpath.
func ExtractAll(root *xmlpath.Node, xpath string) ([]string, error) {
	path, err := xmlpath.Compile(xpath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile XPath %q: %w", xpath, err)
	}

	var values []string
	iter := path.Iter(root)
	for iter.Next() {
		values = append(values, CleanText(iter.Node().String()))
	}
	return values, nil
}

// ExtractFirst returns the first non-empty value selected by xpath.
func ExtractFirst(root *xmlpath.Node, xpath string) (string, bool, error) {
	values, err := ExtractAll(root, xpath)
	if err != nil {
		return "", false, err
	}
	for _, v := range values {
		if v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

// GetOrEmpty returns slice[index], or "" when index is out of bounds.
func GetOrEmpty(slice []string, index int) string {
	if index >= 0 && index < len(slice) {
		return slice[index]
	}
	return ""
}

// CleanText collapses whitespace runs, including non-breaking spaces, into one space.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
