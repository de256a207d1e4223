// Package parser splits TextCase documents into YAML frontmatter and body and
// edits the frontmatter without disturbing the body bytes.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/models"
)

const (
	delim    = "---"
	linksKey = "links"
)

// Document is a Markdown file split into frontmatter and body.
type Document struct {
	front *yaml.Node // mapping node, never nil after Parse
	// Body holds every byte after the closing frontmatter delimiter, unchanged.
	Body []byte
}

// Parse splits raw document bytes. Content without a leading "---" line has
// no frontmatter and is returned entirely as body. Frontmatter that is not a
// YAML mapping is reported as apperr.ErrMalformedDocument.
func Parse(data []byte) (*Document, error) {
	block, body, ok := split(data)
	doc := &Document{front: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, Body: body}
	if !ok {
		return doc, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(block, &root); err != nil {
		return nil, fmt.Errorf("%w: frontmatter: %v", apperr.ErrMalformedDocument, err)
	}
	if root.Kind == 0 {
		return doc, nil
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 {
		return nil, fmt.Errorf("%w: frontmatter is not a mapping", apperr.ErrMalformedDocument)
	}
	m := root.Content[0]
	if m.Kind == yaml.ScalarNode && m.Tag == "!!null" {
		return doc, nil
	}
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: frontmatter is not a mapping", apperr.ErrMalformedDocument)
	}
	doc.front = m
	return doc, nil
}

// split separates the YAML block between the leading delimiters from the body.
func split(data []byte) (block, body []byte, ok bool) {
	first, rest, found := cutLine(data)
	if !found || strings.TrimRight(string(first), " \t\r") != delim {
		return nil, data, false
	}
	start := len(data) - len(rest)
	offset := start
	for len(rest) > 0 {
		line, next, _ := cutLine(rest)
		if strings.TrimRight(string(line), " \t\r") == delim {
			return data[start:offset], next, true
		}
		offset += len(rest) - len(next)
		rest = next
	}
	// No closing delimiter: everything is body.
	return nil, data, false
}

func cutLine(data []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i], data[i+1:], true
	}
	return data, nil, len(data) > 0
}

// Render serializes the document. An empty frontmatter is omitted entirely.
func (d *Document) Render() ([]byte, error) {
	if len(d.front.Content) == 0 {
		return append([]byte(nil), d.Body...), nil
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.front); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	buf.WriteString(delim + "\n")
	buf.Write(d.Body)
	return buf.Bytes(), nil
}

// Links returns the outgoing edges in stored order. A target with a null
// value has no labels; a scalar value is a single label.
func (d *Document) Links() ([]models.Link, error) {
	v := d.lookup(linksKey)
	if v == nil || (v.Kind == yaml.ScalarNode && v.Tag == "!!null") {
		return nil, nil
	}
	if v.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: links must be a mapping", apperr.ErrMalformedDocument)
	}
	out := make([]models.Link, 0, len(v.Content)/2)
	for i := 0; i+1 < len(v.Content); i += 2 {
		l := models.Link{Target: v.Content[i].Value, Labels: []string{}}
		switch val := v.Content[i+1]; val.Kind {
		case yaml.SequenceNode:
			for _, item := range val.Content {
				l.Labels = append(l.Labels, item.Value)
			}
		case yaml.ScalarNode:
			if val.Tag != "!!null" && val.Value != "" {
				l.Labels = append(l.Labels, val.Value)
			}
		default:
			return nil, fmt.Errorf("%w: labels of %s must be a list", apperr.ErrMalformedDocument, l.Target)
		}
		out = append(out, l)
	}
	return out, nil
}

// SetLinks replaces the links mapping. An empty slice removes the key; other
// frontmatter keys keep their position.
func (d *Document) SetLinks(links []models.Link) {
	if len(links) == 0 {
		d.remove(linksKey)
		return
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, l := range links {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(l.Labels) == 0 {
			seq.Style = yaml.FlowStyle
		}
		for _, label := range l.Labels {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: label})
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: l.Target},
			seq,
		)
	}
	d.set(linksKey, m)
}

// Title returns the frontmatter title if present, otherwise the first H1
// heading of the body, otherwise "".
func (d *Document) Title() string {
	if v := d.lookup("title"); v != nil && v.Kind == yaml.ScalarNode && v.Value != "" {
		return v.Value
	}
	return HeadingTitle(d.Body)
}

// HeadingTitle returns the text of the first "# " heading.
func HeadingTitle(body []byte) string {
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func (d *Document) lookup(key string) *yaml.Node {
	for i := 0; i+1 < len(d.front.Content); i += 2 {
		if d.front.Content[i].Value == key {
			return d.front.Content[i+1]
		}
	}
	return nil
}

func (d *Document) set(key string, value *yaml.Node) {
	for i := 0; i+1 < len(d.front.Content); i += 2 {
		if d.front.Content[i].Value == key {
			d.front.Content[i+1] = value
			return
		}
	}
	d.front.Content = append(d.front.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func (d *Document) remove(key string) {
	for i := 0; i+1 < len(d.front.Content); i += 2 {
		if d.front.Content[i].Value == key {
			d.front.Content = append(d.front.Content[:i], d.front.Content[i+2:]...)
			return
		}
	}
}
