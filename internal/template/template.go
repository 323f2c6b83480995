// Package template implements the personalization grammar used for subject
// and body copy: literal text, {{field}} placeholders, and
// {{#field}}...{{/field}} conditional blocks that render only when the named
// field is present and non-empty. Templates are parsed once into a node
// sequence and evaluated against a key-value mapping per lead; rendering
// never executes code and never fails on missing data.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks unbalanced placeholder or conditional markers. It is
// fatal to a batch run and surfaces before any send.
var ErrMalformed = errors.New("malformed template")

const (
	openMarker  = "{{"
	closeMarker = "}}"
)

// FieldSource supplies field values at render time.
type FieldSource interface {
	Field(name string) (string, bool)
}

// MapFields adapts a plain map to a FieldSource.
type MapFields map[string]string

func (m MapFields) Field(name string) (string, bool) {
	value, ok := m[name]
	return value, ok
}

type nodeKind int

const (
	nodeLiteral nodeKind = iota
	nodeField
	nodeConditional
)

type node struct {
	kind     nodeKind
	text     string // literal text or field name
	children []node // conditional body
}

// Template is a parsed, reusable template.
type Template struct {
	raw   string
	nodes []node
}

// Parse tokenizes a template string. It fails only on malformed syntax:
// an unterminated placeholder, an empty or nested marker, or unbalanced
// conditional blocks.
func Parse(raw string) (*Template, error) {
	nodes, rest, err := parseNodes(raw, "")
	if err != nil {
		return nil, err
	}
	if rest != "" {
		// parseNodes only stops early on an unmatched block close.
		return nil, fmt.Errorf("%w: unexpected close marker near %q", ErrMalformed, truncate(rest))
	}
	return &Template{raw: raw, nodes: nodes}, nil
}

// MustParse is a test and wiring convenience for templates known to be valid.
func MustParse(raw string) *Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) String() string { return t.raw }

// Render substitutes placeholders from fields. A placeholder with no
// corresponding field resolves to fallback rather than failing.
func (t *Template) Render(fields FieldSource, fallback string) string {
	var b strings.Builder
	b.Grow(len(t.raw))
	renderNodes(&b, t.nodes, fields, fallback)
	return b.String()
}

func renderNodes(b *strings.Builder, nodes []node, fields FieldSource, fallback string) {
	for _, n := range nodes {
		switch n.kind {
		case nodeLiteral:
			b.WriteString(n.text)
		case nodeField:
			if value, ok := fields.Field(n.text); ok && value != "" {
				b.WriteString(value)
			} else {
				b.WriteString(fallback)
			}
		case nodeConditional:
			if value, ok := fields.Field(n.text); ok && strings.TrimSpace(value) != "" {
				renderNodes(b, n.children, fields, fallback)
			}
		}
	}
}

// parseNodes consumes input until the end of the string or, inside a block,
// until the close marker for blockName. It returns the unconsumed remainder
// so the caller can verify the close it stopped on.
func parseNodes(input, blockName string) ([]node, string, error) {
	var nodes []node

	for input != "" {
		idx := strings.Index(input, openMarker)
		if idx < 0 {
			nodes = append(nodes, node{kind: nodeLiteral, text: input})
			input = ""
			break
		}

		if idx > 0 {
			nodes = append(nodes, node{kind: nodeLiteral, text: input[:idx]})
		}
		input = input[idx+len(openMarker):]

		end := strings.Index(input, closeMarker)
		if end < 0 {
			return nil, "", fmt.Errorf("%w: unterminated placeholder near %q", ErrMalformed, truncate(input))
		}
		marker := input[:end]
		input = input[end+len(closeMarker):]

		if strings.Contains(marker, openMarker) {
			return nil, "", fmt.Errorf("%w: nested open marker in %q", ErrMalformed, truncate(marker))
		}

		switch {
		case strings.HasPrefix(marker, "#"):
			name := strings.TrimSpace(marker[1:])
			if name == "" {
				return nil, "", fmt.Errorf("%w: conditional block needs a field name", ErrMalformed)
			}
			children, rest, err := parseNodes(input, name)
			if err != nil {
				return nil, "", err
			}
			input = rest
			nodes = append(nodes, node{kind: nodeConditional, text: name, children: children})

		case strings.HasPrefix(marker, "/"):
			name := strings.TrimSpace(marker[1:])
			if blockName == "" {
				return nil, "", fmt.Errorf("%w: close marker {{/%s}} without an open block", ErrMalformed, name)
			}
			if name != blockName {
				return nil, "", fmt.Errorf("%w: block {{#%s}} closed by {{/%s}}", ErrMalformed, blockName, name)
			}
			return nodes, input, nil

		default:
			name := strings.TrimSpace(marker)
			if name == "" {
				return nil, "", fmt.Errorf("%w: empty placeholder", ErrMalformed)
			}
			nodes = append(nodes, node{kind: nodeField, text: name})
		}
	}

	if blockName != "" {
		return nil, "", fmt.Errorf("%w: block {{#%s}} is never closed", ErrMalformed, blockName)
	}
	return nodes, "", nil
}

func truncate(s string) string {
	const limit = 24
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// Message is a rendered subject/body pair.
type Message struct {
	Subject string
	Body    string
}

// Pair couples the campaign's subject and body templates so a batch run can
// parse both up front and render per lead.
type Pair struct {
	Subject *Template
	Body    *Template
}

// ParsePair parses subject and body together; any syntax error aborts before
// a single render happens.
func ParsePair(subject, body string) (*Pair, error) {
	subjectTpl, err := Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("subject template: %w", err)
	}
	bodyTpl, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("body template: %w", err)
	}
	return &Pair{Subject: subjectTpl, Body: bodyTpl}, nil
}

// Render produces the message for one lead.
func (p *Pair) Render(fields FieldSource, fallback string) Message {
	return Message{
		Subject: p.Subject.Render(fields, fallback),
		Body:    p.Body.Render(fields, fallback),
	}
}
