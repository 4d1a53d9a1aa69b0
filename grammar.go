package edgar

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Element describes the structural rule for a single tag in the EDGAR
// SGML grammar (see the EDGAR Filer Manual, "Document Type Definition").
type Element struct {
	Name          string `yaml:"name" json:"name"`                     // Tag name without brackets, e.g. "DOCUMENT"
	HasClosingTag bool   `yaml:"closing" json:"hasClosingTag"`         // true if the tag is closed by </NAME>
	Repeats       bool   `yaml:"repeats" json:"repeats"`               // true if the tag may appear many times
	Required      bool   `yaml:"required" json:"required"`             // true if the tag must be present in its parent
	Parent        string `yaml:"parent,omitempty" json:"parent,omitempty"` // Parent name, empty for the root
}

// OpenTag returns the opening form of the tag, e.g. "<DOCUMENT>"
func (e Element) OpenTag() string {
	return "<" + e.Name + ">"
}

// ClosingTag returns the closing form of the tag, e.g. "</DOCUMENT>"
func (e Element) ClosingTag() string {
	return strings.Replace(e.OpenTag(), "<", "</", 1)
}

func (e Element) String() string {
	parent := "root"
	if e.Parent != "" {
		parent = e.Parent
	}
	closing := "no closing tag"
	if e.HasClosingTag {
		closing = e.ClosingTag()
	}
	repeats := "not repeating"
	if e.Repeats {
		repeats = "repeats"
	}
	required := "not required"
	if e.Required {
		required = "required"
	}
	return fmt.Sprintf("<Element [%s, %s, %s, %s, %s]>", e.OpenTag(), closing, repeats, required, parent)
}

// Grammar is an immutable lookup table of elements. A Grammar is built once
// and passed to the Decoder and document constructors; it is safe to share.
type Grammar struct {
	elements []Element
	byName   map[string]int
	children map[string][]string
}

// NewGrammar validates the elements and builds a Grammar.
// Every non-root element must reference a parent defined before it.
func NewGrammar(elements ...Element) (*Grammar, error) {
	g := &Grammar{
		elements: make([]Element, 0, len(elements)),
		byName:   make(map[string]int, len(elements)),
		children: make(map[string][]string),
	}

	for i, el := range elements {
		el.Name = strings.TrimSpace(el.Name)
		el.Parent = strings.TrimSpace(el.Parent)

		if el.Name == "" {
			return nil, fmt.Errorf("grammar element %d has no name", i)
		}
		if strings.ContainsAny(el.Name, "<>/ \t\n") {
			return nil, fmt.Errorf("grammar element %q: name must not contain brackets, slashes or whitespace", el.Name)
		}
		if _, dup := g.byName[el.Name]; dup {
			return nil, fmt.Errorf("grammar element %q defined twice", el.Name)
		}
		if el.Parent != "" {
			if _, ok := g.byName[el.Parent]; !ok {
				return nil, fmt.Errorf("grammar element %q: parent %q must be defined before it", el.Name, el.Parent)
			}
			g.children[el.Parent] = append(g.children[el.Parent], el.Name)
		}

		g.byName[el.Name] = len(g.elements)
		g.elements = append(g.elements, el)
	}

	if len(g.elements) == 0 {
		return nil, fmt.Errorf("grammar has no elements")
	}

	return g, nil
}

// MustGrammar is like NewGrammar but panics on an invalid table.
// Intended for package-level grammar literals.
func MustGrammar(elements ...Element) *Grammar {
	g, err := NewGrammar(elements...)
	if err != nil {
		panic(err)
	}
	return g
}

// Lookup returns the element with the given name
func (g *Grammar) Lookup(name string) (Element, bool) {
	i, ok := g.byName[name]
	if !ok {
		return Element{}, false
	}
	return g.elements[i], true
}

// LookupTag returns the element for an opening tag string such as "<TYPE>"
func (g *Grammar) LookupTag(tag string) (Element, bool) {
	if !strings.HasPrefix(tag, "<") || !strings.HasSuffix(tag, ">") {
		return Element{}, false
	}
	return g.Lookup(tag[1 : len(tag)-1])
}

// ChildrenOf returns the names of all elements whose parent is name,
// in definition order. Leaves have no children.
func (g *Grammar) ChildrenOf(name string) []string {
	children := g.children[name]
	out := make([]string, len(children))
	copy(out, children)
	return out
}

// Elements returns a copy of the element table in definition order
func (g *Grammar) Elements() []Element {
	out := make([]Element, len(g.elements))
	copy(out, g.elements)
	return out
}

// Root returns the first element without a parent
func (g *Grammar) Root() Element {
	for _, el := range g.elements {
		if el.Parent == "" {
			return el
		}
	}
	return g.elements[0]
}

// Element names of the EDGAR submission grammar
const (
	TagSECDocument        = "SEC-DOCUMENT"
	TagSECHeader          = "SEC-HEADER"
	TagAcceptanceDateTime = "ACCEPTANCE-DATETIME"
	TagDocument           = "DOCUMENT"
	TagType               = "TYPE"
	TagSequence           = "SEQUENCE"
	TagFilename           = "FILENAME"
	TagDescription        = "DESCRIPTION"
	TagText               = "TEXT"
	TagPDF                = "PDF"
	TagXML                = "XML"
	TagXBRL               = "XBRL"
	TagTable              = "TABLE"
)

// defaultElements mirrors the subset of the EDGAR DTD needed to split a
// full submission into documents.
var defaultElements = []Element{
	{Name: TagSECDocument, HasClosingTag: true, Required: true},
	{Name: TagSECHeader, HasClosingTag: true, Required: true, Parent: TagSECDocument},
	{Name: TagAcceptanceDateTime, Required: true, Parent: TagSECHeader},
	{Name: TagDocument, HasClosingTag: true, Repeats: true, Required: true, Parent: TagSECDocument},
	{Name: TagType, Required: true, Parent: TagDocument},
	{Name: TagSequence, Required: true, Parent: TagDocument},
	{Name: TagFilename, Required: true, Parent: TagDocument},
	{Name: TagDescription, Parent: TagDocument},
	{Name: TagText, HasClosingTag: true, Required: true, Parent: TagDocument},
	{Name: TagXML, HasClosingTag: true, Required: true, Parent: TagText},
}

// DefaultGrammar returns the grammar used for EDGAR full submissions.
// <TABLE>, <CAPTION>, <S>, <C> and <FN> are left out on purpose: HTML
// bodies routinely contain <TABLE> and would be mistaken for SGML children.
func DefaultGrammar() *Grammar {
	return MustGrammar(defaultElements...)
}

// ExtendedGrammar is DefaultGrammar plus the <PDF> and <XBRL> body wrappers
func ExtendedGrammar() *Grammar {
	elements := append([]Element{}, defaultElements...)
	elements = append(elements,
		Element{Name: TagPDF, HasClosingTag: true, Required: false, Parent: TagText},
		Element{Name: TagXBRL, HasClosingTag: true, Required: false, Parent: TagText},
	)
	return MustGrammar(elements...)
}

// grammarFile is the on-disk YAML layout read by LoadGrammar
type grammarFile struct {
	Elements []Element `yaml:"elements"`
}

// LoadGrammar reads a YAML grammar description:
//
//	elements:
//	  - name: SEC-DOCUMENT
//	    closing: true
//	    required: true
//	  - name: DOCUMENT
//	    closing: true
//	    repeats: true
//	    parent: SEC-DOCUMENT
func LoadGrammar(r io.Reader) (*Grammar, error) {
	var f grammarFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse grammar YAML: %w", err)
	}
	return NewGrammar(f.Elements...)
}
