package edgar

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// BodyKind classifies the content of a document's <TEXT> element
type BodyKind int

const (
	BodyText    BodyKind = iota // Plain text, no markup worth parsing
	BodyMarkup                  // <XML> or <XBRL> content
	BodyTabular                 // HTML containing a <table>, e.g. the R*.htm reports
	BodyBinary                  // <PDF> or other uuencoded content
)

func (k BodyKind) String() string {
	switch k {
	case BodyText:
		return "text"
	case BodyMarkup:
		return "markup"
	case BodyTabular:
		return "tabular"
	case BodyBinary:
		return "binary"
	default:
		return fmt.Sprintf("BodyKind(%d)", int(k))
	}
}

// Body is the classified content of a document
type Body struct {
	Kind BodyKind
	Raw  string

	once  sync.Once
	dom   *goquery.Document
	dmErr error
}

// NewBody wraps raw content of the given kind
func NewBody(kind BodyKind, raw string) *Body {
	return &Body{Kind: kind, Raw: raw}
}

// Markup returns the HTML node tree of a tabular body. The tree is built
// once and cached.
func (b *Body) Markup() (*goquery.Document, error) {
	if b.Kind != BodyTabular {
		return nil, fmt.Errorf("%s body has no HTML tree", b.Kind)
	}
	b.once.Do(func() {
		b.dom, b.dmErr = goquery.NewDocumentFromReader(strings.NewReader(b.Raw))
		if b.dmErr != nil {
			b.dmErr = fmt.Errorf("failed to parse %s body: %w", b.Kind, b.dmErr)
		}
	})
	return b.dom, b.dmErr
}

// Unmarshal decodes an XML body into v with encoding/xml. Element names
// are case-sensitive and declared encodings other than UTF-8 are honored.
func (b *Body) Unmarshal(v any) error {
	if b.Kind != BodyMarkup {
		return fmt.Errorf("%s body is not XML", b.Kind)
	}
	dec := xml.NewDecoder(strings.NewReader(b.Raw))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode XML body: %w", err)
	}
	return nil
}

// Document is one <DOCUMENT> of a submission
type Document struct {
	Type        string `json:"type"`
	Sequence    int    `json:"sequence"`
	Filename    string `json:"filename"`
	Description string `json:"description,omitempty"`
	Body        *Body  `json:"-"`
}

// NewDocument builds a Document from a decoded DOCUMENT tree.
// TYPE, SEQUENCE and FILENAME must be present as keys; the decoder
// guarantees that for well-formed submissions.
func NewDocument(t Tree) (*Document, error) {
	for _, name := range []string{TagType, TagSequence, TagFilename} {
		if _, ok := t[name]; !ok {
			return nil, &DecodeError{Tag: name, Reason: "document is missing required field"}
		}
	}

	doc := &Document{
		Type:        t.Text(TagType),
		Filename:    t.Text(TagFilename),
		Description: t.Text(TagDescription),
	}

	// Placeholders decode as "", which leaves the sequence at zero
	if seq := t.Text(TagSequence); seq != "" {
		n, err := strconv.Atoi(seq)
		if err != nil {
			return nil, &DecodeError{Tag: TagSequence, Span: seq, Reason: "sequence is not a number"}
		}
		doc.Sequence = n
	}

	doc.Body = classifyBody(t[TagText])
	return doc, nil
}

// classifyBody picks the body kind from the decoded <TEXT> value.
// Nested <XML>/<XBRL> win over <PDF>; an opaque string is tabular when it
// contains a table.
func classifyBody(v Value) *Body {
	switch v.Kind() {
	case KindTree:
		t := v.Tree()
		for _, name := range []string{TagXML, TagXBRL} {
			if raw, ok := t.Get(name); ok {
				return NewBody(BodyMarkup, raw.Text())
			}
		}
		if raw, ok := t.Get(TagPDF); ok {
			return NewBody(BodyBinary, raw.Text())
		}
		return NewBody(BodyText, "")
	case KindText:
		raw := v.Text()
		if strings.Contains(strings.ToLower(raw), "<table") {
			return NewBody(BodyTabular, raw)
		}
		return NewBody(BodyText, raw)
	default:
		return NewBody(BodyText, "")
	}
}

// Documents returns one Document per DOCUMENT element under SEC-DOCUMENT,
// in source order. A tree decoded from a bare DOCUMENT list is accepted too.
func Documents(root Tree) ([]*Document, error) {
	list, ok := root.Path(TagSECDocument, TagDocument)
	if !ok {
		list, ok = root.Get(TagDocument)
	}
	if !ok {
		return nil, &DecodeError{Tag: TagDocument, Reason: "no DOCUMENT elements in tree"}
	}

	trees := list.Trees()
	docs := make([]*Document, 0, len(trees))
	for i, t := range trees {
		doc, err := NewDocument(t)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ownershipDocument is the part of a Form 3/4/5 XML body that names the issuer
type ownershipDocument struct {
	XMLName xml.Name `xml:"ownershipDocument"`
	Issuer  struct {
		CIK           string `xml:"issuerCik"`
		Name          string `xml:"issuerName"`
		TradingSymbol string `xml:"issuerTradingSymbol"`
	} `xml:"issuer"`
}

// IssuerTradingSymbol returns the issuer CIK (leading zeros removed) and
// trading symbol from an ownership (Form 3/4/5) XML body.
func (d *Document) IssuerTradingSymbol() (cik, symbol string, err error) {
	if d.Body == nil || d.Body.Kind != BodyMarkup {
		return "", "", fmt.Errorf("document %s has no XML body: %w", d.Filename, ErrNotFound)
	}
	var od ownershipDocument
	if err := d.Body.Unmarshal(&od); err != nil {
		return "", "", fmt.Errorf("document %s: %w", d.Filename, err)
	}

	cik = strings.TrimLeft(strings.TrimSpace(od.Issuer.CIK), "0")
	symbol = strings.TrimSpace(od.Issuer.TradingSymbol)
	if cik == "" && symbol == "" {
		return "", "", fmt.Errorf("document %s has no issuer: %w", d.Filename, ErrNotFound)
	}
	return cik, symbol, nil
}
