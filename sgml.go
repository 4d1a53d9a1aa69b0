package edgar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// openingTagRe matches an opening tag: '<', not followed by '/', up to the
// first '>' on the same line. Equivalent to <[^/].+?> but also accepts
// single-character names such as <S>.
var openingTagRe = regexp.MustCompile(`<[^/>\n][^>\n]*>`)

// DefaultMaxDepth bounds how deeply nested scopes may be decoded
const DefaultMaxDepth = 32

// DecodeError reports a structural problem that stops decoding
type DecodeError struct {
	Tag    string // Element name involved, may be empty
	Span   string // Offending text, truncated
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("sgml decode failed: %s", e.Reason)
	}
	return fmt.Sprintf("sgml decode failed at <%s>: %s (near %q)", e.Tag, e.Reason, e.Span)
}

func newDecodeError(tag, span, reason string) *DecodeError {
	const maxSpan = 80
	span = strings.TrimSpace(span)
	if len(span) > maxSpan {
		span = span[:maxSpan] + "..."
	}
	return &DecodeError{Tag: tag, Span: span, Reason: reason}
}

// DiagnosticKind classifies a recoverable event seen while decoding
type DiagnosticKind int

const (
	// DiagnosticOverwrite: a non-repeating element appeared twice in one
	// scope and the later value replaced the earlier one.
	DiagnosticOverwrite DiagnosticKind = iota
	// DiagnosticUnknownTag: an opening tag outside the grammar was found
	// and skipped according to the unknown-tag policy.
	DiagnosticUnknownTag
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticOverwrite:
		return "overwrite"
	case DiagnosticUnknownTag:
		return "unknown-tag"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic describes a recoverable decoding event
type Diagnostic struct {
	Kind  DiagnosticKind
	Tag   string // Element name, or the raw tag for DiagnosticUnknownTag
	Depth int
}

// UnknownTagPolicy decides what happens when the first opening tag of a
// span is not part of the grammar.
type UnknownTagPolicy int

const (
	// UnknownTagSkipSpan drops the rest of the span (default)
	UnknownTagSkipSpan UnknownTagPolicy = iota
	// UnknownTagSkipTag ignores only the unknown tag and keeps scanning
	// for grammar tags after it.
	UnknownTagSkipTag
)

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithLogger sets the logger used for decode diagnostics
func WithLogger(logger zerolog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithMaxDepth sets the nesting limit. Values < 1 are ignored.
func WithMaxDepth(depth int) DecoderOption {
	return func(d *Decoder) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// WithDiagnostics registers a callback that receives every Diagnostic
func WithDiagnostics(fn func(Diagnostic)) DecoderOption {
	return func(d *Decoder) {
		d.onDiagnostic = fn
	}
}

// WithUnknownTagPolicy overrides UnknownTagSkipSpan
func WithUnknownTagPolicy(p UnknownTagPolicy) DecoderOption {
	return func(d *Decoder) {
		d.unknownTags = p
	}
}

// Decoder turns EDGAR SGML text into a Tree, driven by a Grammar.
// A Decoder holds no per-call state and may be used concurrently.
type Decoder struct {
	grammar      *Grammar
	logger       zerolog.Logger
	maxDepth     int
	onDiagnostic func(Diagnostic)
	unknownTags  UnknownTagPolicy
}

// NewDecoder creates a Decoder for g. A nil grammar means DefaultGrammar().
func NewDecoder(g *Grammar, opts ...DecoderOption) *Decoder {
	if g == nil {
		g = DefaultGrammar()
	}
	d := &Decoder{
		grammar:  g,
		logger:   zerolog.Nop(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Grammar returns the grammar the decoder was built with
func (d *Decoder) Grammar() *Grammar {
	return d.grammar
}

// Decode parses text into a Tree. Text with no opening tag yields an empty tree.
func (d *Decoder) Decode(text string) (Tree, error) {
	return d.decodeSpan(text, 0)
}

// decodeSpan decodes one scope. Siblings are handled by the loop; only a
// nested scope recurses.
func (d *Decoder) decodeSpan(span string, depth int) (Tree, error) {
	if depth >= d.maxDepth {
		return nil, newDecodeError("", span, fmt.Sprintf("nesting deeper than %d levels", d.maxDepth))
	}

	result := Tree{}
	rest := strings.TrimSpace(span)

	for rest != "" {
		loc := openingTagRe.FindStringIndex(rest)
		if loc == nil {
			break
		}
		tag := rest[loc[0]:loc[1]]
		tagEnd := loc[1]

		el, ok := d.grammar.LookupTag(tag)
		if !ok {
			d.report(Diagnostic{Kind: DiagnosticUnknownTag, Tag: tag, Depth: depth})
			if d.unknownTags == UnknownTagSkipTag {
				rest = strings.TrimSpace(rest[loc[0]+1:])
				continue
			}
			break
		}

		var (
			value Value
			next  int
		)

		if !el.HasClosingTag {
			next = len(rest)
			if i := d.nextKnownTag(rest[tagEnd:]); i >= 0 {
				next = tagEnd + i
			}
			value = Text(strings.TrimSpace(rest[tagEnd:next]))
		} else {
			closing := el.ClosingTag()
			i := strings.Index(rest[tagEnd:], closing)
			if i < 0 {
				return nil, newDecodeError(el.Name, rest[loc[0]:], "missing closing tag "+closing)
			}
			enclosed := rest[tagEnd : tagEnd+i]
			next = tagEnd + i + len(closing)

			v, err := d.decodeEnclosed(el, enclosed, depth)
			if err != nil {
				return nil, err
			}
			value = v
		}

		var overwritten bool
		result, overwritten = merge(result, el, value)
		if overwritten {
			d.report(Diagnostic{Kind: DiagnosticOverwrite, Tag: el.Name, Depth: depth})
		}

		rest = strings.TrimSpace(rest[next:])
	}

	return result, nil
}

// decodeEnclosed decides whether the data between an element's tags is a
// nested scope or an opaque leaf.
func (d *Decoder) decodeEnclosed(el Element, enclosed string, depth int) (Value, error) {
	children := d.grammar.ChildrenOf(el.Name)

	var present bool
	var missing []Element
	for _, name := range children {
		child, _ := d.grammar.Lookup(name)
		if strings.Contains(enclosed, child.OpenTag()) {
			present = true
			continue
		}
		if child.Required {
			missing = append(missing, child)
		}
	}

	if !present {
		return Text(strings.TrimSpace(enclosed)), nil
	}

	nested, err := d.decodeSpan(enclosed, depth+1)
	if err != nil {
		return Value{}, err
	}
	for _, child := range missing {
		if _, ok := nested[child.Name]; !ok {
			nested, _ = merge(nested, child, placeholder(child))
		}
	}
	return Nested(nested), nil
}

// nextKnownTag returns the offset of the first opening tag in s that the
// grammar recognizes, or -1.
func (d *Decoder) nextKnownTag(s string) int {
	offset := 0
	for offset < len(s) {
		loc := openingTagRe.FindStringIndex(s[offset:])
		if loc == nil {
			return -1
		}
		start, end := offset+loc[0], offset+loc[1]
		if _, ok := d.grammar.LookupTag(s[start:end]); ok {
			return start
		}
		offset = start + 1
	}
	return -1
}

func (d *Decoder) report(diag Diagnostic) {
	switch diag.Kind {
	case DiagnosticOverwrite:
		d.logger.Warn().Str("tag", diag.Tag).Int("depth", diag.Depth).Msg("duplicate non-repeating tag, keeping later value")
	case DiagnosticUnknownTag:
		d.logger.Debug().Str("tag", diag.Tag).Int("depth", diag.Depth).Msg("skipping unrecognized tag")
	}
	if d.onDiagnostic != nil {
		d.onDiagnostic(diag)
	}
}

// DecodeSGML decodes text with the default grammar
func DecodeSGML(text string) (Tree, error) {
	return NewDecoder(DefaultGrammar()).Decode(text)
}
