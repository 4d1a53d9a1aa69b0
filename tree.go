package edgar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValueKind identifies which variant a Value holds
type ValueKind int

const (
	KindText ValueKind = iota
	KindTree
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTree:
		return "tree"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is one decoded tag value: a text leaf, a nested Tree, or the list
// of values collected for a repeating tag.
type Value struct {
	kind ValueKind
	text string
	tree Tree
	list []Value
}

// Text creates a text leaf value
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Nested wraps a Tree as a value
func Nested(t Tree) Value {
	if t == nil {
		t = Tree{}
	}
	return Value{kind: KindTree, tree: t}
}

// List creates a list value. List() with no arguments is the empty list.
func List(values ...Value) Value {
	l := make([]Value, len(values))
	copy(l, values)
	return Value{kind: KindList, list: l}
}

func (v Value) Kind() ValueKind { return v.kind }

// Text returns the text of a leaf, or "" for other kinds
func (v Value) Text() string { return v.text }

// Tree returns the nested tree, or nil for other kinds
func (v Value) Tree() Tree { return v.tree }

// Items returns the list elements, or nil for other kinds
func (v Value) Items() []Value { return v.list }

// Trees returns the tree elements of a list value, skipping any text items
func (v Value) Trees() []Tree {
	var out []Tree
	for _, item := range v.list {
		if item.kind == KindTree {
			out = append(out, item.tree)
		}
	}
	return out
}

// IsEmpty reports whether the value carries no content
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindTree:
		return len(v.tree) == 0
	case KindList:
		return len(v.list) == 0
	default:
		return v.text == ""
	}
}

// Equal reports structural equality. A nil list equals an empty one.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindTree:
		if len(v.tree) != len(o.tree) {
			return false
		}
		for k, a := range v.tree {
			b, ok := o.tree[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return v.text == o.text
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindTree:
		return json.Marshal(v.tree)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.text)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var t Tree
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*v = Nested(t)
	case strings.HasPrefix(trimmed, "["):
		var l []Value
		if err := json.Unmarshal(data, &l); err != nil {
			return err
		}
		*v = List(l...)
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode value: %w", err)
		}
		*v = Text(s)
	}
	return nil
}

// Tree is a decoded scope: element name (without brackets) to value.
// A tree returned by the Decoder is never modified afterwards.
type Tree map[string]Value

// Get returns the value stored under name
func (t Tree) Get(name string) (Value, bool) {
	v, ok := t[name]
	return v, ok
}

// Text returns the text stored under name, or "" if absent or not a leaf
func (t Tree) Text(name string) string {
	return t[name].Text()
}

// Child returns the nested tree stored under name
func (t Tree) Child(name string) (Tree, bool) {
	v, ok := t[name]
	if !ok || v.kind != KindTree {
		return nil, false
	}
	return v.tree, true
}

// Path follows nested trees by name, e.g. Path("SEC-DOCUMENT", "SEC-HEADER")
func (t Tree) Path(names ...string) (Value, bool) {
	cur := Nested(t)
	for _, name := range names {
		if cur.kind != KindTree {
			return Value{}, false
		}
		next, ok := cur.tree[name]
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Keys returns the element names present in the tree, sorted
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// merge folds one (element, value) pair into t and returns the result.
// t itself is not modified. Repeating elements accumulate into a list, with
// list values spliced in. Non-repeating elements overwrite; the second return
// value reports that an earlier value was replaced.
func merge(t Tree, el Element, v Value) (Tree, bool) {
	out := make(Tree, len(t)+1)
	for k, existing := range t {
		out[k] = existing
	}

	existing, exists := out[el.Name]

	if !el.Repeats {
		out[el.Name] = v
		return out, exists
	}

	var items []Value
	if exists {
		if existing.kind == KindList {
			items = append(items, existing.list...)
		} else {
			items = append(items, existing)
		}
	}
	if v.kind == KindList {
		items = append(items, v.list...)
	} else {
		items = append(items, v)
	}
	out[el.Name] = Value{kind: KindList, list: items}
	return out, false
}

// placeholder is the empty value recorded for a required element that does
// not occur in its parent's span
func placeholder(el Element) Value {
	if el.Repeats {
		return List()
	}
	return Text("")
}

// Encode serializes t back into SGML text using the grammar. Elements are
// written in grammar definition order; keys unknown to the grammar are
// skipped. Decoding the result yields a tree equal to t.
func (t Tree) Encode(g *Grammar) string {
	var sb strings.Builder
	encodeTree(&sb, g, t)
	return sb.String()
}

func encodeTree(sb *strings.Builder, g *Grammar, t Tree) {
	for _, el := range g.Elements() {
		v, ok := t[el.Name]
		if !ok {
			continue
		}
		if v.kind == KindList {
			for _, item := range v.list {
				encodeValue(sb, g, el, item)
			}
			continue
		}
		encodeValue(sb, g, el, v)
	}
}

func encodeValue(sb *strings.Builder, g *Grammar, el Element, v Value) {
	sb.WriteString(el.OpenTag())
	switch v.kind {
	case KindTree:
		sb.WriteString("\n")
		encodeTree(sb, g, v.tree)
	default:
		sb.WriteString(v.text)
		sb.WriteString("\n")
	}
	if el.HasClosingTag {
		sb.WriteString(el.ClosingTag())
		sb.WriteString("\n")
	}
}
