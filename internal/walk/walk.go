// Package walk provides a generic syntax tree and a cycle-safe traversal that
// dispatches visitor callbacks by node kind.
package walk

// Location is source position metadata. It is never traversed.
type Location struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	StartByte   int
	EndByte     int
}

// Field is a named slot on a Node. Value is a *Node, a []*Node, or a scalar.
// Only the first two are children.
type Field struct {
	Name  string
	Value any
}

// Node is a syntax tree node with a kind tag and ordered named slots.
// The same *Node may be reachable from several parents.
type Node struct {
	Kind   string
	Fields []Field
	Loc    Location
}

// Visitors maps a node kind to the callback run when such a node is reached.
type Visitors map[string]func(*Node)

// metadataFields are slot names holding position data. They are skipped even
// when they hold node values.
var metadataFields = map[string]struct{}{
	"loc":   {},
	"range": {},
	"start": {},
	"end":   {},
}

// Walk traverses root depth-first in pre-order, calling visitors[n.Kind]
// before descending into n. Each distinct node is visited at most once, so
// shared subtrees are walked once and back-references terminate.
func Walk(root *Node, visitors Visitors) {
	visited := make(map[*Node]struct{})
	stack := []*Node{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n == nil || n.Kind == "" {
			continue
		}
		if _, seen := visited[n]; seen {
			continue
		}
		visited[n] = struct{}{}

		if fn := visitors[n.Kind]; fn != nil {
			fn(n)
		}

		// Push in reverse so children pop in declaration order.
		children := n.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// Children returns n's child nodes in slot order, sequences expanded in
// sequence order. Scalar and metadata slots are skipped.
func (n *Node) Children() []*Node {
	var out []*Node
	for _, f := range n.Fields {
		if _, meta := metadataFields[f.Name]; meta {
			continue
		}
		switch v := f.Value.(type) {
		case *Node:
			if v != nil {
				out = append(out, v)
			}
		case []*Node:
			for _, c := range v {
				if c != nil {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// Get returns the value of the first slot called name, or nil.
func (n *Node) Get(name string) any {
	if n == nil {
		return nil
	}
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Child returns the single node in slot name, or nil if the slot is missing
// or holds something else.
func (n *Node) Child(name string) *Node {
	c, _ := n.Get(name).(*Node)
	return c
}

// Seq returns the node sequence in slot name. A single node is returned as a
// one-element sequence.
func (n *Node) Seq(name string) []*Node {
	switch v := n.Get(name).(type) {
	case []*Node:
		return v
	case *Node:
		if v != nil {
			return []*Node{v}
		}
	}
	return nil
}

// Scalar returns the string scalar in slot name.
func (n *Node) Scalar(name string) (string, bool) {
	s, ok := n.Get(name).(string)
	return s, ok
}

// Set appends a slot, or merges into an existing slot of the same name.
// Merging a node into a node slot turns it into a sequence.
func (n *Node) Set(name string, value any) {
	for i := range n.Fields {
		if n.Fields[i].Name != name {
			continue
		}
		child, isNode := value.(*Node)
		switch cur := n.Fields[i].Value.(type) {
		case *Node:
			if isNode {
				n.Fields[i].Value = []*Node{cur, child}
				return
			}
		case []*Node:
			if isNode {
				n.Fields[i].Value = append(cur, child)
				return
			}
		}
		n.Fields[i].Value = value
		return
	}
	n.Fields = append(n.Fields, Field{Name: name, Value: value})
}
