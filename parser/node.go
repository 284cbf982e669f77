// Package parser assembles a pattern's token stream into a parse tree
// using operator-precedence (shunting-yard) parsing.
package parser

import (
	"github.com/as3richa/crex-sub000/byteclass"
	"github.com/as3richa/crex-sub000/lexer"
)

// NodeKind tags the variant carried by a Node.
type NodeKind int

const (
	NodeEmpty NodeKind = iota
	NodeLiteral
	NodeClass
	NodeBuiltinClass
	NodeAnchor
	NodeConcat
	NodeAlternation
	NodeRepetition
	NodeGroup
)

// NonCapturing is the sentinel Node.GroupIndex for a non-capturing group.
const NonCapturing = -1

// Node is one variant of the parse tree. Which fields are meaningful
// depends on Kind.
type Node struct {
	Kind NodeKind

	Literal    byte
	ClassIndex int
	Builtin    byteclass.Builtin
	Anchor     lexer.AnchorKind

	// Concat/Alternation.
	Left, Right *Node

	// Repetition.
	Lo, Hi int
	Greedy bool
	Child  *Node

	// Group.
	GroupIndex int // NonCapturing, or the capturing ordinal (0 = outermost)
}

// concat joins left and right, dropping either side that is NodeEmpty.
func concat(left, right *Node) *Node {
	if left.Kind == NodeEmpty {
		return right
	}
	if right.Kind == NodeEmpty {
		return left
	}
	return &Node{Kind: NodeConcat, Left: left, Right: right}
}

func alternation(left, right *Node) *Node {
	return &Node{Kind: NodeAlternation, Left: left, Right: right}
}
