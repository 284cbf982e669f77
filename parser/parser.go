package parser

import (
	"errors"

	"github.com/as3richa/crex-sub000/byteclass"
	"github.com/as3richa/crex-sub000/lexer"
)

// Sentinel parse errors.
var (
	ErrUnmatchedOpenParen  = errors.New("regex: unmatched open parenthesis")
	ErrUnmatchedCloseParen = errors.New("regex: unmatched close parenthesis")
	ErrBadRepetition       = errors.New("regex: malformed repetition")
)

// Operator precedence, lowest to highest: group < alternation < concat.
// Repetition is applied immediately as a postfix unary operation and never
// occupies a stack slot, so it does not need an entry here.
const (
	precAlternation = 1
	precConcat      = 2
)

type opKind int

const (
	opConcat opKind = iota
	opAlternation
	opGroupMarker
)

type stackOp struct {
	kind opKind

	// valid when kind == opGroupMarker
	capturing  bool
	groupIndex int
}

func (op stackOp) precedence() int {
	switch op.kind {
	case opConcat:
		return precConcat
	case opAlternation:
		return precAlternation
	default:
		panic("parser: group marker has no precedence")
	}
}

// Parser assembles a token stream from a lexer.Lexer into a parse tree.
type Parser struct {
	lx *lexer.Lexer

	operands []*Node
	operators []stackOp

	nextGroupIndex int
}

// New returns a Parser over pattern.
func New(pattern []byte) *Parser {
	return &Parser{lx: lexer.New(pattern)}
}

// Table returns the byte-class table accumulated by the underlying lexer.
func (p *Parser) Table() *byteclass.Table {
	return p.lx.Table()
}

func (p *Parser) pushOperand(n *Node) {
	p.operands = append(p.operands, n)
}

func (p *Parser) popOperand() *Node {
	n := p.operands[len(p.operands)-1]
	p.operands = p.operands[:len(p.operands)-1]
	return n
}

func (p *Parser) pushOperator(op stackOp) {
	p.operators = append(p.operators, op)
}

func (p *Parser) topOperator() stackOp {
	return p.operators[len(p.operators)-1]
}

func (p *Parser) popOperatorApply() {
	op := p.operators[len(p.operators)-1]
	p.operators = p.operators[:len(p.operators)-1]

	switch op.kind {
	case opConcat:
		right := p.popOperand()
		left := p.popOperand()
		p.pushOperand(concat(left, right))
	case opAlternation:
		right := p.popOperand()
		left := p.popOperand()
		p.pushOperand(alternation(left, right))
	default:
		panic("parser: cannot apply a group marker")
	}
}

// popWhileHigherOrEqual pops and applies operators of precedence >=
// threshold, stopping at a group marker or an empty stack: pushing
// operator X pops any stacked operator whose precedence is >= X's,
// except group markers, which only the matching close-paren removes.
func (p *Parser) popWhileHigherOrEqual(threshold int) {
	for len(p.operators) > 0 {
		top := p.topOperator()
		if top.kind == opGroupMarker {
			break
		}
		if top.precedence() < threshold {
			break
		}
		p.popOperatorApply()
	}
}

// Parse runs the shunting-yard algorithm to completion and returns the
// root of the parse tree, wrapped in an implicit capturing group 0.
func (p *Parser) Parse() (*Node, error) {
	p.nextGroupIndex = 1
	p.operators = append(p.operators, stackOp{kind: opGroupMarker, capturing: true, groupIndex: 0})
	p.operands = append(p.operands, &Node{Kind: NodeEmpty})

	for {
		tok, err := p.lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lexer.TokEOF {
			break
		}
		if err := p.feed(tok); err != nil {
			return nil, err
		}
	}

	p.popWhileHigherOrEqual(precAlternation)

	if len(p.operators) != 1 {
		return nil, ErrUnmatchedOpenParen
	}
	p.operators = p.operators[:0]

	root := p.popOperand()
	return &Node{Kind: NodeGroup, GroupIndex: 0, Child: root}, nil
}

func (p *Parser) feed(tok lexer.Token) error {
	switch tok.Kind {
	case lexer.TokLiteral:
		p.popWhileHigherOrEqual(precConcat)
		p.pushOperator(stackOp{kind: opConcat})
		p.pushOperand(&Node{Kind: NodeLiteral, Literal: tok.Literal})

	case lexer.TokClass:
		p.popWhileHigherOrEqual(precConcat)
		p.pushOperator(stackOp{kind: opConcat})
		p.pushOperand(&Node{Kind: NodeClass, ClassIndex: tok.ClassIndex})

	case lexer.TokBuiltinClass:
		p.popWhileHigherOrEqual(precConcat)
		p.pushOperator(stackOp{kind: opConcat})
		p.pushOperand(&Node{Kind: NodeBuiltinClass, Builtin: tok.Builtin})

	case lexer.TokAnchor:
		p.popWhileHigherOrEqual(precConcat)
		p.pushOperator(stackOp{kind: opConcat})
		p.pushOperand(&Node{Kind: NodeAnchor, Anchor: tok.Anchor})

	case lexer.TokOpenGroup:
		p.popWhileHigherOrEqual(precConcat)
		p.pushOperator(stackOp{kind: opConcat})

		idx := NonCapturing
		if tok.Capturing {
			idx = p.nextGroupIndex
			p.nextGroupIndex++
		}
		p.pushOperator(stackOp{kind: opGroupMarker, capturing: tok.Capturing, groupIndex: idx})
		p.pushOperand(&Node{Kind: NodeEmpty})

	case lexer.TokCloseGroup:
		p.popWhileHigherOrEqual(precAlternation)
		if len(p.operators) <= 1 {
			return ErrUnmatchedCloseParen
		}
		marker := p.topOperator()
		p.operators = p.operators[:len(p.operators)-1]

		child := p.popOperand()
		p.pushOperand(&Node{Kind: NodeGroup, GroupIndex: marker.groupIndex, Child: child})

	case lexer.TokAlternation:
		p.popWhileHigherOrEqual(precAlternation)
		p.pushOperator(stackOp{kind: opAlternation})
		p.pushOperand(&Node{Kind: NodeEmpty})

	case lexer.TokRepetition:
		if tok.Lo < 0 || (tok.Hi != -1 && tok.Hi < tok.Lo) {
			return ErrBadRepetition
		}
		child := p.popOperand()
		p.pushOperand(&Node{Kind: NodeRepetition, Lo: tok.Lo, Hi: tok.Hi, Greedy: tok.Greedy, Child: child})
	}
	return nil
}

// Parse is a convenience entry point equivalent to New(pattern).Parse(),
// also returning the interned class table the tree's NodeClass indices
// refer to.
func Parse(pattern []byte) (*Node, *byteclass.Table, error) {
	p := New(pattern)
	root, err := p.Parse()
	if err != nil {
		return nil, nil, err
	}
	return root, p.Table(), nil
}

// CountGroups walks root and returns one past the highest capturing
// GroupIndex it finds (so the return value is the total capturing group
// count, including the implicit group 0 every Parse tree is wrapped in).
func CountGroups(root *Node) int {
	max := -1
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Kind == NodeGroup && n.GroupIndex != NonCapturing && n.GroupIndex > max {
			max = n.GroupIndex
		}
		walk(n.Left)
		walk(n.Right)
		walk(n.Child)
	}
	walk(root)
	return max + 1
}
