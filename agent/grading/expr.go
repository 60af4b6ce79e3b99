package grading

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumeric evaluates a numeric answer. Plain numbers, thousands
// separators and arithmetic such as "3/4" or "2^10" are accepted.
func ParseNumeric(raw string) (float64, error) {
	answer := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if answer == "" {
		return 0, errors.New("numeric answer is empty")
	}
	if v, err := strconv.ParseFloat(answer, 64); err == nil && finite(v) {
		return v, nil
	}

	toks, err := tokenize(answer)
	if err != nil {
		return 0, err
	}
	ev := &evaluator{toks: toks}
	v, err := ev.expr(1)
	if err != nil {
		return 0, err
	}
	if t, ok := ev.peek(); ok {
		return 0, fmt.Errorf("trailing input at position %d", t.pos)
	}
	if !finite(v) {
		return 0, errors.New("numeric answer is not finite")
	}
	return v, nil
}

// numericMatch reports whether submitted lands within tolerance of key.
func numericMatch(submitted, key string, tolerance float64) (bool, error) {
	got, err := ParseNumeric(submitted)
	if err != nil {
		return false, err
	}
	want, err := ParseNumeric(key)
	if err != nil {
		return false, fmt.Errorf("answer key: %w", err)
	}
	return math.Abs(got-want) <= tolerance, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

type tokenKind uint8

const (
	tokNumber tokenKind = iota
	tokOperator
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	num  float64
	op   byte
	pos  int
}

func tokenize(s string) ([]token, error) {
	toks := make([]token, 0, len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isNumberByte(c):
			j := i
			for j < len(s) && isNumberByte(s[j]) {
				j++
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", s[i:j], i)
			}
			toks = append(toks, token{kind: tokNumber, num: v, pos: i})
			i = j
		case c == '(':
			toks = append(toks, token{kind: tokOpen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokClose, pos: i})
			i++
		case strings.IndexByte("+-*/%^", c) >= 0:
			toks = append(toks, token{kind: tokOperator, op: c, pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected %q at position %d", c, i)
		}
	}
	return toks, nil
}

func isNumberByte(c byte) bool { return (c >= '0' && c <= '9') || c == '.' }

type binaryOp struct {
	prec  int
	right bool
}

// ^ is right-associative: 2^3^2 == 2^9.
var binaryOps = map[byte]binaryOp{
	'+': {prec: 1},
	'-': {prec: 1},
	'*': {prec: 2},
	'/': {prec: 2},
	'%': {prec: 2},
	'^': {prec: 3, right: true},
}

// evaluator folds a token stream by precedence climbing.
type evaluator struct {
	toks []token
	i    int
}

func (ev *evaluator) peek() (token, bool) {
	if ev.i >= len(ev.toks) {
		return token{}, false
	}
	return ev.toks[ev.i], true
}

func (ev *evaluator) next() (token, bool) {
	t, ok := ev.peek()
	if ok {
		ev.i++
	}
	return t, ok
}

func (ev *evaluator) expr(minPrec int) (float64, error) {
	left, err := ev.operand()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := ev.peek()
		if !ok || t.kind != tokOperator {
			return left, nil
		}
		op := binaryOps[t.op]
		if op.prec < minPrec {
			return left, nil
		}
		ev.i++

		nextPrec := op.prec + 1
		if op.right {
			nextPrec = op.prec
		}
		right, err := ev.expr(nextPrec)
		if err != nil {
			return 0, err
		}
		if left, err = applyOp(t.op, left, right); err != nil {
			return 0, err
		}
	}
}

// operand reads a number, a signed operand or a parenthesized expression.
func (ev *evaluator) operand() (float64, error) {
	t, ok := ev.next()
	if !ok {
		return 0, errors.New("numeric answer ends early")
	}
	switch {
	case t.kind == tokNumber:
		return t.num, nil
	case t.kind == tokOperator && (t.op == '-' || t.op == '+'):
		v, err := ev.operand()
		if t.op == '-' {
			v = -v
		}
		return v, err
	case t.kind == tokOpen:
		v, err := ev.expr(1)
		if err != nil {
			return 0, err
		}
		if closing, ok := ev.next(); !ok || closing.kind != tokClose {
			return 0, fmt.Errorf("missing closing parenthesis for position %d", t.pos)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("expected a number at position %d", t.pos)
	}
}

func applyOp(op byte, a, b float64) (float64, error) {
	switch op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	case '%':
		if b == 0 {
			return 0, errors.New("modulo by zero")
		}
		return math.Mod(a, b), nil
	default:
		return math.Pow(a, b), nil
	}
}
