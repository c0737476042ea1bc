package builtin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrInvalidExpression is returned for input that is not a well-formed
	// arithmetic expression.
	ErrInvalidExpression = errors.New("invalid expression")
	// ErrDivisionByZero is returned for x/0 and x%0.
	ErrDivisionByZero = errors.New("division by zero")
)

const arithChars = "0123456789.+-*/%^() \t"

// Limits on accepted input. Nesting is counted per parenthesis, unary sign
// and exponent.
const (
	MaxExpressionLength = 4096
	MaxExpressionDepth  = 256
)

// ExtractExpression pulls the arithmetic part out of free text, e.g.
// "Calculate 2 + 2 please" yields "2 + 2". The longest run of arithmetic
// characters containing a digit wins; it returns "" when there is none.
func ExtractExpression(text string) string {
	best := ""
	var run strings.Builder
	flush := func() {
		candidate := strings.TrimSpace(run.String())
		run.Reset()
		if strings.IndexFunc(candidate, unicode.IsDigit) < 0 {
			return
		}
		if len(candidate) > len(best) {
			best = candidate
		}
	}
	for _, r := range text {
		if strings.ContainsRune(arithChars, r) {
			run.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimRight(best, "+-*/%^( \t")
}

// Evaluate computes an arithmetic expression supporting + - * / % ^,
// parentheses, unary signs and decimal literals. ^ is right associative and
// binds tighter than unary minus. Nothing beyond arithmetic is interpreted.
func Evaluate(expr string) (float64, error) {
	if len(expr) > MaxExpressionLength {
		return 0, fmt.Errorf("%w: expression longer than %d bytes", ErrInvalidExpression, MaxExpressionLength)
	}
	p := &parser{src: expr}
	p.next()
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrInvalidExpression, p.tok.text, p.tok.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: result is not a finite number", ErrInvalidExpression)
	}
	return v, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
	tokBad
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

type parser struct {
	src   string
	off   int
	tok   token
	depth int
}

func (p *parser) next() {
	for p.off < len(p.src) && (p.src[p.off] == ' ' || p.src[p.off] == '\t') {
		p.off++
	}
	if p.off >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: p.off}
		return
	}
	start := p.off
	c := p.src[p.off]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		for p.off < len(p.src) && (p.src[p.off] >= '0' && p.src[p.off] <= '9' || p.src[p.off] == '.') {
			p.off++
		}
		text := p.src[start:p.off]
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.tok = token{kind: tokBad, text: text, pos: start}
			return
		}
		p.tok = token{kind: tokNum, text: text, num: n, pos: start}
	case strings.IndexByte("+-*/%^", c) >= 0:
		p.off++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.off++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.off++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	default:
		p.off++
		p.tok = token{kind: tokBad, text: string(c), pos: start}
	}
}

// expr := term { ("+" | "-") term }
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

// term := unary { ("*" | "/" | "%") unary }
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/" || p.tok.text == "%") {
		op := p.tok.text
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left = math.Mod(left, right)
		}
	}
	return left, nil
}

// unary := ("+" | "-") unary | power
func (p *parser) parseUnary() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxExpressionDepth {
		return 0, fmt.Errorf("%w: nesting deeper than %d", ErrInvalidExpression, MaxExpressionDepth)
	}

	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "+") {
		neg := p.tok.text == "-"
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if neg {
			return -v, nil
		}
		return v, nil
	}
	return p.parsePower()
}

// power := primary [ "^" unary ]
func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.tok.kind == tokOp && p.tok.text == "^" {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

// primary := number | "(" expr ")"
func (p *parser) parsePrimary() (float64, error) {
	switch p.tok.kind {
	case tokNum:
		v := p.tok.num
		p.next()
		return v, nil
	case tokLParen:
		p.next()
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidExpression)
		}
		p.next()
		return v, nil
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of input", ErrInvalidExpression)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrInvalidExpression, p.tok.text, p.tok.pos)
	}
}
