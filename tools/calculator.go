package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deanmachines/foundry/tool"
)

// Calculator returns a tool evaluating arithmetic expressions with
// +, -, *, /, unary minus, and parentheses.
func Calculator() tool.Definition {
	return tool.Must(
		calculate,
		tool.Name("calculator"),
		tool.Description("Evaluate an arithmetic expression, e.g. '2.5 * (10 - 3)'. Supports +, -, *, / and parentheses."),
		tool.Parameters("expression"),
	)
}

func calculate(expression string) string {
	v, err := evalExpression(expression)
	if err != nil {
		return fmt.Sprintf("cannot evaluate %q: %v", expression, err)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func evalExpression(expression string) (float64, error) {
	p := &exprParser{input: expression}
	v, err := p.sum()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

// exprParser is a recursive descent parser over the usual precedence
// levels: sum -> product -> unary -> primary.
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() (byte, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *exprParser) sum() (float64, error) {
	left, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.product()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) product() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
			continue
		}
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		left /= right
	}
}

func (p *exprParser) unary() (float64, error) {
	if op, ok := p.peek(); ok && op == '-' {
		p.pos++
		v, err := p.unary()
		return -v, err
	}
	return p.primary()
}

func (p *exprParser) primary() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	if c == '(' {
		p.pos++
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
	}
	num := strings.TrimSpace(p.input[start:p.pos])
	return strconv.ParseFloat(num, 64)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
