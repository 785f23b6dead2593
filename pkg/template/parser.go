package template

import "fmt"

// Parse parses the body of a single `${ … }` expression into an Expr,
// implementing the precedence grammar from (low to high):
// logical-or, logical-and, equality, relational, additive, multiplicative,
// unary, primary.
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("TemplateError: %w", err)
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("TemplateError: unexpected trailing token %q", p.cur().text)
	}
	return expr, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	return p.cur().kind == tokPunct && p.cur().text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return fmt.Errorf("TemplateError: expected %q, got %q at offset %d", s, p.cur().text, p.cur().pos)
	}
	p.advance()
	return nil
}

// parseOr → parseTernary (the ternary sits above `||` in precedence terms
// but binds the whole conditional expression, so we parse it as the entry
// point and let it recurse into parseOrExpr for cond/then/else operands).
func (p *parser) parseOr() (Expr, error) {
	return p.parseTernary()
}

func (p *parser) parseTernary() (Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.isPunct("?") {
		p.advance()
		thenExpr, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		elseExpr, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &Ternary{Cond: cond, Then: thenExpr, Else: elseExpr}, nil
	}
	return cond, nil
}

func (p *parser) parseLogicalOr() (Expr, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.isPunct("||") {
		p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseLogicalAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.isPunct("&&") {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.isPunct("==") || p.isPunct("!=") {
		op := p.advance().text
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isPunct("<") || p.isPunct("<=") || p.isPunct(">") || p.isPunct(">=") {
		op := p.advance().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.advance().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") {
		op := p.advance().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isPunct("!") || p.isPunct("-") {
		op := p.advance().text
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		return &Literal{Value: Number(t.num)}, nil
	case tokString:
		p.advance()
		return &Literal{Value: String(t.text)}, nil
	case tokTrue:
		p.advance()
		return &Literal{Value: Bool(true)}, nil
	case tokFalse:
		p.advance()
		return &Literal{Value: Bool(false)}, nil
	case tokNull:
		p.advance()
		return &Literal{Value: Null()}, nil
	case tokIdent:
		return p.parseIdentOrCall()
	case tokPunct:
		switch t.text {
		case "(":
			p.advance()
			inner, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			return p.parseArrayLiteral()
		}
	}
	return nil, fmt.Errorf("TemplateError: unexpected token %q at offset %d", t.text, t.pos)
}

func (p *parser) parseArrayLiteral() (Expr, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	var items []Expr
	for !p.isPunct("]") {
		item, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &ArrayLiteral{Items: items}, nil
}

// parseIdentOrCall parses `name`, `name(args)`, or a dotted/bracketed path
// like `name.foo[0].bar`. A function call is only recognised when the very
// first segment is followed directly by `(` — paths may not themselves
// contain calls mid-chain.
func (p *parser) parseIdentOrCall() (Expr, error) {
	name := p.advance().text

	if p.isPunct("(") {
		p.advance()
		var args []Expr
		for !p.isPunct(")") {
			arg, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &Call{Name: name, Args: args}, nil
	}

	segs := []PathSegment{{Key: name}}
	for {
		if p.isPunct(".") {
			p.advance()
			if p.cur().kind != tokIdent {
				return nil, fmt.Errorf("TemplateError: expected identifier after '.' at offset %d", p.cur().pos)
			}
			segs = append(segs, PathSegment{Key: p.advance().text})
			continue
		}
		if p.isPunct("[") {
			p.advance()
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			segs = append(segs, PathSegment{Index: idx})
			continue
		}
		break
	}
	return &Ident{Segments: segs}, nil
}
