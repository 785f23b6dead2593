package template

import "strings"

// segment is either literal text or a parsed `${ … }` expression found
// while scanning a raw string value.
type segment struct {
	literal string
	expr    Expr
	isExpr  bool
}

// ScanString splits a raw YAML string value into literal and expression
// segments, honouring `$$` as an escape for a literal `$` ("literal $ is
// escaped as $$"). It does not evaluate anything — Parse errors in an
// embedded expression are deferred until EvaluateString actually needs that
// segment, preserving the lazy-evaluation contract.
func ScanString(raw string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	r := []rune(raw)
	i := 0
	for i < len(r) {
		switch {
		case r[i] == '$' && i+1 < len(r) && r[i+1] == '$':
			lit.WriteRune('$')
			i += 2
		case r[i] == '$' && i+1 < len(r) && r[i+1] == '{':
			depth := 1
			j := i + 2
			for j < len(r) && depth > 0 {
				switch r[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			if depth != 0 {
				return nil, &TemplateError{Message: "unterminated '${' expression"}
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{literal: lit.String()})
				lit.Reset()
			}
			body := string(r[i+2 : j])
			expr, err := Parse(body)
			if err != nil {
				return nil, err
			}
			segs = append(segs, segment{expr: expr, isExpr: true})
			i = j + 1
		default:
			lit.WriteRune(r[i])
			i++
		}
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}
	return segs, nil
}

// EvaluateString evaluates a raw string value against r in the given Mode.
//
// A string consisting of exactly one `${ … }` expression (no surrounding
// literal text) yields that expression's native Value type ("a string
// consisting only of a single ${ expr } yields the expression's native
// type"). Any other combination of literal text and expressions is
// concatenated as a string, coercing each expression result via stringify.
func EvaluateString(raw string, r Resolver, mode Mode) (Value, error) {
	segs, err := ScanString(raw)
	if err != nil {
		return Value{}, err
	}
	return evalSegments(segs, r, mode)
}

// evalSegments is the shared implementation behind EvaluateString and the
// *StringTemplate expression node (used by lazily-built tree leaves so a
// whole interpolated string is only re-evaluated, never re-lexed, when it is
// forced).
func evalSegments(segs []segment, r Resolver, mode Mode) (Value, error) {
	if len(segs) == 1 && segs[0].isExpr {
		return evalExpr(segs[0].expr, r, mode, nil)
	}

	var b strings.Builder
	for _, s := range segs {
		if !s.isExpr {
			b.WriteString(s.literal)
			continue
		}
		v, err := evalExpr(s.expr, r, mode, nil)
		if err != nil {
			return Value{}, err
		}
		if v.IsAbsent() {
			return Absent(), nil
		}
		b.WriteString(stringify(v))
	}
	return String(b.String()), nil
}

// HasExpression reports whether raw contains at least one `${ … }`
// expression (used by the graph builder's implicit-dependency scan to skip
// plain strings quickly).
func HasExpression(raw string) bool {
	segs, err := ScanString(raw)
	if err != nil {
		return true // let the real evaluation surface the syntax error
	}
	for _, s := range segs {
		if s.isExpr {
			return true
		}
	}
	return false
}
