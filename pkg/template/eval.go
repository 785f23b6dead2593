package template

import (
	"fmt"
	"strings"
)

// Mode selects strict or partial resolution ("Partial resolution").
type Mode int

const (
	ModeStrict Mode = iota
	ModePartial
)

// Resolver resolves the root identifier of a path expression (e.g. "var",
// "actions", "inputs") against a layered context (pkg/tmplcontext). Nested
// path segments after the root are navigated by the evaluator itself over
// the returned Value tree, forcing any Lazy values it encounters along the
// way — this is what makes resolution genuinely lazy: a sibling field that
// is never navigated into is never evaluated.
type Resolver interface {
	Resolve(name string, mode Mode) (Value, error)
}

// TemplateError is returned for strict-mode resolution failures and for
// genuine syntax/cycle errors encountered at any mode. Use gardenerr to
// wrap these with a Kind/Location for CLI presentation; this package stays
// free of a gardenerr import so it has no dependency on the wider error
// taxonomy.
type TemplateError struct {
	Message string
	Path    []string
}

func (e *TemplateError) Error() string {
	if len(e.Path) == 0 {
		return "TemplateError: " + e.Message
	}
	return fmt.Sprintf("TemplateError: %s (at %s)", e.Message, strings.Join(e.Path, "."))
}

func missingKeyError(path []string) error {
	return &TemplateError{Message: "unresolvable reference", Path: path}
}

// Evaluate evaluates a parsed Expr against r in the given Mode.
func Evaluate(expr Expr, r Resolver, mode Mode) (Value, error) {
	return evalExpr(expr, r, mode, nil)
}

func evalExpr(expr Expr, r Resolver, mode Mode, path []string) (Value, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil

	case *Ident:
		return evalIdent(e, r, mode)

	case *ArrayLiteral:
		items := make([]Value, 0, len(e.Items))
		for _, it := range e.Items {
			v, err := evalExpr(it, r, mode, path)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return List(items), nil

	case *Call:
		return evalCall(e, r, mode)

	case *Unary:
		return evalUnary(e, r, mode)

	case *Binary:
		return evalBinary(e, r, mode)

	case *Ternary:
		return evalTernary(e, r, mode)

	case *StringTemplate:
		return evalSegments(e.Segments, r, mode)

	default:
		return Value{}, fmt.Errorf("TemplateError: unsupported expression node %T", expr)
	}
}

// probe evaluates expr as if in partial mode, regardless of the caller's
// mode, so that a missing reference never raises an error — it reports as
// Absent. This is used by ||, &&, and the ternary's condition operand,
// which resolve through an absent operand rather than failing outright.
func probe(expr Expr, r Resolver) (Value, error) {
	return evalExpr(expr, r, ModePartial, nil)
}

func evalIdent(id *Ident, r Resolver, mode Mode) (Value, error) {
	if len(id.Segments) == 0 {
		return Value{}, fmt.Errorf("TemplateError: empty identifier")
	}
	root := id.Segments[0]
	if root.Key == "" {
		return Value{}, fmt.Errorf("TemplateError: identifier cannot start with an index")
	}

	val, err := r.Resolve(root.Key, mode)
	if err != nil {
		return Value{}, err
	}
	val, err = force(val, mode)
	if err != nil {
		return Value{}, err
	}

	path := []string{root.Key}
	for _, seg := range id.Segments[1:] {
		val, err = navigate(val, seg, r, mode, path)
		if err != nil {
			return Value{}, err
		}
		if seg.Key != "" {
			path = append(path, seg.Key)
		} else {
			path = append(path, "[]")
		}
	}
	return val, nil
}

// navigate steps one path segment into val, forcing lazy values as needed.
func navigate(val Value, seg PathSegment, r Resolver, mode Mode, path []string) (Value, error) {
	val, err := force(val, mode)
	if err != nil {
		return Value{}, err
	}
	if val.IsAbsent() {
		return val, nil
	}

	if seg.Key != "" {
		entry, ok := val.MapGet(seg.Key)
		if !ok {
			if mode == ModeStrict {
				return Value{}, missingKeyError(append(append([]string{}, path...), seg.Key))
			}
			return Absent(), nil
		}
		return force(entry, mode)
	}

	idxVal, err := evalExpr(seg.Index, r, mode, path)
	if err != nil {
		return Value{}, err
	}
	idxVal, err = force(idxVal, mode)
	if err != nil {
		return Value{}, err
	}
	if idxVal.IsAbsent() {
		return Absent(), nil
	}

	if list, ok := val.AsList(); ok {
		n, ok := idxVal.AsNumber()
		if !ok {
			return Value{}, fmt.Errorf("TemplateError: list index must be a number")
		}
		i := int(n)
		if i < 0 || i >= len(list) {
			if mode == ModeStrict {
				return Value{}, missingKeyError(append(append([]string{}, path...), fmt.Sprintf("[%d]", i)))
			}
			return Absent(), nil
		}
		return force(list[i], mode)
	}

	if key, ok := idxVal.AsString(); ok {
		entry, ok := val.MapGet(key)
		if !ok {
			if mode == ModeStrict {
				return Value{}, missingKeyError(append(append([]string{}, path...), key))
			}
			return Absent(), nil
		}
		return force(entry, mode)
	}

	return Value{}, fmt.Errorf("TemplateError: cannot index value of kind %s", val.Kind())
}

// force resolves a Lazy value by evaluating its captured expression against
// its captured resolver. Non-lazy values pass through unchanged. A lazy
// value that is forced again while its own evaluation is still on the call
// stack means a variable references itself (directly or transitively); the
// spec requires this to raise a TemplateError rather than recurse forever.
func force(v Value, mode Mode) (Value, error) {
	if !v.IsLazy() {
		return v, nil
	}
	lv := v.Lazy()
	if lv.forcing {
		return Value{}, &TemplateError{Message: "cyclic variable reference"}
	}
	lv.forcing = true
	defer func() { lv.forcing = false }()
	return evalExpr(lv.Expr, lv.Resolver, mode, nil)
}

func evalUnary(u *Unary, r Resolver, mode Mode) (Value, error) {
	x, err := evalExpr(u.X, r, mode, nil)
	if err != nil {
		return Value{}, err
	}
	if x.IsAbsent() {
		return Absent(), nil
	}
	switch u.Op {
	case "!":
		return Bool(!x.Truthy()), nil
	case "-":
		n, ok := x.AsNumber()
		if !ok {
			return Value{}, fmt.Errorf("TemplateError: unary '-' requires a number operand, got %s", x.Kind())
		}
		return Number(-n), nil
	default:
		return Value{}, fmt.Errorf("TemplateError: unknown unary operator %q", u.Op)
	}
}

func evalBinary(b *Binary, r Resolver, mode Mode) (Value, error) {
	switch b.Op {
	case "||":
		return evalOr(b, r, mode)
	case "&&":
		return evalAnd(b, r, mode)
	}

	left, err := evalExpr(b.Left, r, mode, nil)
	if err != nil {
		return Value{}, err
	}
	if left.IsAbsent() {
		return Absent(), nil
	}
	right, err := evalExpr(b.Right, r, mode, nil)
	if err != nil {
		return Value{}, err
	}
	if right.IsAbsent() {
		return Absent(), nil
	}

	switch b.Op {
	case "==":
		return Bool(Equal(left, right)), nil
	case "!=":
		return Bool(!Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		return compareNumbers(b.Op, left, right)
	case "+":
		return addValues(left, right)
	case "-", "*", "/", "%":
		return arithmetic(b.Op, left, right)
	default:
		return Value{}, fmt.Errorf("TemplateError: unknown binary operator %q", b.Op)
	}
}

// evalOr implements `||`: returns the left operand if it is present and
// truthy, else the right. The left operand is always probed so a missing
// reference doesn't hard-fail — in partial mode this reports the whole
// expression as absent (rather than falling through to the right
// operand), while strict mode falls through to evaluating the right
// operand normally.
func evalOr(b *Binary, r Resolver, mode Mode) (Value, error) {
	left, err := probe(b.Left, r)
	if err != nil {
		return Value{}, err
	}
	if left.IsAbsent() {
		if mode == ModePartial {
			return Absent(), nil
		}
		return evalExpr(b.Right, r, mode, nil)
	}
	if left.Truthy() {
		return left, nil
	}
	return evalExpr(b.Right, r, mode, nil)
}

// evalAnd implements `&&`: "short-circuits to false if left is falsy, else
// returns the right". Symmetric absent-masking policy to evalOr: an absent
// left is not decidable as truthy/falsy, so partial mode reports the whole
// expression absent and strict mode falls through to the right operand.
func evalAnd(b *Binary, r Resolver, mode Mode) (Value, error) {
	left, err := probe(b.Left, r)
	if err != nil {
		return Value{}, err
	}
	if left.IsAbsent() {
		if mode == ModePartial {
			return Absent(), nil
		}
		return evalExpr(b.Right, r, mode, nil)
	}
	if !left.Truthy() {
		return Bool(false), nil
	}
	return evalExpr(b.Right, r, mode, nil)
}

func evalTernary(t *Ternary, r Resolver, mode Mode) (Value, error) {
	cond, err := probe(t.Cond, r)
	if err != nil {
		return Value{}, err
	}
	if cond.IsAbsent() {
		if mode == ModePartial {
			return Absent(), nil
		}
		return Value{}, missingKeyError(nil)
	}
	if cond.Truthy() {
		return evalExpr(t.Then, r, mode, nil)
	}
	return evalExpr(t.Else, r, mode, nil)
}

func compareNumbers(op string, left, right Value) (Value, error) {
	ln, lok := left.AsNumber()
	rn, rok := right.AsNumber()
	if !lok || !rok {
		return Value{}, fmt.Errorf("TemplateError: relational operator %q requires numeric operands", op)
	}
	switch op {
	case "<":
		return Bool(ln < rn), nil
	case "<=":
		return Bool(ln <= rn), nil
	case ">":
		return Bool(ln > rn), nil
	case ">=":
		return Bool(ln >= rn), nil
	}
	return Value{}, fmt.Errorf("TemplateError: unknown relational operator %q", op)
}

// addValues implements `+`: numeric addition, or string concatenation if
// either operand is a string (coercing the other to its string form).
func addValues(left, right Value) (Value, error) {
	if ls, ok := left.AsString(); ok {
		return String(ls + stringify(right)), nil
	}
	if rs, ok := right.AsString(); ok {
		return String(stringify(left) + rs), nil
	}
	ln, lok := left.AsNumber()
	rn, rok := right.AsNumber()
	if lok && rok {
		return Number(ln + rn), nil
	}
	return Value{}, fmt.Errorf("TemplateError: '+' requires numbers or a string operand, got %s and %s", left.Kind(), right.Kind())
}

func arithmetic(op string, left, right Value) (Value, error) {
	ln, lok := left.AsNumber()
	rn, rok := right.AsNumber()
	if !lok || !rok {
		return Value{}, fmt.Errorf("TemplateError: operator %q requires numeric operands, got %s and %s", op, left.Kind(), right.Kind())
	}
	switch op {
	case "-":
		return Number(ln - rn), nil
	case "*":
		return Number(ln * rn), nil
	case "/":
		if rn == 0 {
			return Value{}, fmt.Errorf("TemplateError: division by zero")
		}
		return Number(ln / rn), nil
	case "%":
		if rn == 0 {
			return Value{}, fmt.Errorf("TemplateError: modulo by zero")
		}
		return Number(float64(int64(ln) % int64(rn))), nil
	}
	return Value{}, fmt.Errorf("TemplateError: unknown arithmetic operator %q", op)
}

func stringify(v Value) string {
	switch v.Kind() {
	case KindString:
		s, _ := v.AsString()
		return s
	case KindNumber:
		n, _ := v.AsNumber()
		return formatNumber(n)
	case KindBool:
		b, _ := v.AsBool()
		if b {
			return "true"
		}
		return "false"
	case KindNull:
		return ""
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func evalCall(c *Call, r Resolver, mode Mode) (Value, error) {
	fn, ok := helperRegistry[c.Name]
	if !ok {
		return Value{}, fmt.Errorf("TemplateError: unknown function %q", c.Name)
	}

	args := make([]Value, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := evalExpr(a, r, mode, nil)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}

	// Generic absent propagation: a function applied to a not-yet-resolved
	// argument cannot produce a meaningful result, except isEmpty, which
	// treats "nothing there" as legitimately empty (handled inside the
	// helper itself, before this check would otherwise mask it).
	if c.Name != "isEmpty" {
		for _, a := range args {
			if a.IsAbsent() {
				return Absent(), nil
			}
		}
	}

	return fn(args)
}
