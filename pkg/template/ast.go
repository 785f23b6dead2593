package template

// Expr is a parsed node of the `${ … }` grammar.
type Expr interface {
	exprNode()
}

// Literal is a string/number/bool/null literal.
type Literal struct {
	Value Value
}

// Ident is a dotted/bracketed identifier path, e.g. actions.build.api.outputs.image
// or foo[0].bar. Each segment is either a plain key or a computed index
// (an Expr evaluated to a string/number and used as a map key/list index).
type Ident struct {
	Segments []PathSegment
}

type PathSegment struct {
	Key   string // set when this is a plain dotted segment
	Index Expr   // set when this is a bracketed segment: foo[expr]
}

// Call is a helper function invocation, e.g. join(list, ",").
type Call struct {
	Name string
	Args []Expr
}

// ArrayLiteral is `[a, b, c]`.
type ArrayLiteral struct {
	Items []Expr
}

// Unary is `!x` or `-x`.
type Unary struct {
	Op string
	X  Expr
}

// Binary is a left-associative binary operator application.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Ternary is `cond ? a : b`.
type Ternary struct {
	Cond Expr
	Then Expr
	Else Expr
}

// StringTemplate is a pre-scanned raw string value split into literal and
// `${ … }` segments (see interpolate.go). It lets a lazily-built Value tree
// wrap an entire leaf string as one Lazy value without re-lexing it every
// time the leaf is forced.
type StringTemplate struct {
	Segments []segment
}

func (*StringTemplate) exprNode() {}

func (*Literal) exprNode()      {}
func (*Ident) exprNode()        {}
func (*Call) exprNode()         {}
func (*ArrayLiteral) exprNode() {}
func (*Unary) exprNode()        {}
func (*Binary) exprNode()       {}
func (*Ternary) exprNode()      {}
