package template

// CollectIdentPaths scans raw for every `${ … }` expression and returns
// the dotted path of every identifier referenced anywhere within it
// (including inside function-call arguments, array literals, and
// ternary/binary/unary operands) without evaluating anything. A
// bracket-indexed segment (`foo[x]`) contributes the literal "*" in place
// of its key, since the concrete key is not known until the index
// expression is evaluated; the index expression itself is still walked
// for identifiers.
//
// This is how graph building's Phase 1 discovers implicit
// `actions.<kind>.<name>.*` dependencies: by scanning every string field of a config body
// in partial mode, never resolving anything.
func CollectIdentPaths(raw string) ([][]string, error) {
	segs, err := ScanString(raw)
	if err != nil {
		return nil, err
	}
	var paths [][]string
	for _, seg := range segs {
		if seg.isExpr {
			collectIdentPaths(seg.expr, &paths)
		}
	}
	return paths, nil
}

func collectIdentPaths(e Expr, out *[][]string) {
	if e == nil {
		return
	}
	switch t := e.(type) {
	case *Ident:
		path := make([]string, 0, len(t.Segments))
		for _, seg := range t.Segments {
			if seg.Key != "" {
				path = append(path, seg.Key)
			} else {
				path = append(path, "*")
				collectIdentPaths(seg.Index, out)
			}
		}
		*out = append(*out, path)
	case *Call:
		for _, a := range t.Args {
			collectIdentPaths(a, out)
		}
	case *ArrayLiteral:
		for _, it := range t.Items {
			collectIdentPaths(it, out)
		}
	case *Unary:
		collectIdentPaths(t.X, out)
	case *Binary:
		collectIdentPaths(t.Left, out)
		collectIdentPaths(t.Right, out)
	case *Ternary:
		collectIdentPaths(t.Cond, out)
		collectIdentPaths(t.Then, out)
		collectIdentPaths(t.Else, out)
	case *StringTemplate:
		for _, s := range t.Segments {
			if s.isExpr {
				collectIdentPaths(s.expr, out)
			}
		}
	case *Literal:
		// no identifiers to collect
	}
}
