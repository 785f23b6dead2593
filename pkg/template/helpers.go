package template

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// helperFunc is a fixed-arity helper in the expression language's
// built-in function registry.
type helperFunc func(args []Value) (Value, error)

var helperRegistry map[string]helperFunc

func init() {
	helperRegistry = map[string]helperFunc{
		"camelCase":      helperCamelCase,
		"kebabCase":      helperKebabCase,
		"snakeCase":      helperSnakeCase,
		"lower":          wrapUnaryString(strings.ToLower),
		"upper":          wrapUnaryString(strings.ToUpper),
		"trim":           wrapUnaryString(strings.TrimSpace),
		"join":           helperJoin,
		"split":          helperSplit,
		"replace":        helperReplace,
		"slice":          helperSlice,
		"isEmpty":        helperIsEmpty,
		"jsonEncode":     helperJSONEncode,
		"jsonDecode":     helperJSONDecode,
		"yamlEncode":     helperYAMLEncode,
		"yamlDecode":     helperYAMLDecode,
		"base64Encode":   helperBase64Encode,
		"base64Decode":   helperBase64Decode,
		"indent":         helperIndent,
		"formatDate":     helperFormatDate,
		"uuidv4":         helperUUIDV4,
	}
}

func arityError(name string, want int, got int) error {
	return fmt.Errorf("TemplateError: %s() expects %d argument(s), got %d", name, want, got)
}

func typeError(name string, argIndex int, want string, got Kind) error {
	return fmt.Errorf("TemplateError: %s() argument %d must be %s, got %s", name, argIndex, want, got)
}

func requireString(name string, args []Value, i int) (string, error) {
	if i >= len(args) {
		return "", arityError(name, i+1, len(args))
	}
	s, ok := args[i].AsString()
	if !ok {
		return "", typeError(name, i+1, "string", args[i].Kind())
	}
	return s, nil
}

func wrapUnaryString(fn func(string) string) helperFunc {
	return func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("helper", 1, len(args))
		}
		s, ok := args[0].AsString()
		if !ok {
			return Value{}, typeError("helper", 1, "string", args[0].Kind())
		}
		return String(fn(s)), nil
	}
}

func helperCamelCase(args []Value) (Value, error) {
	s, err := requireString("camelCase", args, 0)
	if err != nil {
		return Value{}, err
	}
	words := splitWords(s)
	var b strings.Builder
	for i, w := range words {
		if w == "" {
			continue
		}
		if i == 0 {
			b.WriteString(strings.ToLower(w))
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + strings.ToLower(w[1:]))
	}
	return String(b.String()), nil
}

func helperKebabCase(args []Value) (Value, error) {
	s, err := requireString("kebabCase", args, 0)
	if err != nil {
		return Value{}, err
	}
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return String(strings.Join(words, "-")), nil
}

func helperSnakeCase(args []Value) (Value, error) {
	s, err := requireString("snakeCase", args, 0)
	if err != nil {
		return Value{}, err
	}
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return String(strings.Join(words, "_")), nil
}

// splitWords breaks a string on non-alphanumeric separators and on
// camelCase/PascalCase boundaries, keeping each word's letter case: so
// "fooBarBaz" yields ["foo","Bar","Baz"] and "foo-bar_baz" yields
// ["foo","bar","baz"].
func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	runes := []rune(s)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			flush()
		}
		cur.WriteRune(r)
	}
	flush()
	return words
}

func helperJoin(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, arityError("join", 2, len(args))
	}
	list, ok := args[0].AsList()
	if !ok {
		return Value{}, typeError("join", 1, "list", args[0].Kind())
	}
	sep, ok := args[1].AsString()
	if !ok {
		return Value{}, typeError("join", 2, "string", args[1].Kind())
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = stringify(v)
	}
	return String(strings.Join(parts, sep)), nil
}

func helperSplit(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, arityError("split", 2, len(args))
	}
	s, err := requireString("split", args, 0)
	if err != nil {
		return Value{}, err
	}
	sep, err := requireString("split", args, 1)
	if err != nil {
		return Value{}, err
	}
	parts := strings.Split(s, sep)
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = String(p)
	}
	return List(items), nil
}

func helperReplace(args []Value) (Value, error) {
	if len(args) != 3 {
		return Value{}, arityError("replace", 3, len(args))
	}
	s, err := requireString("replace", args, 0)
	if err != nil {
		return Value{}, err
	}
	old, err := requireString("replace", args, 1)
	if err != nil {
		return Value{}, err
	}
	new, err := requireString("replace", args, 2)
	if err != nil {
		return Value{}, err
	}
	return String(strings.ReplaceAll(s, old, new)), nil
}

func helperSlice(args []Value) (Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return Value{}, fmt.Errorf("TemplateError: slice() expects 2 or 3 arguments, got %d", len(args))
	}
	start, ok := args[1].AsNumber()
	if !ok {
		return Value{}, typeError("slice", 2, "number", args[1].Kind())
	}

	if s, ok := args[0].AsString(); ok {
		r := []rune(s)
		end := float64(len(r))
		if len(args) == 3 {
			e, ok := args[2].AsNumber()
			if !ok {
				return Value{}, typeError("slice", 3, "number", args[2].Kind())
			}
			end = e
		}
		lo, hi := clampSlice(int(start), int(end), len(r))
		return String(string(r[lo:hi])), nil
	}

	if list, ok := args[0].AsList(); ok {
		end := float64(len(list))
		if len(args) == 3 {
			e, ok := args[2].AsNumber()
			if !ok {
				return Value{}, typeError("slice", 3, "number", args[2].Kind())
			}
			end = e
		}
		lo, hi := clampSlice(int(start), int(end), len(list))
		out := make([]Value, hi-lo)
		copy(out, list[lo:hi])
		return List(out), nil
	}

	return Value{}, typeError("slice", 1, "string or list", args[0].Kind())
}

func clampSlice(start, end, length int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > end {
		start = end
	}
	return start, end
}

func helperIsEmpty(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("isEmpty", 1, len(args))
	}
	if args[0].IsAbsent() {
		return Bool(true), nil
	}
	return Bool(!args[0].Truthy()), nil
}

func helperJSONEncode(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("jsonEncode", 1, len(args))
	}
	b, err := json.Marshal(ToNative(args[0]))
	if err != nil {
		return Value{}, fmt.Errorf("TemplateError: jsonEncode failed: %w", err)
	}
	return String(string(b)), nil
}

func helperJSONDecode(args []Value) (Value, error) {
	s, err := requireString("jsonDecode", args, 0)
	if err != nil {
		return Value{}, err
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return Value{}, fmt.Errorf("TemplateError: jsonDecode failed: %w", err)
	}
	return FromNative(out), nil
}

func helperYAMLEncode(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError("yamlEncode", 1, len(args))
	}
	b, err := yaml.Marshal(ToNative(args[0]))
	if err != nil {
		return Value{}, fmt.Errorf("TemplateError: yamlEncode failed: %w", err)
	}
	return String(string(b)), nil
}

func helperYAMLDecode(args []Value) (Value, error) {
	s, err := requireString("yamlDecode", args, 0)
	if err != nil {
		return Value{}, err
	}
	var out any
	if err := yaml.Unmarshal([]byte(s), &out); err != nil {
		return Value{}, fmt.Errorf("TemplateError: yamlDecode failed: %w", err)
	}
	return FromNative(normalizeYAML(out)), nil
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already string
// keyed for our usage) recursively so FromNative's type switch matches.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return t
	}
}

func helperBase64Encode(args []Value) (Value, error) {
	s, err := requireString("base64Encode", args, 0)
	if err != nil {
		return Value{}, err
	}
	return String(base64.StdEncoding.EncodeToString([]byte(s))), nil
}

func helperBase64Decode(args []Value) (Value, error) {
	s, err := requireString("base64Decode", args, 0)
	if err != nil {
		return Value{}, err
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Value{}, fmt.Errorf("TemplateError: base64Decode failed: %w", err)
	}
	return String(string(b)), nil
}

func helperIndent(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, arityError("indent", 2, len(args))
	}
	s, err := requireString("indent", args, 0)
	if err != nil {
		return Value{}, err
	}
	n, ok := args[1].AsNumber()
	if !ok {
		return Value{}, typeError("indent", 2, "number", args[1].Kind())
	}
	pad := strings.Repeat(" ", int(n))
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l == "" {
			continue
		}
		lines[i] = pad + l
	}
	return String(strings.Join(lines, "\n")), nil
}

func helperFormatDate(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, arityError("formatDate", 2, len(args))
	}
	s, err := requireString("formatDate", args, 0)
	if err != nil {
		return Value{}, err
	}
	layout, err := requireString("formatDate", args, 1)
	if err != nil {
		return Value{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Value{}, fmt.Errorf("TemplateError: formatDate could not parse %q as RFC3339: %w", s, err)
	}
	return String(t.Format(goLayoutFromToken(layout))), nil
}

// goLayoutFromToken translates a small set of common strftime-ish tokens
// into a Go reference-time layout, since Garden config authors are expected
// to write formats like "YYYY-MM-DD" rather than Go's "2006-01-02".
func goLayoutFromToken(token string) string {
	replacer := strings.NewReplacer(
		"YYYY", "2006",
		"MM", "01",
		"DD", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return replacer.Replace(token)
}

func helperUUIDV4(args []Value) (Value, error) {
	if len(args) != 0 {
		return Value{}, arityError("uuidv4", 0, len(args))
	}
	return String(uuid.NewString()), nil
}
