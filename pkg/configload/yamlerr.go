package configload

import (
	"errors"
	"reflect"
)

// extractYAMLPosition pulls line/column information out of a goccy/go-yaml
// decode error via reflection. goccy wraps a *yaml.SyntaxError whose
// Token.Position carries the location; reflection avoids an import-time
// dependency on goccy's internal error type, which is not part of its
// stable public API.
func extractYAMLPosition(err error, fileStartLine int) (line, column int) {
	original := err
	for unwrapped := errors.Unwrap(original); unwrapped != nil; unwrapped = errors.Unwrap(original) {
		original = unwrapped
	}

	if line, column = extractFromGoccyError(original, fileStartLine); line > 0 {
		return line, column
	}
	if original != err {
		if line, column = extractFromGoccyError(err, fileStartLine); line > 0 {
			return line, column
		}
	}
	return 0, 0
}

func extractFromGoccyError(err error, fileStartLine int) (line, column int) {
	v := reflect.ValueOf(err)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0, 0
	}
	v = v.Elem()

	tokenField := v.FieldByName("Token")
	if !tokenField.IsValid() || tokenField.Kind() != reflect.Ptr || tokenField.IsNil() {
		return 0, 0
	}
	token := tokenField.Elem()

	posField := token.FieldByName("Position")
	if !posField.IsValid() || posField.Kind() != reflect.Ptr || posField.IsNil() {
		return 0, 0
	}
	pos := posField.Elem()

	lineField := pos.FieldByName("Line")
	columnField := pos.FieldByName("Column")
	if lineField.IsValid() && lineField.Kind() == reflect.Int {
		line = int(lineField.Int())
	}
	if columnField.IsValid() && columnField.Kind() == reflect.Int {
		column = int(columnField.Int())
	}
	if line > 0 {
		line += fileStartLine - 1
	}
	return line, column
}
