package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/dop251/goja"
)

const maxPreview = 200

// IsEmpty reports whether v is a result not worth showing: undefined, null
// or anything falsy.
func IsEmpty(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v) || !v.ToBoolean()
}

// FormatValue renders v for terminal output. It may call into the VM, so the
// caller must hold the runtime.
func FormatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}

	if obj, ok := val.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(obj); isFunc {
			return describeFunction(obj)
		}
	}
	if sym, ok := val.(*goja.Symbol); ok {
		return sym.String()
	}

	switch v := val.Export().(type) {
	case string:
		if len(v) > 1000 {
			return fmt.Sprintf("%q... (truncated, total %d chars)", v[:1000], len(v))
		}
		return fmt.Sprintf("%q", v)
	case []any:
		if len(v) == 0 {
			return "[]"
		}
		n := min(len(v), 20)
		items := make([]string, 0, n+1)
		for i := range n {
			items = append(items, formatItem(v[i]))
		}
		if len(v) > n {
			items = append(items, fmt.Sprintf("... (%d more items)", len(v)-n))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		return formatItem(v)
	case *big.Int:
		return v.String() + "n"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatItem renders plain objects and nested arrays in JSON notation.
// Values JSON cannot carry (functions, NaN) fall back to Go formatting.
func formatItem(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err == nil {
			return strings.TrimSuffix(buf.String(), "\n")
		}
	case *big.Int:
		return fmt.Sprintf("%vn", v)
	}
	return fmt.Sprintf("%v", v)
}

// Describe returns a kind label and a short preview of v for namespace
// listings. Like FormatValue it must run while the runtime is held.
func Describe(val goja.Value) (kind, preview string) {
	switch {
	case val == nil || goja.IsUndefined(val):
		return "undefined", "undefined"
	case goja.IsNull(val):
		return "null", "null"
	}

	obj, ok := val.(*goja.Object)
	if !ok {
		return primitiveKind(val), truncate(FormatValue(val))
	}

	if _, isFunc := goja.AssertFunction(obj); isFunc {
		return "function", describeFunction(obj)
	}
	return strings.ToLower(obj.ClassName()), truncate(FormatValue(val))
}

// primitiveKind labels a non-object value. Symbols export as strings, so
// they are matched by type first.
func primitiveKind(val goja.Value) string {
	if _, ok := val.(*goja.Symbol); ok {
		return "symbol"
	}
	t := val.ExportType()
	if t == nil {
		return "undefined"
	}
	if t == reflect.TypeOf((*big.Int)(nil)) {
		return "bigint"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int64, reflect.Float64:
		return "number"
	}
	return t.Kind().String()
}

func describeFunction(obj *goja.Object) string {
	name := ""
	if v := obj.Get("name"); v != nil && !goja.IsUndefined(v) {
		name = v.String()
	}
	if name == "" {
		return "[Function (anonymous)]"
	}
	return "[Function: " + name + "]"
}

func truncate(s string) string {
	if len(s) <= maxPreview {
		return s
	}
	return s[:maxPreview] + "..."
}
