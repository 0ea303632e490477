package executor

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

var errNoJSON = errors.New("JSON.stringify is not available")

// render joins console arguments the way a browser console would print them:
// objects as indented JSON, everything else through String().
func render(vm *goja.Runtime, args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = renderValue(vm, arg)
	}
	return strings.Join(parts, " ")
}

func renderValue(vm *goja.Runtime, v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, callable := goja.AssertFunction(obj); !callable {
			if s, err := stringify(vm, obj, true); err == nil && s != "undefined" {
				return s
			}
		}
	}
	return v.String()
}

// stringify calls the runtime's JSON.stringify. A value JSON cannot
// represent comes back as "undefined".
func stringify(vm *goja.Runtime, v goja.Value, pretty bool) (string, error) {
	jsonValue := vm.Get("JSON")
	if jsonValue == nil || goja.IsUndefined(jsonValue) {
		return "", errNoJSON
	}
	jsonObj := jsonValue.ToObject(vm)
	fn, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return "", errNoJSON
	}

	args := []goja.Value{v}
	if pretty {
		args = append(args, goja.Null(), vm.ToValue(2))
	}
	out, err := fn(jsonObj, args...)
	if err != nil {
		return "", err
	}
	if out == nil || goja.IsUndefined(out) {
		return "undefined", nil
	}
	return out.String(), nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true, "let": true, "static": true, "await": true,
	"implements": true, "interface": true, "package": true, "private": true,
	"protected": true, "public": true, "arguments": true, "eval": true,
}

// IsIdentifier reports whether name can be declared as a JavaScript binding.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name) && !reservedWords[name]
}
