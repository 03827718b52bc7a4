package fold

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/fmeum/unbox/internal/ast"
)

type builtinFunc = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

// builtins returns the predeclared functions of folded expressions and
// helper modules. They follow JavaScript semantics.
func builtins() starlark.StringDict {
	fns := map[string]builtinFunc{
		"js_add":       jsAdd,
		"js_sub":       numeric2(func(x, y float64) float64 { return x - y }),
		"js_mul":       numeric2(func(x, y float64) float64 { return x * y }),
		"js_div":       numeric2(func(x, y float64) float64 { return x / y }),
		"js_rem":       numeric2(math.Mod),
		"js_neg":       numeric1(func(x float64) float64 { return -x }),
		"js_lt":        jsCompare(syntax.LT),
		"js_le":        jsCompare(syntax.LE),
		"js_gt":        jsCompare(syntax.GT),
		"js_ge":        jsCompare(syntax.GE),
		"js_strict_eq": jsStrictEqual(false),
		"js_strict_ne": jsStrictEqual(true),
		"js_not":       jsNot,
		"js_typeof":    jsTypeof,
		"js_string":    jsStringFn,
		"js_number":    jsNumber,
		"js_to_fixed":  jsToFixed,
		"js_join":      jsJoin,
		"js_includes":  jsIncludes,
		"js_replace":   jsReplace,
		"math_abs":     numeric1(math.Abs),
		"math_ceil":    numeric1(math.Ceil),
		"math_floor":   numeric1(math.Floor),
		"math_round":   numeric1(func(x float64) float64 { return math.Floor(x + 0.5) }),
		"math_sqrt":    numeric1(math.Sqrt),
		"math_pow":     numeric2(math.Pow),
		"math_max":     mathExtremum(math.Inf(-1), func(x, y float64) bool { return x > y }),
		"math_min":     mathExtremum(math.Inf(1), func(x, y float64) bool { return x < y }),
	}
	out := make(starlark.StringDict, len(fns))
	for name, fn := range fns {
		out[name] = starlark.NewBuiltin(name, fn)
	}
	return out
}

// num returns an Int for integral values that are exact as doubles.
func num(f float64) starlark.Value {
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		return starlark.MakeInt64(int64(f))
	}
	return starlark.Float(f)
}

func toNumber(v starlark.Value) float64 {
	switch v := v.(type) {
	case starlark.Int:
		f, _ := starlark.AsFloat(v)
		return f
	case starlark.Float:
		return float64(v)
	case starlark.Bool:
		if v {
			return 1
		}
		return 0
	case starlark.NoneType:
		return 0
	case starlark.String:
		return stringToNumber(string(v))
	case *starlark.List:
		// Lists convert through their string form, so [] is 0 and [5] is 5.
		if s, err := jsString(v); err == nil {
			return stringToNumber(s)
		}
	}
	return math.NaN()
}

func isJSSpace(r rune) bool {
	return (unicode.IsSpace(r) && r != '\u0085') || r == '\ufeff'
}

// stringToNumber converts s the way Number(s) does. Numeric separators
// and the bigint suffix of literals are not accepted here, and neither is
// a sign before a radix prefix.
func stringToNumber(s string) float64 {
	s = strings.TrimFunc(s, isJSSpace)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			return parseRadix(s[2:], 16)
		case 'o', 'O':
			return parseRadix(s[2:], 8)
		case 'b', 'B':
			return parseRadix(s[2:], 2)
		}
	}
	body, sign := s, 1
	if body[0] == '+' || body[0] == '-' {
		if body[0] == '-' {
			sign = -1
		}
		body = body[1:]
	}
	if body == "Infinity" {
		return math.Inf(sign)
	}
	if !isDecimal(body) {
		return math.NaN()
	}
	// Out of range values come back as infinities.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}

func parseRadix(digits string, base int) float64 {
	if digits == "" {
		return math.NaN()
	}
	var f float64
	for _, c := range digits {
		d, err := strconv.ParseUint(string(c), base, 8)
		if err != nil {
			return math.NaN()
		}
		f = f*float64(base) + float64(d)
	}
	return f
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// isDecimal reports whether s is digits with an optional fraction and
// exponent.
func isDecimal(s string) bool {
	i, digits := 0, 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func jsString(v starlark.Value) (string, error) {
	switch v := v.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.Int, starlark.Float:
		return ast.FormatNumber(toNumber(v)), nil
	case starlark.Bool:
		return strconv.FormatBool(bool(v)), nil
	case starlark.NoneType:
		return "null", nil
	case *starlark.List:
		parts := make([]string, v.Len())
		for i := range parts {
			if _, none := v.Index(i).(starlark.NoneType); none {
				continue
			}
			s, err := jsString(v.Index(i))
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("cannot convert %s to string", v.Type())
}

func truthy(v starlark.Value) bool {
	switch v := v.(type) {
	case starlark.String:
		return v != ""
	case starlark.Int, starlark.Float:
		f := toNumber(v)
		return f != 0 && !math.IsNaN(f)
	case starlark.Bool:
		return bool(v)
	case starlark.NoneType:
		return false
	}
	return true
}

func isText(v starlark.Value) bool {
	switch v.(type) {
	case starlark.String, *starlark.List:
		return true
	}
	return false
}

func jsAdd(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
		return nil, err
	}
	if isText(x) || isText(y) {
		xs, err := jsString(x)
		if err != nil {
			return nil, err
		}
		ys, err := jsString(y)
		if err != nil {
			return nil, err
		}
		return starlark.String(xs + ys), nil
	}
	return num(toNumber(x) + toNumber(y)), nil
}

func jsNot(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	return starlark.Bool(!truthy(x)), nil
}

func jsTypeof(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	switch x.(type) {
	case starlark.String:
		return starlark.String("string"), nil
	case starlark.Int, starlark.Float:
		return starlark.String("number"), nil
	case starlark.Bool:
		return starlark.String("boolean"), nil
	case starlark.Callable:
		return starlark.String("function"), nil
	}
	return starlark.String("object"), nil
}

func jsStringFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	s, err := jsString(x)
	if err != nil {
		return nil, err
	}
	return starlark.String(s), nil
}

func jsNumber(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	return num(toNumber(x)), nil
}

func jsToFixed(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	digits := 0
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x, &digits); err != nil {
		return nil, err
	}
	if digits < 0 || digits > 100 {
		return nil, fmt.Errorf("%s: digits out of range: %d", b.Name(), digits)
	}
	return starlark.String(strconv.FormatFloat(toNumber(x), 'f', digits, 64)), nil
}

func jsJoin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var list *starlark.List
	sep := ","
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &list, &sep); err != nil {
		return nil, err
	}
	parts := make([]string, list.Len())
	for i := range parts {
		if _, none := list.Index(i).(starlark.NoneType); none {
			continue
		}
		s, err := jsString(list.Index(i))
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return starlark.String(strings.Join(parts, sep)), nil
}

func jsIncludes(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var recv, x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &recv, &x); err != nil {
		return nil, err
	}
	switch recv := recv.(type) {
	case starlark.String:
		s, err := jsString(x)
		if err != nil {
			return nil, err
		}
		return starlark.Bool(strings.Contains(string(recv), s)), nil
	case *starlark.List:
		if !isPrimitive(x) {
			return nil, fmt.Errorf("%s: cannot compare %s by identity", b.Name(), x.Type())
		}
		for i := 0; i < recv.Len(); i++ {
			if eq, err := starlark.Equal(recv.Index(i), x); err == nil && eq {
				return starlark.True, nil
			}
		}
		return starlark.False, nil
	}
	return nil, fmt.Errorf("%s: unsupported receiver %s", b.Name(), recv.Type())
}

func jsReplace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s, old, repl string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &s, &old, &repl); err != nil {
		return nil, err
	}
	return starlark.String(strings.Replace(s, old, repl, 1)), nil
}

func numeric1(fn func(float64) float64) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
			return nil, err
		}
		return num(fn(toNumber(x))), nil
	}
}

func numeric2(fn func(float64, float64) float64) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x, y starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
			return nil, err
		}
		return num(fn(toNumber(x), toNumber(y))), nil
	}
}

func isPrimitive(v starlark.Value) bool {
	switch v.(type) {
	case starlark.String, starlark.Int, starlark.Float, starlark.Bool, starlark.NoneType:
		return true
	}
	return false
}

func isNumber(v starlark.Value) bool {
	switch v.(type) {
	case starlark.Int, starlark.Float:
		return true
	}
	return false
}

// jsStrictEqual implements === and, if negate is set, !==. Objects and
// arrays compare by identity, which is not known here, so they fail.
func jsStrictEqual(negate bool) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x, y starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
			return nil, err
		}
		if !isPrimitive(x) || !isPrimitive(y) {
			return nil, fmt.Errorf("%s: cannot compare %s and %s by identity", b.Name(), x.Type(), y.Type())
		}
		var eq bool
		switch {
		case isNumber(x) && isNumber(y):
			eq = toNumber(x) == toNumber(y)
		case x.Type() == y.Type():
			var err error
			if eq, err = starlark.Equal(x, y); err != nil {
				return nil, err
			}
		}
		return starlark.Bool(eq != negate), nil
	}
}

// jsCompare implements the relational operators. Two strings compare by
// UTF-16 code units, anything else as numbers.
func jsCompare(op syntax.Token) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x, y starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
			return nil, err
		}
		if !isPrimitive(x) || !isPrimitive(y) {
			return nil, fmt.Errorf("%s: unsupported operands %s and %s", b.Name(), x.Type(), y.Type())
		}
		xs, xok := x.(starlark.String)
		ys, yok := y.(starlark.String)
		if xok && yok {
			c := slices.Compare(utf16.Encode([]rune(string(xs))), utf16.Encode([]rune(string(ys))))
			return starlark.Bool(compared(op, c)), nil
		}
		xf, yf := toNumber(x), toNumber(y)
		if math.IsNaN(xf) || math.IsNaN(yf) {
			return starlark.False, nil
		}
		c := 0
		if xf < yf {
			c = -1
		} else if xf > yf {
			c = 1
		}
		return starlark.Bool(compared(op, c)), nil
	}
}

func compared(op syntax.Token, c int) bool {
	switch op {
	case syntax.LT:
		return c < 0
	case syntax.LE:
		return c <= 0
	case syntax.GT:
		return c > 0
	}
	return c >= 0
}

// mathExtremum implements Math.max and Math.min. A NaN argument makes the
// result NaN.
func mathExtremum(init float64, better func(x, y float64) bool) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		out := init
		for _, a := range args {
			f := toNumber(a)
			if math.IsNaN(f) {
				return num(f), nil
			}
			if better(f, out) {
				out = f
			}
		}
		return num(out), nil
	}
}
