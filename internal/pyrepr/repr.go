// Package pyrepr renders Starlark values as Python literal source text.
//
// The generated notebook cells are executed by a Python kernel, so values
// are printed the way Python's repr() prints them rather than the way
// Starlark's own String method does (Starlark prefers double quotes and
// spells infinity "+inf").
package pyrepr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.starlark.net/starlark"
)

// ErrNotLiteral is returned for values that have no literal form.
var ErrNotLiteral = errors.New("value has no literal representation")

// Repr returns the Python literal for v.
func Repr(v starlark.Value) (string, error) {
	var sb strings.Builder
	if err := write(&sb, v, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// maxDepth guards against self-referencing containers.
const maxDepth = 64

func write(sb *strings.Builder, v starlark.Value, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting too deep", ErrNotLiteral)
	}

	switch x := v.(type) {
	case starlark.NoneType:
		sb.WriteString("None")
	case starlark.Bool:
		if x {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case starlark.Int:
		sb.WriteString(x.String())
	case starlark.Float:
		sb.WriteString(Float(float64(x)))
	case starlark.String:
		sb.WriteString(String(string(x)))
	case starlark.Bytes:
		sb.WriteString(Bytes(string(x)))
	case *starlark.List:
		sb.WriteByte('[')
		for i := 0; i < x.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := write(sb, x.Index(i), depth+1); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case starlark.Tuple:
		sb.WriteByte('(')
		for i, elem := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := write(sb, elem, depth+1); err != nil {
				return err
			}
		}
		if len(x) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case *starlark.Dict:
		sb.WriteByte('{')
		for i, item := range x.Items() {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := write(sb, item[0], depth+1); err != nil {
				return err
			}
			sb.WriteString(": ")
			if err := write(sb, item[1], depth+1); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	case *starlark.Set:
		if x.Len() == 0 {
			sb.WriteString("set()")
			return nil
		}
		sb.WriteByte('{')
		iter := x.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for i := 0; iter.Next(&elem); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := write(sb, elem, depth+1); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	default:
		return fmt.Errorf("%w: %s (%s)", ErrNotLiteral, v.String(), v.Type())
	}
	return nil
}

// Float formats f like Python's float repr: shortest round-trip digits,
// positional notation for exponents in [-4, 16), a trailing ".0" for
// integral values.
func Float(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "float('inf')"
	case math.IsInf(f, -1):
		return "-float('inf')"
	case math.IsNaN(f):
		return "float('nan')"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)

	if exp < -4 || exp >= 16 {
		// Python keeps at least two exponent digits, as Go does.
		return mant + "e" + expPart
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// String quotes s the way Python's str repr does.
func String(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(quote)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&sb, `\x%02x`, s[i])
			i++
			continue
		}
		i += size
		writeEscaped(&sb, r, quote)
	}
	sb.WriteByte(quote)
	return sb.String()
}

// Bytes quotes b the way Python's bytes repr does.
func Bytes(b string) string {
	quote := byte('\'')
	if strings.IndexByte(b, '\'') >= 0 && strings.IndexByte(b, '"') < 0 {
		quote = '"'
	}

	var sb strings.Builder
	sb.WriteString("b")
	sb.WriteByte(quote)
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '\\' || c == quote:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

func writeEscaped(sb *strings.Builder, r rune, quote byte) {
	switch {
	case r == '\\' || r == rune(quote):
		sb.WriteByte('\\')
		sb.WriteRune(r)
	case r == '\t':
		sb.WriteString(`\t`)
	case r == '\n':
		sb.WriteString(`\n`)
	case r == '\r':
		sb.WriteString(`\r`)
	case r < 0x20 || r == 0x7f:
		fmt.Fprintf(sb, `\x%02x`, r)
	case r < 0x7f:
		sb.WriteRune(r)
	case unicode.IsPrint(r):
		sb.WriteRune(r)
	case r <= 0xff:
		fmt.Fprintf(sb, `\x%02x`, r)
	case r <= 0xffff:
		fmt.Fprintf(sb, `\u%04x`, r)
	default:
		fmt.Fprintf(sb, `\U%08x`, r)
	}
}
