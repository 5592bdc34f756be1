package params

import (
	"fmt"
	"math"

	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// maxGenerated caps the length of lists built by linspace and arange.
const maxGenerated = 1 << 20

// Predeclared returns the namespace a parameter cell is evaluated in: the
// math, json and time modules plus numpy-style range helpers.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"math":     starmath.Module,
		"json":     starjson.Module,
		"time":     startime.Module,
		"linspace": starlark.NewBuiltin("linspace", linspace),
		"arange":   starlark.NewBuiltin("arange", arange),
	}
}

// linspace(start, stop, num=50, endpoint=True) returns num evenly spaced
// floats over [start, stop].
func linspace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		start, stop starlark.Value
		num         = 50
		endpoint    = true
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop, "num?", &num, "endpoint?", &endpoint); err != nil {
		return nil, err
	}
	lo, ok := starlark.AsFloat(start)
	if !ok {
		return nil, fmt.Errorf("%s: start: got %s, want number", b.Name(), start.Type())
	}
	hi, ok := starlark.AsFloat(stop)
	if !ok {
		return nil, fmt.Errorf("%s: stop: got %s, want number", b.Name(), stop.Type())
	}
	if num < 0 {
		return nil, fmt.Errorf("%s: num must be non-negative, got %d", b.Name(), num)
	}
	if num > maxGenerated {
		return nil, fmt.Errorf("%s: num %d exceeds limit %d", b.Name(), num, maxGenerated)
	}

	div := num
	if endpoint {
		div = num - 1
	}

	values := make([]starlark.Value, num)
	for i := range values {
		if div <= 0 {
			values[i] = starlark.Float(lo)
			continue
		}
		values[i] = starlark.Float(lo + float64(i)*(hi-lo)/float64(div))
	}
	if endpoint && num > 1 {
		values[num-1] = starlark.Float(hi)
	}
	return starlark.NewList(values), nil
}

// arange(stop) or arange(start, stop, step=1) returns the half-open range
// [start, stop). The result holds ints when every argument is an int and
// floats otherwise.
func arange(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		first  starlark.Value
		second starlark.Value = starlark.None
		third  starlark.Value = starlark.MakeInt(1)
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &first, "stop?", &second, "step?", &third); err != nil {
		return nil, err
	}

	start, stop := starlark.Value(starlark.MakeInt(0)), first
	if second != starlark.None {
		start, stop = first, second
	}

	if allInts(start, stop, third) {
		return intRange(b.Name(), start, stop, third)
	}

	lo, ok := starlark.AsFloat(start)
	if !ok {
		return nil, fmt.Errorf("%s: start: got %s, want number", b.Name(), start.Type())
	}
	hi, ok := starlark.AsFloat(stop)
	if !ok {
		return nil, fmt.Errorf("%s: stop: got %s, want number", b.Name(), stop.Type())
	}
	step, ok := starlark.AsFloat(third)
	if !ok {
		return nil, fmt.Errorf("%s: step: got %s, want number", b.Name(), third.Type())
	}
	if step == 0 {
		return nil, fmt.Errorf("%s: step must not be zero", b.Name())
	}

	n := math.Ceil((hi - lo) / step)
	if n <= 0 {
		return starlark.NewList(nil), nil
	}
	if n > maxGenerated {
		return nil, fmt.Errorf("%s: %v elements exceeds limit %d", b.Name(), n, maxGenerated)
	}
	values := make([]starlark.Value, int(n))
	for i := range values {
		values[i] = starlark.Float(lo + float64(i)*step)
	}
	return starlark.NewList(values), nil
}

func allInts(values ...starlark.Value) bool {
	for _, v := range values {
		if _, ok := v.(starlark.Int); !ok {
			return false
		}
	}
	return true
}

func intRange(name string, startV, stopV, stepV starlark.Value) (starlark.Value, error) {
	var start, stop, step int64
	if err := starlark.AsInt(startV, &start); err != nil {
		return nil, fmt.Errorf("%s: start: %w", name, err)
	}
	if err := starlark.AsInt(stopV, &stop); err != nil {
		return nil, fmt.Errorf("%s: stop: %w", name, err)
	}
	if err := starlark.AsInt(stepV, &step); err != nil {
		return nil, fmt.Errorf("%s: step: %w", name, err)
	}
	if step == 0 {
		return nil, fmt.Errorf("%s: step must not be zero", name)
	}

	var values []starlark.Value
	for v := start; (step > 0 && v < stop) || (step < 0 && v > stop); v += step {
		if len(values) >= maxGenerated {
			return nil, fmt.Errorf("%s: result exceeds limit %d", name, maxGenerated)
		}
		values = append(values, starlark.MakeInt64(v))
	}
	return starlark.NewList(values), nil
}
