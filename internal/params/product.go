package params

import "go.starlark.net/starlark"

// Len returns the number of combinations in the Cartesian product. With no
// parameters there is exactly one, empty, combination.
func (s *Set) Len() int {
	n := 1
	for _, axis := range s.axes {
		n *= len(axis)
	}
	return n
}

// Product calls fn for every combination in lexicographic order: the first
// parameter varies slowest and the last varies fastest. combo is reused
// between calls; fn must copy it to keep it. Iteration stops at the first
// error fn returns.
func (s *Set) Product(fn func(index int, combo []starlark.Value) error) error {
	for _, axis := range s.axes {
		if len(axis) == 0 {
			return nil
		}
	}

	pos := make([]int, len(s.axes))
	combo := make([]starlark.Value, len(s.axes))
	for i, axis := range s.axes {
		combo[i] = axis[0]
	}

	for index := 0; ; index++ {
		if err := fn(index, combo); err != nil {
			return err
		}

		// advance the odometer from the last axis
		k := len(pos) - 1
		for ; k >= 0; k-- {
			pos[k]++
			if pos[k] < len(s.axes[k]) {
				combo[k] = s.axes[k][pos[k]]
				break
			}
			pos[k] = 0
			combo[k] = s.axes[k][0]
		}
		if k < 0 {
			return nil
		}
	}
}
