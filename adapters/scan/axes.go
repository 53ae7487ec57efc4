package scan

import (
	"sort"
	"strings"

	"clusterkit/domain/core"

	"gonum.org/v1/gonum/floats"
)

// GridAxis is one named axis of a grid with its candidate values.
type GridAxis struct {
	Name   string
	Values []complex128
}

// Range describes Count evenly spaced real values from Start to Stop inclusive.
type Range struct {
	Start float64
	Stop  float64
	Count int
}

// Values returns the linearly spaced values of the range. A single-point
// range yields Start.
func (r Range) Values() []float64 {
	switch {
	case r.Count < 1:
		return nil
	case r.Count == 1:
		return []float64{r.Start}
	}
	return floats.Span(make([]float64, r.Count), r.Start, r.Stop)
}

// cartesian enumerates the product of the axes row-major: the last axis
// varies fastest.
func cartesian(axes [][]complex128) [][]complex128 {
	if len(axes) == 0 {
		return nil
	}
	total := 1
	for _, values := range axes {
		total *= len(values)
	}
	if total == 0 {
		return nil
	}

	points := make([][]complex128, total)
	idx := make([]int, len(axes))
	for n := 0; n < total; n++ {
		p := make([]complex128, len(axes))
		for k, values := range axes {
			p[k] = values[idx[k]]
		}
		points[n] = p

		for k := len(axes) - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < len(axes[k]) {
				break
			}
			idx[k] = 0
		}
	}
	return points
}

// sortedGridAxes turns a map of axes into GridAxis values ordered by name.
func sortedGridAxes(axes map[string][]complex128) []GridAxis {
	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]GridAxis, len(names))
	for i, name := range names {
		out[i] = GridAxis{Name: name, Values: axes[name]}
	}
	return out
}

// mergeEquidist splits axes into real and imaginary parts using prefix and
// combines both parts of the same coefficient into one complex axis. The
// returned axes are ordered by canonical name. The real part is the outer
// loop of a merged axis.
func mergeEquidist(axes map[string]Range, prefix string) ([]GridAxis, error) {
	re := make(map[string]Range)
	im := make(map[string]Range)

	for name, r := range axes {
		if name == "" {
			return nil, core.NewConfigurationError("axis name cannot be empty")
		}
		if r.Count < 1 {
			return nil, core.NewConfigurationError("axis %q: count must be at least 1, got %d", name, r.Count)
		}
		if prefix != "" && strings.HasPrefix(name, prefix) {
			canonical := strings.TrimPrefix(name, prefix)
			if canonical == "" {
				return nil, core.NewConfigurationError("axis %q is only the imaginary prefix", name)
			}
			im[canonical] = r
			continue
		}
		re[name] = r
	}

	// xxxxxxa strips to xxxa, which is itself the imaginary part of a: there is
	// no unambiguous coefficient to attach it to.
	for canonical := range im {
		if _, ok := im[strings.TrimPrefix(canonical, prefix)]; ok && strings.HasPrefix(canonical, prefix) {
			return nil, core.NewConfigurationError("axis %q collides with imaginary axis %q after stripping prefix %q",
				prefix+canonical, canonical, prefix)
		}
	}

	seen := make(map[string]bool, len(re)+len(im))
	names := make([]string, 0, len(re)+len(im))
	for name := range re {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range im {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]GridAxis, len(names))
	for i, name := range names {
		reRange, hasRe := re[name]
		imRange, hasIm := im[name]

		var values []complex128
		switch {
		case hasRe && hasIm:
			for _, x := range reRange.Values() {
				for _, y := range imRange.Values() {
					values = append(values, complex(x, y))
				}
			}
		case hasRe:
			for _, x := range reRange.Values() {
				values = append(values, complex(x, 0))
			}
		default:
			for _, y := range imRange.Values() {
				values = append(values, complex(0, y))
			}
		}
		out[i] = GridAxis{Name: name, Values: values}
	}
	return out, nil
}
