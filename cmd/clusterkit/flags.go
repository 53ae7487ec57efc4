package main

import (
	"strconv"
	"strings"

	"clusterkit/adapters/scan"
	"clusterkit/domain/core"
)

// parseGridAxis parses "name=v1,v2,..." where every value is a real or
// complex literal such as 1, -0.5 or 1+2i.
func parseGridAxis(s string) (scan.GridAxis, error) {
	name, list, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return scan.GridAxis{}, core.NewInputError("axis %q: expected name=v1,v2,...", s)
	}
	var values []complex128
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseComplex(part, 128)
		if err != nil {
			return scan.GridAxis{}, core.NewInputError("axis %s: bad value %q", name, part)
		}
		values = append(values, v)
	}
	return scan.GridAxis{Name: name, Values: values}, nil
}

// parseRange parses "name=start:stop:count".
func parseRange(s string) (string, scan.Range, error) {
	name, spec, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", scan.Range{}, core.NewInputError("range %q: expected name=start:stop:count", s)
	}
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return "", scan.Range{}, core.NewInputError("range %s: expected start:stop:count", name)
	}
	start, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	stop, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	count, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return "", scan.Range{}, core.NewInputError("range %s: bad number in %q", name, spec)
	}
	return name, scan.Range{Start: start, Stop: stop, Count: count}, nil
}

// scanFlags are the point generation flags shared by scan and stability.
type scanFlags struct {
	axes      []string
	ranges    []string
	model     string
	bins      int
	workers   int
	imagPrefix string
}

// configure applies the flags to s. Grid axes and ranges are exclusive.
func (f *scanFlags) configure(s *scan.Scanner) error {
	switch {
	case len(f.axes) > 0 && len(f.ranges) > 0:
		return core.NewConfigurationError("use either --axis or --range, not both")
	case len(f.axes) > 0:
		axes := make([]scan.GridAxis, 0, len(f.axes))
		for _, a := range f.axes {
			axis, err := parseGridAxis(a)
			if err != nil {
				return err
			}
			axes = append(axes, axis)
		}
		return s.SetSPointsGridAxes(axes)
	case len(f.ranges) > 0:
		ranges := make(map[string]scan.Range, len(f.ranges))
		for _, r := range f.ranges {
			name, rng, err := parseRange(r)
			if err != nil {
				return err
			}
			if _, dup := ranges[name]; dup {
				return core.NewConfigurationError("range %s given twice", name)
			}
			ranges[name] = rng
		}
		return s.SetSPointsEquidist(ranges)
	}
	return core.NewConfigurationError("no sample points: pass --axis or --range")
}
