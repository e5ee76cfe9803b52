// Package complexity guesses the asymptotic growth of a function from the
// fuel it spent on inputs of different sizes.
package complexity

import (
	"fmt"
	"math"
	"slices"

	"github.com/programme-lv/fnjudge/pkg/value"
)

// Class is an asymptotic growth class, ordered from best to worst.
type Class int

const (
	Constant Class = iota
	Log
	Sqrt
	Linear
	LogLinear
	Quadratic
	Exponential
)

var classNames = [...]string{
	Constant:    "constant",
	Log:         "log",
	Sqrt:        "sqrt",
	Linear:      "linear",
	LogLinear:   "log_linear",
	Quadratic:   "quadratic",
	Exponential: "exponential",
}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return fmt.Sprintf("class(%d)", int(c))
	}
	return classNames[c]
}

func (c Class) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(classNames) {
		return nil, fmt.Errorf("unknown complexity class %d", int(c))
	}
	return []byte(classNames[c]), nil
}

func (c *Class) UnmarshalText(b []byte) error {
	for i, name := range classNames {
		if name == string(b) {
			*c = Class(i)
			return nil
		}
	}
	return fmt.Errorf("unknown complexity class %q", b)
}

// growth maps an input size to the cost a function of the class would have.
var growth = [...]func(x float64) float64{
	Constant:    func(x float64) float64 { return 1 },
	Log:         func(x float64) float64 { return math.Log2(x + 1) },
	Sqrt:        math.Sqrt,
	Linear:      func(x float64) float64 { return x },
	LogLinear:   func(x float64) float64 { return x * math.Log2(x+1) },
	Quadratic:   func(x float64) float64 { return x * x },
	Exponential: func(x float64) float64 { return math.Pow(2, x) },
}

// Sample is one call and the fuel it consumed.
type Sample struct {
	Call value.Call
	Fuel uint64
}

// Estimate classifies every argument position separately and returns the
// worst class found. Positions whose size never changes carry no growth
// information and are skipped; with none left the result is Constant.
func Estimate(samples []Sample) Class {
	positions := 0
	for _, s := range samples {
		positions = max(positions, len(s.Call.Args))
	}

	worst := Constant
	for pos := 0; pos < positions; pos++ {
		var sizes, series []float64
		for _, s := range samples {
			if pos >= len(s.Call.Args) {
				continue
			}
			size := value.ScalingFactor(s.Call.Args[pos])
			sizes = append(sizes, size)
			series = append(series, size/float64(max(s.Fuel, 1)))
		}
		if len(series) < 2 || constant(sizes) {
			continue
		}
		worst = max(worst, Fit(series))
	}
	return worst
}

// Fit returns the class whose reference curve is closest to series by
// mean absolute difference after sorting and min-max normalising both.
// Ties go to the better class.
func Fit(series []float64) Class {
	if len(series) == 0 {
		return Constant
	}
	observed := normalize(series)
	best, bestDiff := Constant, math.Inf(1)
	for c := Constant; c <= Exponential; c++ {
		diff := meanAbsDiff(observed, reference(c, len(series)))
		if diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best
}

// reference builds the size/cost series a function of class c produces on
// sizes 1..n.
func reference(c Class, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64(i + 1)
		cost := growth[c](x)
		if math.IsInf(cost, 1) {
			out[i] = 0
			continue
		}
		out[i] = x / cost
	}
	return normalize(out)
}

func normalize(in []float64) []float64 {
	out := slices.Clone(in)
	slices.Sort(out)
	lo, hi := out[0], out[len(out)-1]
	span := hi - lo
	for i := range out {
		if span == 0 {
			out[i] = 0
		} else {
			out[i] = (out[i] - lo) / span
		}
	}
	return out
}

func meanAbsDiff(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a))
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
