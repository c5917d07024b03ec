package analysis

import (
	"cmp"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
)

// DataPoint is an immutable two-dimensional sample. Points order by Y, then X.
type DataPoint[T Number] struct {
	x T
	y T
}

// NewDataPoint validates both coordinates and normalizes negative zero.
func NewDataPoint[T Number](x, y T) (DataPoint[T], error) {
	if !isFinite(float64(x)) {
		return DataPoint[T]{}, apperrors.NewInvalidValueError("x", float64(x))
	}
	if !isFinite(float64(y)) {
		return DataPoint[T]{}, apperrors.NewInvalidValueError("y", float64(y))
	}

	// -0.0 == 0 holds, so this replaces it with +0.0
	if x == 0 {
		x = 0
	}
	if y == 0 {
		y = 0
	}

	return DataPoint[T]{x: x, y: y}, nil
}

// PointsFromPairs zips xs and ys into points. Both slices must have the same length.
func PointsFromPairs[T Number](xs, ys []T) ([]DataPoint[T], error) {
	if len(xs) != len(ys) {
		return nil, apperrors.NewLengthMismatchError(len(xs), len(ys))
	}
	points := make([]DataPoint[T], 0, len(xs))
	for i := range xs {
		p, err := NewDataPoint(xs[i], ys[i])
		if err != nil {
			return nil, apperrors.WrapError(err, "point %d", i)
		}
		points = append(points, p)
	}
	return points, nil
}

func (p DataPoint[T]) X() T { return p.x }

func (p DataPoint[T]) Y() T { return p.y }

// Compare orders by Y first and breaks ties by X.
func (p DataPoint[T]) Compare(o DataPoint[T]) int {
	if c := cmp.Compare(p.y, o.y); c != 0 {
		return c
	}
	return cmp.Compare(p.x, o.x)
}

func (p DataPoint[T]) Less(o DataPoint[T]) bool {
	return p.Compare(o) < 0
}

// Ys projects points onto their Y coordinate for univariate analysis.
func Ys[T Number](points []DataPoint[T]) []T {
	ys := make([]T, len(points))
	for i, p := range points {
		ys[i] = p.y
	}
	return ys
}
