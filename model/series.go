package model

import (
	"golang.org/x/exp/constraints"
)

// Series is a time series of values
type Series[T constraints.Ordered] []T

// Values returns the values of the series
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the last value of the series given a past index position
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns the last values of the series given a size
func (s Series[T]) LastValues(size int) []T {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Crossover returns true if the last value of the series moved above ref
func (s Series[T]) Crossover(ref T) bool {
	if len(s) < 2 {
		return false
	}
	return s.Last(0) > ref && s.Last(1) <= ref
}

// Crossunder returns true if the last value of the series moved below ref
func (s Series[T]) Crossunder(ref T) bool {
	if len(s) < 2 {
		return false
	}
	return s.Last(0) < ref && s.Last(1) >= ref
}
