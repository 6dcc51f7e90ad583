package helper

import (
	"fmt"
)

// GetTypedValueOf safely asserts the result of a getter function to the expected type T.
// Returns an error if type assertion fails.
func GetTypedValueOf[T any](getFn func() (any, error)) (T, error) {
	var zero T

	res, err := getFn()
	if err != nil {
		return zero, fmt.Errorf("failed to get value: %w", err)
	}

	val, ok := TryCast[T](res)
	if !ok {
		return zero, fmt.Errorf("unexpected type: %T", res)
	}

	return val, nil
}

// TryCast asserts v to T. A nil v yields the zero T, so values erased from
// interface or pointer types round-trip.
func TryCast[T any](v any) (res T, ok bool) {
	if v == nil {
		return res, true
	}
	res, ok = v.(T)
	return
}

// Cast is the panic-on-failure variant of TryCast.
// Use it where the erased value is known to carry T by construction.
func Cast[T any](v any) T {
	res, ok := TryCast[T](v)
	if !ok {
		var zero T
		panic(fmt.Errorf("unexpected type: %T, want %T", v, zero))
	}
	return res
}
