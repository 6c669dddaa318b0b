package stdx

// Must panics if err is non-nil. It is intended for package-level
// initialization where a failure is a programming error.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v or panics if err is non-nil.
func Must1[T any](v T, err error) T {
	Must(err)
	return v
}

// Zero returns the zero value for T.
func Zero[T any]() T {
	var zero T
	return zero
}
