package utils

// ToPointer returns a pointer to v.
func ToPointer[T any](v T) *T {
	return &v
}

// Deref returns the pointed value or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
