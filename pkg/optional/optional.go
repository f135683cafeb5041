package optional

func Pointer[T any](v T) *T {
	return &v
}

// Value returns *p, or def when p is nil.
func Value[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
