package memory

// clonePtr copies the value behind p so callers cannot mutate stored records.
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
