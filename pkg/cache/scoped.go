package cache

// ScopedKeyer wraps a Keyer with a prefix, giving separate cache namespaces
// to runs that must not share pages (e.g. different studies sharing one
// cache directory).
//
// Example usage:
//
//	studyKeyer := NewScopedKeyer(NewDefaultKeyer(), "study:rest01:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// PageKey generates a prefixed key for a rendered contrast page.
func (k *ScopedKeyer) PageKey(modelHash, contrast string, opts PageKeyOpts) string {
	return k.prefix + k.inner.PageKey(modelHash, contrast, opts)
}
