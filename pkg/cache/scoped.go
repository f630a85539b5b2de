package cache

// ScopedKeyer prefixes every key of an inner Keyer, isolating tenants or
// deployments that share one backend.
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner (the default keyer if nil) with prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) DocumentKey(graphHash string, opts DocumentKeyOpts) string {
	return k.prefix + k.inner.DocumentKey(graphHash, opts)
}

func (k *ScopedKeyer) ExtractKey(textHash string, opts ExtractKeyOpts) string {
	return k.prefix + k.inner.ExtractKey(textHash, opts)
}
