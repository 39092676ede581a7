package cache

// ScopedKeyer wraps a Keyer with a prefix so that separate tenants sharing
// one backend never see each other's entries.
//
//	apiKeyer := NewScopedKeyer(NewDefaultKeyer(), "api:")
//	cliKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every key of inner.
// A nil inner uses DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LayoutKey implements Keyer.
func (k *ScopedKeyer) LayoutKey(profileHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(profileHash, opts)
}

// ArtifactKey implements Keyer.
func (k *ScopedKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(layoutHash, opts)
}
