package lexicon

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrUnknownSource is returned when a selector names a source that was never configured.
	ErrUnknownSource = errors.New("unknown lexicon source")
	// ErrDuplicateSource is returned when two sources share a key.
	ErrDuplicateSource = errors.New("duplicate lexicon source")
)

// SelectorAll selects every configured source.
const SelectorAll = "all"

// Store holds the configured sources in configuration order. It is immutable
// after construction and safe for concurrent use.
type Store struct {
	sources []*Source
	byKey   map[string]*Source
}

// NewStore assembles a store; configuration order is the argument order.
func NewStore(sources ...*Source) (*Store, error) {
	st := &Store{byKey: make(map[string]*Source, len(sources))}
	for _, src := range sources {
		if src.key == SelectorAll {
			return nil, fmt.Errorf("%w: %q is reserved", ErrDuplicateSource, SelectorAll)
		}
		if _, dup := st.byKey[src.key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, src.key)
		}
		st.byKey[src.key] = src
		st.sources = append(st.sources, src)
	}
	return st, nil
}

// Load reads every source in the manifest. Relative paths resolve against dataDir.
func Load(dataDir string, m Manifest) (*Store, error) {
	sources := make([]*Source, 0, len(m.Sources))
	for _, def := range m.Sources {
		path := def.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, path)
		}
		src, err := LoadSource(def.Key, def.Weight, path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return NewStore(sources...)
}

// Source returns the source with the given key.
func (st *Store) Source(key string) (*Source, error) {
	src, ok := st.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, key)
	}
	return src, nil
}

// Sources returns the sources in configuration order.
func (st *Store) Sources() []*Source {
	return st.sources
}

// Keys returns the source keys in configuration order.
func (st *Store) Keys() []string {
	keys := make([]string, len(st.sources))
	for i, src := range st.sources {
		keys[i] = src.key
	}
	return keys
}

// Weights maps each source key to its priority weight.
func (st *Store) Weights() map[string]float64 {
	w := make(map[string]float64, len(st.sources))
	for _, src := range st.sources {
		w[src.key] = src.weight
	}
	return w
}
