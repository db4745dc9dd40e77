package lexicon

import (
	"slices"
	"sort"

	"paiwantalk/internal/fuzzy"
)

// Labels reported by Resolve in all-sources mode.
const (
	LabelAll      = "all"
	LabelAllExact = "all(exact)"
	LabelAllFuzzy = "all(fuzzy)"
)

// Options tunes fuzzy matching.
type Options struct {
	// Threshold is the minimum similarity (0-100) a fuzzy candidate needs.
	Threshold int
	// MaxLenGap rejects candidates whose normalized rune length differs from
	// the query's by more than this many runes.
	MaxLenGap int
	// MaxCandidates caps the sorted candidate list before band filtering.
	MaxCandidates int
}

// DefaultOptions returns threshold 85, length gap 3, candidate cap 8.
func DefaultOptions() Options {
	return Options{Threshold: 85, MaxLenGap: 3, MaxCandidates: 8}
}

// Scorer returns the similarity of two normalized forms on a 0-100 scale.
type Scorer func(query, candidate string) int

// Option customizes a Resolver.
type Option func(*Resolver)

// WithScorer replaces the fuzzy similarity metric.
func WithScorer(s Scorer) Option {
	return func(r *Resolver) { r.score = s }
}

// Resolver looks tokens up across a Store. It holds no mutable state.
type Resolver struct {
	store *Store
	opts  Options
	score Scorer
	// sources by descending weight, configuration order on ties
	ranked []*Source
}

// NewResolver builds a resolver over st. Non-positive option values fall back to defaults.
func NewResolver(st *Store, opts Options, extra ...Option) *Resolver {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.MaxLenGap < 0 {
		opts.MaxLenGap = def.MaxLenGap
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = def.MaxCandidates
	}
	r := &Resolver{
		store:  st,
		opts:   opts,
		score:  fuzzy.PartialRatio,
		ranked: slices.Clone(st.sources),
	}
	sort.SliceStable(r.ranked, func(i, j int) bool {
		return r.ranked[i].weight > r.ranked[j].weight
	})
	for _, o := range extra {
		o(r)
	}
	return r
}

// Resolve returns the label of the scope that answered and the ranked glosses.
// No match is an empty result, not an error; an unconfigured selector returns
// ErrUnknownSource.
func (r *Resolver) Resolve(text, selector string) (string, []string, error) {
	if selector != SelectorAll {
		src, err := r.store.Source(selector)
		if err != nil {
			return "", nil, err
		}
		return src.key, r.fromSource(src, text), nil
	}
	return r.resolveAll(text)
}

func (r *Resolver) resolveAll(text string) (string, []string, error) {
	if text == "" {
		return LabelAll, nil, nil
	}

	var merged []string
	for _, src := range r.ranked {
		if glosses, ok := src.exact(text); ok {
			merged = appendUnique(merged, glosses...)
		}
	}
	if len(merged) > 0 {
		return LabelAllExact, merged, nil
	}

	for _, src := range r.ranked {
		merged = appendUnique(merged, r.fuzzy(src, text)...)
	}
	if len(merged) > 0 {
		return LabelAllFuzzy, merged, nil
	}
	return LabelAll, nil, nil
}

// fromSource is the single-source lookup: exact first, fuzzy only on a miss.
func (r *Resolver) fromSource(src *Source, text string) []string {
	if text == "" {
		return nil
	}
	if glosses, ok := src.exact(text); ok {
		return slices.Clone(glosses)
	}
	return r.fuzzy(src, text)
}

type candidate struct {
	score int
	entry int
}

func (r *Resolver) fuzzy(src *Source, text string) []string {
	query := Normalize(text)
	if query == "" {
		return nil
	}
	qlen := runeLen(query)

	var cands []candidate
	for i, norm := range src.normals {
		gap := runeLen(norm) - qlen
		if gap < 0 {
			gap = -gap
		}
		if gap > r.opts.MaxLenGap {
			continue
		}
		if s := r.score(query, norm); s >= r.opts.Threshold {
			cands = append(cands, candidate{score: s, entry: i})
		}
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	// The cap applies before band filtering, so a tie wider than the cap is truncated.
	if len(cands) > r.opts.MaxCandidates {
		cands = cands[:r.opts.MaxCandidates]
	}

	best := cands[0].score
	var merged []string
	for _, c := range cands {
		if c.score < best {
			break
		}
		merged = appendUnique(merged, src.entries[c.entry].Glosses...)
	}
	return merged
}
