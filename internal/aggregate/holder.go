package aggregate

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/model"
)

// Loader builds a fresh index.
type Loader func(ctx context.Context) (*Index, error)

// Holder publishes the current index. Readers always see a complete index;
// Swap and Reload replace it atomically.
type Holder struct {
	p atomic.Pointer[Index]
}

// NewHolder returns a holder serving idx, or an empty index when idx is nil.
func NewHolder(idx *Index) *Holder {
	h := &Holder{}
	if idx == nil {
		idx = Empty()
	}
	h.p.Store(idx)
	return h
}

// Load returns the current index. It is never nil.
func (h *Holder) Load() *Index {
	return h.p.Load()
}

// Swap installs idx and returns the previous index.
func (h *Holder) Swap(idx *Index) *Index {
	if idx == nil {
		idx = Empty()
	}
	return h.p.Swap(idx)
}

// Reload builds a new index with load and swaps it in. On failure the
// current index keeps serving.
func (h *Holder) Reload(ctx context.Context, load Loader) error {
	idx, err := load(ctx)
	if err != nil {
		return eris.Wrap(err, "aggregate: reload")
	}
	old := h.Swap(idx)
	zap.L().Info("aggregation index swapped",
		zap.Int("companies", idx.Len()),
		zap.Int("previous_companies", old.Len()),
	)
	return nil
}

// AggregateSource is the store read used for fast restarts.
type AggregateSource interface {
	LoadAggregates(ctx context.Context) ([]model.CompanyAggregate, error)
}

// CorpusSource is the store read used for full rebuilds.
type CorpusSource interface {
	LoadCorpus(ctx context.Context) (*model.Corpus, error)
}

// FromStoreAggregates returns a Loader over the aggregates cached in the
// store.
func FromStoreAggregates(src AggregateSource) Loader {
	return func(ctx context.Context) (*Index, error) {
		rows, err := src.LoadAggregates(ctx)
		if err != nil {
			return nil, err
		}
		return FromAggregates(rows)
	}
}

// FromStoreCorpus returns a Loader that recomputes every aggregate from the
// persisted runs.
func FromStoreCorpus(src CorpusSource) Loader {
	return func(ctx context.Context) (*Index, error) {
		corpus, err := src.LoadCorpus(ctx)
		if err != nil {
			return nil, err
		}
		return Build(corpus)
	}
}
