package engine

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

// Counts returns the number of entities for every registered label. Counts
// are fetched concurrently and cached; Create and Delete invalidate the
// entry for their label.
func (e *Engine) Counts(ctx context.Context) (_ map[string]int, err error) {
	ctx, end := e.begin(ctx, "counts", "_all")
	defer end(&err)

	labels := e.registry.KnownLabels()
	out := make(map[string]int, len(labels))
	results := make([]int, len(labels))
	fetch := make([]bool, len(labels))

	for i, label := range labels {
		if n, ok := e.cachedCount(label); ok {
			out[label] = n
			continue
		}
		fetch[i] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.countsLimit)
	for i, label := range labels {
		if !fetch[i] {
			continue
		}
		g.Go(func() error {
			n, err := e.store.CountByLabel(gctx, label)
			if err != nil {
				return fmt.Errorf("count %s: %w", label, err)
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, label := range labels {
		if !fetch[i] {
			continue
		}
		out[label] = results[i]
		if e.counts != nil {
			e.counts.Set(label, results[i], cache.DefaultExpiration)
		}
	}
	return out, nil
}

func (e *Engine) cachedCount(label string) (int, bool) {
	if e.counts == nil {
		return 0, false
	}
	v, ok := e.counts.Get(label)
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

func (e *Engine) invalidateCount(label string) {
	if e.counts != nil {
		e.counts.Delete(label)
	}
}
