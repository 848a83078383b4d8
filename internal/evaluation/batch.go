package evaluation

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one request of a batch.
type BatchItem struct {
	Report Report `json:"report"`
	Err    error  `json:"-"`

	// Error mirrors Err for JSON output.
	Error string `json:"error,omitempty"`
}

// EvaluateBatch evaluates reqs with at most the configured number of
// workers running at once. Results are in request order. One failing
// request does not stop the others; if ctx is cancelled, requests that have
// not started fail with the context error.
func (s *Service) EvaluateBatch(ctx context.Context, reqs []Request) []BatchItem {
	items := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i] = batchItem(Report{}, err)
				return nil
			}
			items[i] = batchItem(s.Evaluate(ctx, req))
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func batchItem(rep Report, err error) BatchItem {
	it := BatchItem{Report: rep, Err: err}
	if err != nil {
		it.Error = err.Error()
	}
	return it
}
