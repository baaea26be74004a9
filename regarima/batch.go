package regarima

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one estimation of a batch.
type BatchResult struct {
	ID         uuid.UUID
	Index      int
	Estimation *Estimation
	Err        error
}

// EstimateBatch estimates independent models concurrently, at most limit
// at a time (no limit when limit <= 0). A failed estimation is reported in
// its result and does not stop the others; the returned error is only set
// when ctx ends the batch.
func (p *Processor) EstimateBatch(ctx context.Context, models []*Model, limit int) ([]BatchResult, error) {
	out := make([]BatchResult, len(models))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, m := range models {
		i, m := i, m
		id := uuid.New()
		g.Go(func() error {
			log := p.log.With(zap.String("run", id.String()), zap.Int("series", i))
			sub := &Processor{opts: p.opts, log: log}
			est, err := sub.Estimate(gctx, m)
			out[i] = BatchResult{ID: id, Index: i, Estimation: est, Err: err}
			if err != nil {
				log.Warn("estimation failed", zap.Error(err))
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
