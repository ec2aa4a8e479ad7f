package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claimdesk/claimdesk/pkg/types"
)

// RunFile parses the claim at path and runs it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*types.Result, error) {
	c, err := types.ParseClaimFile(path)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, c)
}

// BatchItem is the outcome of one claim in a batch.
type BatchItem struct {
	Index       int
	ClaimNumber string
	Result      *types.Result
	Err         error
}

// RunBatch runs claims with at most parallel runs in flight. Items come back
// in input order; a failed claim does not stop the others.
func (p *Pipeline) RunBatch(ctx context.Context, claims []*types.ClaimInfo, parallel int) []BatchItem {
	if parallel <= 0 {
		parallel = 1
	}
	items := make([]BatchItem, len(claims))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, c := range claims {
		items[i].Index = i
		if c != nil {
			items[i].ClaimNumber = c.ClaimNumber
		}
		g.Go(func() error {
			res, err := p.Run(ctx, c)
			items[i].Result, items[i].Err = res, err
			if err != nil {
				p.log.Warn("batch claim failed",
					zap.Int("index", i),
					zap.String("claim", items[i].ClaimNumber),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.log.Info("batch complete", zap.Int("claims", len(claims)), zap.Int("parallel", parallel))
	return items
}
