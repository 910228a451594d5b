package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// ErrNameRequired is returned when a result has no image name.
var ErrNameRequired = errors.New("image name is required")

// Gateway applies the persistence contract on top of a Store: upserts refresh
// created_at, the processed-name read never fails, and history is never nil.
type Gateway struct {
	store   Store
	logger  log.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewGateway creates a Gateway over store.
func NewGateway(store Store, logger log.Logger, metrics *Metrics) *Gateway {
	if logger == nil {
		logger = log.Nop()
	}
	return &Gateway{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Upsert writes r as a full replacement of any existing row with the same
// image name and returns the row as read back from the store. Fields left nil
// in r are stored as null. A failed read-back is logged and the written copy
// is returned, since the write itself succeeded.
func (g *Gateway) Upsert(ctx context.Context, r *Result) (*Result, error) {
	if r == nil || r.ImageName == "" {
		return nil, ErrNameRequired
	}

	cp := r.Clone()
	cp.CreatedAt = g.now().UTC()

	if err := g.store.Put(ctx, cp); err != nil {
		g.metrics.observeUpsert(err)
		return nil, fmt.Errorf("upsert %s: %w", r.ImageName, err)
	}
	g.metrics.observeUpsert(nil)

	stored, ok, err := g.store.Get(ctx, cp.ImageName)
	switch {
	case err != nil:
		g.logger.Warn(ctx, "failed to read back saved result", "image_name", cp.ImageName, "error", err)
		return cp, nil
	case !ok:
		g.logger.Warn(ctx, "saved result missing on read back", "image_name", cp.ImageName)
		return cp, nil
	}
	return stored, nil
}

// ProcessedNames returns the set of stored image names. A read failure is
// logged and yields an empty set so ingestion is never blocked.
func (g *Gateway) ProcessedNames(ctx context.Context) NameSet {
	names, err := g.store.Names(ctx)
	if err != nil {
		g.logger.Error(ctx, err, "failed to fetch processed image names, treating as empty")
		return NameSet{}
	}
	return NewNameSet(names...)
}

// History returns every stored result ordered by severity. It never returns
// nil; a read failure is logged and yields an empty slice.
func (g *Gateway) History(ctx context.Context) []*Result {
	results, err := g.store.List(ctx)
	if err != nil {
		g.logger.Error(ctx, err, "failed to fetch history")
		return []*Result{}
	}
	if results == nil {
		return []*Result{}
	}
	return results
}
