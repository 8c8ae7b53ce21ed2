package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// Batch item kinds.
const (
	KindLimit = "limit"
	KindRFQ   = "rfq"
)

// BatchItem is one entry of a batch input file. Exactly the params matching
// Kind are used.
type BatchItem struct {
	Kind  string                   `json:"kind"`
	Limit *domain.LimitOrderParams `json:"limit,omitempty"`
	RFQ   *domain.RFQOrderParams   `json:"rfq,omitempty"`
}

// BatchResult is one NDJSON output line.
type BatchResult struct {
	RunID string              `json:"runId"`
	Index int                 `json:"index"`
	Kind  string              `json:"kind"`
	Order *domain.SignedOrder `json:"order,omitempty"`
	Error string              `json:"error,omitempty"`
}

// BatchSigner is the part of the order service a batch needs.
type BatchSigner interface {
	SignLimitOrder(ctx context.Context, p domain.LimitOrderParams) (domain.SignedOrder, error)
	SignRFQOrder(ctx context.Context, p domain.RFQOrderParams) (domain.SignedOrder, error)
}

// ParseBatch decodes a JSON array of batch items.
func ParseBatch(data []byte) ([]BatchItem, error) {
	var items []BatchItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("batch: decode input: %w", err)
	}
	return items, nil
}

// RunBatch signs items with at most concurrency workers. Per-item failures
// are recorded in the result; only cancellation of ctx aborts the batch.
// Results keep input order.
func RunBatch(ctx context.Context, signer BatchSigner, items []BatchItem, concurrency int) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = signItem(gctx, signer, i, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	return results, nil
}

func signItem(ctx context.Context, signer BatchSigner, i int, item BatchItem) BatchResult {
	res := BatchResult{Index: i, Kind: item.Kind}

	var (
		signed domain.SignedOrder
		err    error
	)
	switch {
	case item.Kind == KindLimit && item.Limit != nil:
		signed, err = signer.SignLimitOrder(ctx, *item.Limit)
	case item.Kind == KindRFQ && item.RFQ != nil:
		signed, err = signer.SignRFQOrder(ctx, *item.RFQ)
	default:
		err = fmt.Errorf("%w: item %d has kind %q without matching params", domain.ErrInvalidOrder, i, item.Kind)
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Order = &signed
	return res
}

// WriteNDJSON writes one JSON line per result, stamped with runID.
func WriteNDJSON(w io.Writer, runID string, results []BatchResult) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		r.RunID = runID
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("batch: encode result %d: %w", r.Index, err)
		}
	}
	return nil
}

// BatchKey is the object key a batch output is uploaded under.
func BatchKey(started time.Time) string {
	return "batches/" + started.UTC().Format("20060102T150405Z") + ".ndjson"
}
