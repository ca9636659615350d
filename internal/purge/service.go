// Package purge searches Gmail for a sender's messages and deletes them in
// quota-sized batches.
package purge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/daviddao/mailpurge/internal/gmail"
	"github.com/daviddao/mailpurge/internal/rate"
)

// Fixed pauses between remote calls.
const (
	SearchPageDelay  = 100 * time.Millisecond
	DeleteBatchDelay = time.Second
)

// SearchResult is the outcome of a paginated search. Err is the failure that
// stopped pagination early; IDs still holds everything gathered before it.
type SearchResult struct {
	IDs   []gmail.MessageID
	Pages int
	Err   error
}

// BatchResult describes one batch-delete call.
type BatchResult struct {
	Index   int // 1-based
	Size    int
	Deleted int
	Total   int // running deleted count after this batch
	Err     error
}

// DeleteResult summarizes a Delete run.
type DeleteResult struct {
	Requested int
	Deleted   int
	Batches   []BatchResult
}

// Failed returns the number of batches that errored.
func (r DeleteResult) Failed() int {
	n := 0
	for _, b := range r.Batches {
		if b.Err != nil {
			n++
		}
	}
	return n
}

// Shortfall is how many requested messages were not deleted.
func (r DeleteResult) Shortfall() int {
	return r.Requested - r.Deleted
}

// Service runs estimate, search and delete against a Client.
type Service struct {
	Client      gmail.Client
	Logger      *slog.Logger
	SearchPacer rate.Limiter
	DeletePacer rate.Limiter

	// Progress, when set, is called after every delete batch.
	Progress func(BatchResult)
}

// NewService constructs a Service with the production delays.
func NewService(client gmail.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:      client,
		Logger:      logger,
		SearchPacer: rate.NewFixed(SearchPageDelay),
		DeletePacer: rate.NewFixed(DeleteBatchDelay),
	}
}

// Estimate returns Gmail's approximate match count for q.
func (s *Service) Estimate(ctx context.Context, q gmail.Query) (int64, error) {
	page, err := s.Client.List(ctx, q, "", 1)
	if err != nil {
		return 0, fmt.Errorf("estimate %q: %w", q.Raw, err)
	}
	return page.ResultSizeEstimate, nil
}

// Search pages through q until maxResults ids are gathered (when maxResults > 0)
// or Gmail stops returning a continuation token. A failed page ends the search
// and the partial result is returned.
func (s *Service) Search(ctx context.Context, q gmail.Query, maxResults int) SearchResult {
	var (
		res   SearchResult
		token string
	)
	for {
		pageSize := gmail.MaxPageSize
		if maxResults > 0 {
			pageSize = min(pageSize, maxResults-len(res.IDs))
		}

		page, err := s.Client.List(ctx, q, token, pageSize)
		if err != nil {
			s.Logger.ErrorContext(ctx, "search failed",
				"query", q.Raw, "page", res.Pages+1, "found", len(res.IDs), "error", err)
			res.Err = fmt.Errorf("search page %d: %w", res.Pages+1, err)
			break
		}
		res.Pages++
		res.IDs = append(res.IDs, page.IDs...)
		token = page.NextPageToken

		if (maxResults > 0 && len(res.IDs) >= maxResults) || token == "" {
			break
		}
		if err := s.wait(ctx, s.SearchPacer); err != nil {
			res.Err = fmt.Errorf("search: %w", err)
			break
		}
	}

	if maxResults > 0 && len(res.IDs) > maxResults {
		res.IDs = res.IDs[:maxResults]
	}
	s.Logger.DebugContext(ctx, "search complete", "query", q.Raw, "pages", res.Pages, "found", len(res.IDs))
	return res
}

// Delete removes ids in consecutive batches of batchSize (clamped to
// gmail.MaxBatchSize). A failed batch is logged and skipped.
func (s *Service) Delete(ctx context.Context, ids []gmail.MessageID, batchSize int) DeleteResult {
	res := DeleteResult{Requested: len(ids)}
	if len(ids) == 0 {
		return res
	}
	if batchSize <= 0 || batchSize > gmail.MaxBatchSize {
		batchSize = gmail.MaxBatchSize
	}

	for i := 0; i < len(ids); i += batchSize {
		if ctx.Err() != nil {
			s.Logger.WarnContext(ctx, "delete interrupted", "deleted", res.Deleted, "remaining", len(ids)-i)
			break
		}
		j := min(i+batchSize, len(ids))
		batch := BatchResult{Index: i/batchSize + 1, Size: j - i}

		if err := s.Client.BatchDelete(ctx, ids[i:j]); err != nil {
			s.Logger.ErrorContext(ctx, "delete batch failed", "batch", batch.Index, "size", batch.Size, "error", err)
			batch.Err = err
		} else {
			batch.Deleted = batch.Size
			res.Deleted += batch.Size
		}
		batch.Total = res.Deleted
		res.Batches = append(res.Batches, batch)
		if s.Progress != nil {
			s.Progress(batch)
		}

		if err := s.wait(ctx, s.DeletePacer); err != nil {
			s.Logger.WarnContext(ctx, "delete pacing interrupted", "error", err)
		}
	}
	return res
}

func (s *Service) wait(ctx context.Context, l rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
