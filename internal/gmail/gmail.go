// Package gmail provides the Gmail API operations used by mailpurge.
//
// Callers depend on the small Client interface; GoogleClient adapts it to
// google.golang.org/api/gmail/v1 for the authenticated user ("me").
package gmail

import (
	"context"
	"fmt"

	gm "google.golang.org/api/gmail/v1"
)

const userID = "me"

// GoogleClient implements Client on top of a *gm.Service.
type GoogleClient struct {
	svc *gm.Service
}

// NewGoogleClient wraps an authenticated Gmail service.
func NewGoogleClient(svc *gm.Service) *GoogleClient {
	return &GoogleClient{svc: svc}
}

// List returns one page of message IDs matching q.
func (g *GoogleClient) List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error) {
	call := g.svc.Users.Messages.List(userID).
		Q(q.Raw).
		MaxResults(int64(clampPageSize(pageSize)))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return ListPage{}, fmt.Errorf("list messages %q: %w", q.Raw, err)
	}

	page := ListPage{
		NextPageToken:      resp.NextPageToken,
		ResultSizeEstimate: resp.ResultSizeEstimate,
	}
	if len(resp.Messages) > 0 {
		page.IDs = make([]MessageID, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			page.IDs = append(page.IDs, MessageID(m.Id))
		}
	}
	return page, nil
}

// BatchDelete permanently deletes up to MaxBatchSize messages in one call.
func (g *GoogleClient) BatchDelete(ctx context.Context, ids []MessageID) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxBatchSize {
		return fmt.Errorf("batch delete: %d ids exceeds limit of %d", len(ids), MaxBatchSize)
	}

	req := &gm.BatchDeleteMessagesRequest{Ids: toStrings(ids)}
	if err := g.svc.Users.Messages.BatchDelete(userID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch delete %d messages: %w", len(ids), err)
	}
	return nil
}

func clampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

func toStrings(ids []MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

var _ Client = (*GoogleClient)(nil)
