package gmail

import (
	"context"
	"strings"
)

// Gmail API limits for users.messages.list and users.messages.batchDelete.
const (
	MaxPageSize  = 500
	MaxBatchSize = 500
)

// MessageID is the opaque handle returned by a list call.
type MessageID string

// Query is a Gmail search string, already formed (e.g. `from:news@example.com`).
type Query struct {
	Raw string
}

// FromSender builds the sender query used for both estimate and search.
func FromSender(sender string) Query {
	return Query{Raw: "from:" + strings.TrimSpace(sender)}
}

// ListPage is one page of a paginated list call.
type ListPage struct {
	IDs                []MessageID
	NextPageToken      string
	ResultSizeEstimate int64
}

// Client is the narrow Gmail surface required by mailpurge.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	BatchDelete(ctx context.Context, ids []MessageID) error
}
