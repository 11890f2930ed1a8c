package store

import (
	"context"
	"errors"

	"github.com/seantiz/estimator/internal/model"
)

// ErrInvalidTransition is returned when a request status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound is returned when a request is not found.
var ErrNotFound = errors.New("request not found")

// RequestStats holds aggregate estimation statistics.
type RequestStats struct {
	Total             int            `json:"total"`
	CountByStatus     map[string]int `json:"count_by_status"`
	TotalEstimated    int            `json:"total_estimated"`
	TotalUnsuccessful int            `json:"total_unsuccessful"`
}

// RequestStore defines the persistence operations for estimation requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, limit, offset int) ([]*model.Request, int, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error
	UpdateRequest(ctx context.Context, r *model.Request) error
	GetRequestStats(ctx context.Context) (*RequestStats, error)
	Close() error
}

// DataStore persists and retrieves reusable intermediate data, addressed by
// substance and force field. Implementations must allow concurrent StoreData
// calls.
type DataStore interface {
	StoreData(ctx context.Context, substanceID string, d *model.StoredData) error
	// RetrieveData returns the stored data for the substance. An empty
	// forceFieldID matches data stored under any force field.
	RetrieveData(ctx context.Context, substanceID, forceFieldID string) ([]*model.StoredData, error)
}

// Store is a backend that persists both requests and reusable data.
type Store interface {
	RequestStore
	DataStore
}
