package core

import (
	"context"

	"github.com/google/uuid"
)

// Registry is the durable campaign store. Create must enforce keyword
// uniqueness atomically in the backend (a single constrained insert).
type Registry interface {
	Create(ctx context.Context, in NewCampaign) (*Campaign, error)
	// FindByKeyword normalizes rawText and returns (nil, nil) on no match.
	FindByKeyword(ctx context.Context, rawText string) (*Campaign, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Campaign, error)
}

// MessageLog is the append-only record of dispatch attempts.
type MessageLog interface {
	Record(ctx context.Context, in NewLogEntry) (*MessageLogEntry, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]MessageLogEntry, error)
	StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (CampaignStats, error)
}

// Carrier sends one SMS through the external gateway.
type Carrier interface {
	Send(ctx context.Context, to, from, body string) (providerMessageID string, err error)
}

// CampaignFinder and Recorder are the parts of the stores the dispatcher uses.
type CampaignFinder interface {
	FindByKeyword(ctx context.Context, rawText string) (*Campaign, error)
}

type Recorder interface {
	Record(ctx context.Context, in NewLogEntry) (*MessageLogEntry, error)
}
