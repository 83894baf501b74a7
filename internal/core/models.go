package core

import (
	"time"

	"github.com/google/uuid"
)

// Campaign maps a normalized keyword to the reply sent back to subscribers.
type Campaign struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Keyword         string            `json:"keyword"`
	ResponseMessage string            `json:"response_message"`
	Type            string            `json:"type,omitempty"`
	TemplateData    map[string]string `json:"template_data,omitempty"`
	OwnerID         string            `json:"owner_id"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NewCampaign is the input to Registry.Create. Keyword is raw user input.
type NewCampaign struct {
	Name            string
	Keyword         string
	ResponseMessage string
	Type            string
	TemplateData    map[string]string
	OwnerID         string
}

type MessageStatus string

const (
	StatusSent   MessageStatus = "sent"
	StatusFailed MessageStatus = "failed"
)

func (s MessageStatus) Valid() bool {
	return s == StatusSent || s == StatusFailed
}

// MessageLogEntry is one dispatch attempt. Entries are never updated.
type MessageLogEntry struct {
	ID                uuid.UUID     `json:"id"`
	CampaignID        uuid.UUID     `json:"campaign_id"`
	FromNumber        string        `json:"from_number"`
	ToNumber          string        `json:"to_number"`
	Message           string        `json:"message"`
	Status            MessageStatus `json:"status"`
	ProviderMessageID *string       `json:"provider_message_id,omitempty"`
	Error             *string       `json:"error,omitempty"`
	SentAt            time.Time     `json:"sent_at"`
}

// NewLogEntry is the input to MessageLog.Record.
type NewLogEntry struct {
	CampaignID        uuid.UUID
	FromNumber        string
	ToNumber          string
	Message           string
	Status            MessageStatus
	ProviderMessageID string
	Error             string
}

type CampaignStats struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// InboundMessage is a received SMS as delivered by the carrier webhook.
type InboundMessage struct {
	Body              string
	From              string
	To                string
	ProviderMessageID string
}
