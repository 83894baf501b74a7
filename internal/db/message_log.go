package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

// MessageLogStore is the Postgres message log. Rows are only ever inserted.
type MessageLogStore struct{ db *DB }

func NewMessageLogStore(db *DB) *MessageLogStore { return &MessageLogStore{db: db} }

var _ core.MessageLog = (*MessageLogStore)(nil)

const logColumns = `id, campaign_id, from_number, to_number, message, status, provider_message_id, error, sent_at`

func scanLogEntry(row pgx.Row) (*core.MessageLogEntry, error) {
	var e core.MessageLogEntry
	var status string
	if err := row.Scan(&e.ID, &e.CampaignID, &e.FromNumber, &e.ToNumber, &e.Message,
		&status, &e.ProviderMessageID, &e.Error, &e.SentAt); err != nil {
		return nil, err
	}
	e.Status = core.MessageStatus(status)
	return &e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *MessageLogStore) Record(ctx context.Context, in core.NewLogEntry) (*core.MessageLogEntry, error) {
	if !in.Status.Valid() {
		return nil, &core.StorageError{Op: "record message", Err: fmt.Errorf("invalid status %q", in.Status)}
	}
	e, err := scanLogEntry(s.db.Pool.QueryRow(ctx, `
		INSERT INTO message_logs(id, campaign_id, from_number, to_number, message, status, provider_message_id, error)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+logColumns,
		uuid.New(), in.CampaignID, in.FromNumber, in.ToNumber, in.Message, string(in.Status),
		nullable(in.ProviderMessageID), nullable(in.Error)))
	if err != nil {
		return nil, &core.StorageError{Op: "record message", Err: err}
	}
	return e, nil
}

// ListByCampaign returns entries newest first.
func (s *MessageLogStore) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]core.MessageLogEntry, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+logColumns+` FROM message_logs
		WHERE campaign_id=$1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, &core.StorageError{Op: "list messages", Err: err}
	}
	defer rows.Close()

	out := []core.MessageLogEntry{}
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, &core.StorageError{Op: "list messages", Err: err}
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list messages", Err: err}
	}
	return out, nil
}

func (s *MessageLogStore) StatsByCampaign(ctx context.Context, campaignID uuid.UUID) (core.CampaignStats, error) {
	var st core.CampaignStats
	err := s.db.Pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE status='sent'),
		       count(*) FILTER (WHERE status='failed'),
		       count(*)
		FROM message_logs WHERE campaign_id=$1
	`, campaignID).Scan(&st.Sent, &st.Failed, &st.Total)
	if err != nil {
		return core.CampaignStats{}, &core.StorageError{Op: "message stats", Err: err}
	}
	return st, nil
}
