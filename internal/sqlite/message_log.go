package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

type MessageLogStore struct{ db *DB }

func NewMessageLogStore(db *DB) *MessageLogStore { return &MessageLogStore{db: db} }

var _ core.MessageLog = (*MessageLogStore)(nil)

const logColumns = `id, campaign_id, from_number, to_number, message, status, provider_message_id, error, sent_at`

func scanLogEntry(row rowScanner) (*core.MessageLogEntry, error) {
	var (
		e          core.MessageLogEntry
		status     string
		providerID sql.NullString
		errText    sql.NullString
		sentAt     string
	)
	if err := row.Scan(&e.ID, &e.CampaignID, &e.FromNumber, &e.ToNumber, &e.Message,
		&status, &providerID, &errText, &sentAt); err != nil {
		return nil, err
	}
	e.Status = core.MessageStatus(status)
	if providerID.Valid {
		e.ProviderMessageID = &providerID.String
	}
	if errText.Valid {
		e.Error = &errText.String
	}
	t, err := parseTime(sentAt)
	if err != nil {
		return nil, fmt.Errorf("decode sent_at: %w", err)
	}
	e.SentAt = t
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *MessageLogStore) Record(ctx context.Context, in core.NewLogEntry) (*core.MessageLogEntry, error) {
	if !in.Status.Valid() {
		return nil, &core.StorageError{Op: "record message", Err: fmt.Errorf("invalid status %q", in.Status)}
	}
	e := &core.MessageLogEntry{
		ID:         uuid.New(),
		CampaignID: in.CampaignID,
		FromNumber: in.FromNumber,
		ToNumber:   in.ToNumber,
		Message:    in.Message,
		Status:     in.Status,
		SentAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	if in.ProviderMessageID != "" {
		e.ProviderMessageID = &in.ProviderMessageID
	}
	if in.Error != "" {
		e.Error = &in.Error
	}

	_, err := s.db.SQL.ExecContext(ctx, `
		INSERT INTO message_logs(`+logColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		e.ID.String(), e.CampaignID.String(), e.FromNumber, e.ToNumber, e.Message, string(e.Status),
		nullString(in.ProviderMessageID), nullString(in.Error), formatTime(e.SentAt))
	if err != nil {
		return nil, &core.StorageError{Op: "record message", Err: err}
	}
	return e, nil
}

func (s *MessageLogStore) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]core.MessageLogEntry, error) {
	rows, err := s.db.SQL.QueryContext(ctx, `
		SELECT `+logColumns+` FROM message_logs
		WHERE campaign_id=?
		ORDER BY rowid DESC
		LIMIT ? OFFSET ?`, campaignID.String(), limit, offset)
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
	err := s.db.SQL.QueryRowContext(ctx, `
		SELECT count(*) FILTER (WHERE status='sent'),
		       count(*) FILTER (WHERE status='failed'),
		       count(*)
		FROM message_logs WHERE campaign_id=?`, campaignID.String()).Scan(&st.Sent, &st.Failed, &st.Total)
	if err != nil {
		return core.CampaignStats{}, &core.StorageError{Op: "message stats", Err: err}
	}
	return st, nil
}
