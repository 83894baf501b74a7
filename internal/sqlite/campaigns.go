package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

type CampaignStore struct{ db *DB }

func NewCampaignStore(db *DB) *CampaignStore { return &CampaignStore{db: db} }

var _ core.Registry = (*CampaignStore)(nil)

const campaignColumns = `id, name, keyword, response_message, type, template_data, owner_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*core.Campaign, error) {
	var (
		c       core.Campaign
		data    string
		created string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Keyword, &c.ResponseMessage, &c.Type, &data, &c.OwnerID, &created); err != nil {
		return nil, err
	}
	if data != "" && data != "{}" {
		if err := json.Unmarshal([]byte(data), &c.TemplateData); err != nil {
			return nil, fmt.Errorf("decode template_data: %w", err)
		}
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	c.CreatedAt = t
	return &c, nil
}

func (s *CampaignStore) Create(ctx context.Context, in core.NewCampaign) (*core.Campaign, error) {
	c := &core.Campaign{
		ID:              uuid.New(),
		Name:            in.Name,
		Keyword:         core.NormalizeKeyword(in.Keyword),
		ResponseMessage: in.ResponseMessage,
		Type:            in.Type,
		OwnerID:         in.OwnerID,
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
	data := []byte("{}")
	if len(in.TemplateData) > 0 {
		c.TemplateData = in.TemplateData
		var err error
		if data, err = json.Marshal(in.TemplateData); err != nil {
			return nil, &core.StorageError{Op: "create campaign", Err: err}
		}
	}

	_, err := s.db.SQL.ExecContext(ctx, `
		INSERT INTO campaigns(`+campaignColumns+`)
		VALUES(?,?,?,?,?,?,?,?)`,
		c.ID.String(), c.Name, c.Keyword, c.ResponseMessage, c.Type, string(data), c.OwnerID, formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &core.DuplicateKeywordError{Keyword: c.Keyword}
		}
		return nil, &core.StorageError{Op: "create campaign", Err: err}
	}
	return c, nil
}

func (s *CampaignStore) FindByKeyword(ctx context.Context, rawText string) (*core.Campaign, error) {
	keyword := core.NormalizeKeyword(rawText)
	if keyword == "" {
		return nil, nil
	}
	c, err := scanCampaign(s.db.SQL.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE keyword=?`, keyword))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "find campaign by keyword", Err: err}
	}
	return c, nil
}

func (s *CampaignStore) FindByID(ctx context.Context, id uuid.UUID) (*core.Campaign, error) {
	c, err := scanCampaign(s.db.SQL.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id=?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrCampaignNotFound
	}
	if err != nil {
		return nil, &core.StorageError{Op: "find campaign", Err: err}
	}
	return c, nil
}

func (s *CampaignStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Campaign, error) {
	rows, err := s.db.SQL.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE owner_id=? ORDER BY rowid`, ownerID)
	if err != nil {
		return nil, &core.StorageError{Op: "list campaigns", Err: err}
	}
	defer rows.Close()

	out := []core.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, &core.StorageError{Op: "list campaigns", Err: err}
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list campaigns", Err: err}
	}
	return out, nil
}
