package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

const uniqueViolation = "23505"

// CampaignStore is the Postgres campaign registry.
type CampaignStore struct{ db *DB }

func NewCampaignStore(db *DB) *CampaignStore { return &CampaignStore{db: db} }

var _ core.Registry = (*CampaignStore)(nil)

const campaignColumns = `id, name, keyword, response_message, type, template_data, owner_id, created_at`

func scanCampaign(row pgx.Row) (*core.Campaign, error) {
	var c core.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Keyword, &c.ResponseMessage, &c.Type, &c.TemplateData, &c.OwnerID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(c.TemplateData) == 0 {
		c.TemplateData = nil
	}
	return &c, nil
}

// Create inserts the campaign under its normalized keyword. The unique
// constraint on keyword decides races between concurrent creates.
func (s *CampaignStore) Create(ctx context.Context, in core.NewCampaign) (*core.Campaign, error) {
	keyword := core.NormalizeKeyword(in.Keyword)
	data := in.TemplateData
	if data == nil {
		data = map[string]string{}
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO campaigns(id, name, keyword, response_message, type, template_data, owner_id)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+campaignColumns,
		uuid.New(), in.Name, keyword, in.ResponseMessage, in.Type, data, in.OwnerID)
	c, err := scanCampaign(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, &core.DuplicateKeywordError{Keyword: keyword}
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
	c, err := scanCampaign(s.db.Pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE keyword=$1`, keyword))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "find campaign by keyword", Err: err}
	}
	return c, nil
}

func (s *CampaignStore) FindByID(ctx context.Context, id uuid.UUID) (*core.Campaign, error) {
	c, err := scanCampaign(s.db.Pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrCampaignNotFound
	}
	if err != nil {
		return nil, &core.StorageError{Op: "find campaign", Err: err}
	}
	return c, nil
}

func (s *CampaignStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Campaign, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE owner_id=$1 ORDER BY seq`, ownerID)
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
