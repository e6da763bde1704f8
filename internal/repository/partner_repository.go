package repository

import (
	"context"
	"database/sql"

	"greencity/internal/model"

	"github.com/lib/pq"
)

type PartnerRepository struct {
	db *sql.DB
}

func NewPartnerRepository(db *sql.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

func (r *PartnerRepository) Create(ctx context.Context, p *model.Partner) error {
	query := `
		INSERT INTO partners (id, name, type, description, contributions, logo_url, website, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Type,
		p.Description,
		pq.Array(p.Contributions),
		p.LogoURL,
		p.Website,
		p.CreatedBy,
		p.CreatedAt,
	)
	return err
}

func (r *PartnerRepository) List(ctx context.Context) ([]model.Partner, error) {
	query := `
		SELECT id, name, type, description, contributions, logo_url, website, created_by, created_at
		FROM partners
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	partners := []model.Partner{}
	for rows.Next() {
		var p model.Partner
		var contributions pq.StringArray
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Type,
			&p.Description,
			&contributions,
			&p.LogoURL,
			&p.Website,
			&p.CreatedBy,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		p.Contributions = stringSlice(contributions)
		partners = append(partners, p)
	}
	return partners, rows.Err()
}
