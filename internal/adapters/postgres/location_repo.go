package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/murmur/internal/core/domain"
)

// LocationRepo implements ports.LocationLog and ports.LocationRetention with pgx.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

// Append inserts a single ping. Pings are never updated.
func (r *LocationRepo) Append(ctx context.Context, p *domain.LocationPing) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO location_pings (id, user_id, lat, lon, geohash, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.UserID, p.Location.Lat, p.Location.Lon, p.Cell, p.Time)
	return err
}

// AppendBatch inserts many pings using pgx.Batch.
func (r *LocationRepo) AppendBatch(ctx context.Context, pings []domain.LocationPing) error {
	batch := &pgx.Batch{}
	for _, p := range pings {
		batch.Queue(`
			INSERT INTO location_pings (id, user_id, lat, lon, geohash, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.UserID, p.Location.Lat, p.Location.Lon, p.Cell, p.Time)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// CountMatching counts pings in exactly cell recorded at or after since.
func (r *LocationRepo) CountMatching(ctx context.Context, cell string, since time.Time) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM location_pings
		WHERE geohash = $1 AND recorded_at >= $2
	`, cell, since).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListByUser returns a user's pings in [from, to], oldest first.
func (r *LocationRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.LocationPing, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, lat, lon, geohash, recorded_at
		FROM location_pings
		WHERE user_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at, id
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pings []domain.LocationPing
	for rows.Next() {
		var p domain.LocationPing
		if err := rows.Scan(&p.ID, &p.UserID, &p.Location.Lat, &p.Location.Lon, &p.Cell, &p.Time); err != nil {
			return nil, err
		}
		p.Time = p.Time.UTC()
		pings = append(pings, p)
	}
	return pings, rows.Err()
}

// PruneBefore deletes pings recorded before cutoff and reports how many went.
func (r *LocationRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM location_pings WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
