package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"o42-matching/internal/models"
)

// GetCreatorLocation returns a customer's last known point, used as
// the originating location of their purchase orders. Customers without
// a recorded location return ErrNotFound.
func (s *PostgresStore) GetCreatorLocation(ctx context.Context, creatorID string) (*models.GeoPoint, error) {
	var longitude, latitude sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT longitude, latitude FROM customers WHERE id = $1`, creatorID).
		Scan(&longitude, &latitude)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get creator location %s: %w", creatorID, err)
	}
	if !longitude.Valid || !latitude.Valid {
		return nil, ErrNotFound
	}
	return &models.GeoPoint{Longitude: longitude.Float64, Latitude: latitude.Float64}, nil
}
