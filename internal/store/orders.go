// Package store is the engine's only write surface: it reads orders
// and replaces the matching-owned fields on them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"o42-matching/internal/models"
)

// ErrNotFound reports a missing order.
var ErrNotFound = errors.New("order not found")

// Replaceable field names accepted by ReplaceFields. The matching
// engine owns exactly these two fields; everything else on an order
// belongs to other workflows.
const (
	FieldLinkedAgents = "linked_agents"
	FieldMatches      = "matches"
)

// OrderStore is the collaborator contract consumed by the orchestrator.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOpenOrders(ctx context.Context, orderType models.OrderType, limit int) ([]models.Order, error)
	ReplaceFields(ctx context.Context, id string, fields map[string]interface{}) (*models.Order, error)
}

// PostgresStore implements OrderStore over the orders table.
// linked_agents and matches are JSONB columns replaced wholesale, so
// concurrent passes for one order converge on last-writer-wins at the
// field level.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, type, creator_id, description, image_url, price, commission_pct,
	longitude, latitude, linked_agents, delivering_agent, matches, open, created, last_updated`

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, nil
}

func (s *PostgresStore) ListOpenOrders(ctx context.Context, orderType models.OrderType, limit int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE type = $1 AND open = TRUE AND delivering_agent IS NULL
		ORDER BY created DESC
		LIMIT $2`, string(orderType), limit)
	if err != nil {
		return nil, fmt.Errorf("list open %s orders: %w", orderType, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list open %s orders: %w", orderType, err)
	}
	return orders, nil
}

// ReplaceFields overwrites the named matching-owned fields and bumps
// last_updated. Field values replace the column contents entirely;
// nothing is merged. Unknown field names are rejected.
func (s *PostgresStore) ReplaceFields(ctx context.Context, id string, fields map[string]interface{}) (*models.Order, error) {
	if len(fields) == 0 {
		return s.GetOrder(ctx, id)
	}

	assignments := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+2)
	arg := 1

	// Deterministic column order keeps the generated SQL stable.
	for _, name := range []string{FieldLinkedAgents, FieldMatches} {
		value, ok := fields[name]
		if !ok {
			continue
		}
		delete(fields, name)
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		assignments = append(assignments, fmt.Sprintf("%s = $%d", name, arg))
		args = append(args, payload)
		arg++
	}
	if len(fields) > 0 {
		return nil, fmt.Errorf("unsupported replace fields: %v", keys(fields))
	}

	assignments = append(assignments, fmt.Sprintf("last_updated = $%d", arg))
	args = append(args, time.Now().UTC())
	arg++
	args = append(args, id)

	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d", strings.Join(assignments, ", "), arg)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("replace fields on order %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	return s.GetOrder(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order           models.Order
		orderType       string
		imageURL        sql.NullString
		price           sql.NullFloat64
		commission      sql.NullFloat64
		longitude       sql.NullFloat64
		latitude        sql.NullFloat64
		linkedAgents    []byte
		deliveringAgent sql.NullString
		matches         []byte
	)

	err := row.Scan(
		&order.ID, &orderType, &order.CreatorID, &order.Description, &imageURL,
		&price, &commission, &longitude, &latitude, &linkedAgents,
		&deliveringAgent, &matches, &order.Open, &order.Created, &order.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	order.Type = models.OrderType(orderType)
	order.ImageURL = imageURL.String
	order.Price = price.Float64
	order.CommissionPct = commission.Float64
	order.DeliveringAgent = deliveringAgent.String
	if longitude.Valid && latitude.Valid {
		order.Location = &models.GeoPoint{Longitude: longitude.Float64, Latitude: latitude.Float64}
	}

	if len(linkedAgents) > 0 {
		if err := json.Unmarshal(linkedAgents, &order.LinkedAgents); err != nil {
			return nil, fmt.Errorf("decode linked_agents: %w", err)
		}
	}
	if len(matches) > 0 {
		if err := json.Unmarshal(matches, &order.Matches); err != nil {
			return nil, fmt.Errorf("decode matches: %w", err)
		}
	}
	return &order, nil
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
