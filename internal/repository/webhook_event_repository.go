package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/engagekit/vaultd/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type WebhookEventRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewWebhookEventRepository(db *sqlx.DB, logger *zap.Logger) *WebhookEventRepository {
	return &WebhookEventRepository{db: db, logger: logger}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (id, provider, topic, delivery_id, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		event.ID,
		event.Provider,
		event.Topic,
		event.DeliveryID,
		event.Payload,
		event.ReceivedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("error creating webhook event: %w", err)
	}

	return nil
}

func (r *WebhookEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	query := `
		SELECT id, provider, topic, delivery_id, payload, received_at
		FROM webhook_events
		WHERE id = $1`

	var event models.WebhookEvent
	err := r.db.GetContext(ctx, &event, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting webhook event: %w", err)
	}
	return &event, nil
}

func (r *WebhookEventRepository) ListByProvider(ctx context.Context, provider models.Provider, limit int) ([]models.WebhookEvent, error) {
	query := `
		SELECT id, provider, topic, delivery_id, payload, received_at
		FROM webhook_events
		WHERE provider = $1
		ORDER BY received_at DESC
		LIMIT $2`

	var events []models.WebhookEvent
	err := r.db.SelectContext(ctx, &events, query, provider, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing webhook events: %w", err)
	}
	return events, nil
}

func (r *WebhookEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM webhook_events WHERE received_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting old webhook events: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking delete result: %w", err)
	}
	return rows, nil
}
