package alertlog

import (
	"context"
	"time"

	"eduoj/internal/common/db"
	appErr "eduoj/pkg/errors"

	"github.com/google/uuid"
)

// Schema is the alert log DDL, executed by the restore flow.
const Schema = `
CREATE TABLE IF NOT EXISTS alert_logs (
    id           UUID PRIMARY KEY,
    student_id   TEXT NOT NULL,
    alert_type   TEXT NOT NULL,
    message_id   TEXT NOT NULL DEFAULT '',
    ip           TEXT NOT NULL DEFAULT '',
    message      TEXT NOT NULL DEFAULT '',
    acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
    occurred_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (student_id, alert_type, message_id)
)`

// Alert types raised by the anomaly check.
const (
	TypeMultipleIPs      = "multiple_ips"
	TypeSharedIP         = "shared_ip"
	TypeSuspiciousUpload = "suspicious_upload"
)

// Alert is one stored security alert. MessageID identifies the finding that
// raised it, so re-running the check does not duplicate open alerts.
type Alert struct {
	ID           uuid.UUID `json:"id"`
	StudentID    string    `json:"studentId"`
	AlertType    string    `json:"alertType"`
	MessageID    string    `json:"messageId"`
	IP           string    `json:"ip"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Repository persists security alerts.
type Repository interface {
	// AddBatch inserts the given alerts, skipping any whose
	// (student, type, message id) already exists. It returns the alerts
	// that were actually inserted.
	AddBatch(ctx context.Context, tx db.Transaction, alerts []Alert) ([]Alert, error)
	List(ctx context.Context, tx db.Transaction, onlyOpen bool) ([]Alert, error)
	SetAcknowledged(ctx context.Context, tx db.Transaction, id uuid.UUID, acknowledged bool) error
	Clear(ctx context.Context, tx db.Transaction) error
}

type PostgresRepository struct {
	dbProvider db.Provider
}

// NewRepository creates an alert repository over the given provider.
func NewRepository(provider db.Provider) Repository {
	return &PostgresRepository{dbProvider: provider}
}

const alertColumns = "id, student_id, alert_type, message_id, ip, message, acknowledged, occurred_at"

func (r *PostgresRepository) AddBatch(ctx context.Context, tx db.Transaction, alerts []Alert) ([]Alert, error) {
	if len(alerts) == 0 {
		return nil, nil
	}
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.AlertWriteFailed)
	}

	query := `
		INSERT INTO alert_logs (id, student_id, alert_type, message_id, ip, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, alert_type, message_id) DO NOTHING`

	var inserted []Alert
	for _, alert := range alerts {
		if alert.ID == uuid.Nil {
			alert.ID = uuid.New()
		}
		if alert.OccurredAt.IsZero() {
			alert.OccurredAt = time.Now()
		}
		result, err := querier.Exec(ctx, query, alert.ID, alert.StudentID, alert.AlertType, alert.MessageID, alert.IP, alert.Message, alert.OccurredAt)
		if err != nil {
			return inserted, appErr.Wrapf(err, appErr.AlertWriteFailed, "store alert %s for %s failed", alert.AlertType, alert.StudentID)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			inserted = append(inserted, alert)
		}
	}
	return inserted, nil
}

// List returns alerts newest first, optionally only unacknowledged ones.
func (r *PostgresRepository) List(ctx context.Context, tx db.Transaction, onlyOpen bool) ([]Alert, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.AlertCheckFailed)
	}
	query := "SELECT " + alertColumns + " FROM alert_logs"
	if onlyOpen {
		query += " WHERE NOT acknowledged"
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := querier.Query(ctx, query)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.AlertCheckFailed)
	}
	defer func() {
		_ = rows.Close()
	}()

	var alerts []Alert
	for rows.Next() {
		var alert Alert
		if err := rows.Scan(&alert.ID, &alert.StudentID, &alert.AlertType, &alert.MessageID, &alert.IP, &alert.Message, &alert.Acknowledged, &alert.OccurredAt); err != nil {
			return nil, appErr.Wrap(err, appErr.AlertCheckFailed)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.AlertCheckFailed)
	}
	return alerts, nil
}

func (r *PostgresRepository) SetAcknowledged(ctx context.Context, tx db.Transaction, id uuid.UUID, acknowledged bool) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return appErr.Wrap(err, appErr.AlertWriteFailed)
	}
	result, err := querier.Exec(ctx, "UPDATE alert_logs SET acknowledged = $2 WHERE id = $1", id, acknowledged)
	if err != nil {
		return appErr.Wrapf(err, appErr.AlertWriteFailed, "acknowledge alert %s failed", id)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return appErr.Newf(appErr.AlertNotFound, "alert %s not found", id)
	}
	return nil
}

// Clear removes every alert.
func (r *PostgresRepository) Clear(ctx context.Context, tx db.Transaction) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return appErr.Wrap(err, appErr.AlertWriteFailed)
	}
	if _, err := querier.Exec(ctx, "DELETE FROM alert_logs"); err != nil {
		return appErr.Wrap(err, appErr.AlertWriteFailed)
	}
	return nil
}
