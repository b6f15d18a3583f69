package actionlog

import (
	"context"
	"time"

	"eduoj/internal/common/db"
	appErr "eduoj/pkg/errors"

	"github.com/lib/pq"
)

// Schema is the action log DDL, executed by the restore flow.
const Schema = `
CREATE TABLE IF NOT EXISTS user_action_logs (
    id          BIGSERIAL PRIMARY KEY,
    student_id  TEXT NOT NULL,
    ip_address  TEXT NOT NULL DEFAULT '',
    action_type TEXT NOT NULL,
    details     TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS user_action_logs_student_idx ON user_action_logs (student_id);
CREATE INDEX IF NOT EXISTS user_action_logs_ip_idx ON user_action_logs (ip_address)`

// Record is one logged user action.
type Record struct {
	ID         int64     `json:"id"`
	StudentID  string    `json:"studentId"`
	IPAddress  string    `json:"ipAddress"`
	ActionType string    `json:"actionType"`
	Details    string    `json:"details"`
	OccurredAt time.Time `json:"occurredAt"`
}

// StudentIPUsage aggregates the distinct addresses one student was seen from.
type StudentIPUsage struct {
	StudentID string   `json:"studentId"`
	IPs       []string `json:"ips"`
}

// SharedIPUsage aggregates the distinct students seen behind one address.
type SharedIPUsage struct {
	IP       string   `json:"ip"`
	Students []string `json:"students"`
}

// anomalyThreshold is the distinct-count above which usage is flagged.
const anomalyThreshold = 2

// Repository persists and queries user action logs.
type Repository interface {
	Create(ctx context.Context, tx db.Transaction, record *Record) error
	List(ctx context.Context, tx db.Transaction, limit int) ([]Record, error)
	ListByStudent(ctx context.Context, tx db.Transaction, studentID string) ([]Record, error)
	ListByIP(ctx context.Context, tx db.Transaction, ip string) ([]Record, error)
	StudentsWithManyIPs(ctx context.Context, tx db.Transaction) ([]StudentIPUsage, error)
	IPsWithManyStudents(ctx context.Context, tx db.Transaction) ([]SharedIPUsage, error)
	Clear(ctx context.Context, tx db.Transaction) error
}

type PostgresRepository struct {
	dbProvider db.Provider
}

// NewRepository creates an action log repository over the given provider.
func NewRepository(provider db.Provider) Repository {
	return &PostgresRepository{dbProvider: provider}
}

const recordColumns = "id, student_id, ip_address, action_type, details, occurred_at"

func (r *PostgresRepository) Create(ctx context.Context, tx db.Transaction, record *Record) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return appErr.Wrap(err, appErr.ActionLogWriteFailed)
	}
	occurredAt := record.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	query := `
		INSERT INTO user_action_logs (student_id, ip_address, action_type, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := querier.Exec(ctx, query, record.StudentID, record.IPAddress, record.ActionType, record.Details, occurredAt); err != nil {
		return appErr.Wrapf(err, appErr.ActionLogWriteFailed, "log action %s for %s failed", record.ActionType, record.StudentID)
	}
	return nil
}

// List returns the most recent records, newest first. A non-positive limit
// means no limit.
func (r *PostgresRepository) List(ctx context.Context, tx db.Transaction, limit int) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM user_action_logs ORDER BY occurred_at DESC"
	if limit > 0 {
		return r.queryRecords(ctx, tx, query+" LIMIT $1", limit)
	}
	return r.queryRecords(ctx, tx, query)
}

func (r *PostgresRepository) ListByStudent(ctx context.Context, tx db.Transaction, studentID string) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM user_action_logs WHERE student_id = $1 ORDER BY occurred_at DESC"
	return r.queryRecords(ctx, tx, query, studentID)
}

func (r *PostgresRepository) ListByIP(ctx context.Context, tx db.Transaction, ip string) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM user_action_logs WHERE ip_address = $1 ORDER BY occurred_at DESC"
	return r.queryRecords(ctx, tx, query, ip)
}

// StudentsWithManyIPs flags students whose actions came from more than two
// distinct addresses, a hint that credentials are being shared.
func (r *PostgresRepository) StudentsWithManyIPs(ctx context.Context, tx db.Transaction) ([]StudentIPUsage, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	query := `
		SELECT student_id, array_agg(DISTINCT ip_address)
		FROM user_action_logs
		WHERE ip_address <> ''
		GROUP BY student_id
		HAVING COUNT(DISTINCT ip_address) > $1`
	rows, err := querier.Query(ctx, query, anomalyThreshold)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	defer func() {
		_ = rows.Close()
	}()

	var usages []StudentIPUsage
	for rows.Next() {
		var usage StudentIPUsage
		if err := rows.Scan(&usage.StudentID, pq.Array(&usage.IPs)); err != nil {
			return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
		}
		usages = append(usages, usage)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	return usages, nil
}

// IPsWithManyStudents flags addresses used by more than two distinct
// students, a hint that one machine is submitting for several people.
func (r *PostgresRepository) IPsWithManyStudents(ctx context.Context, tx db.Transaction) ([]SharedIPUsage, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	query := `
		SELECT ip_address, array_agg(DISTINCT student_id)
		FROM user_action_logs
		WHERE ip_address <> ''
		GROUP BY ip_address
		HAVING COUNT(DISTINCT student_id) > $1`
	rows, err := querier.Query(ctx, query, anomalyThreshold)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	defer func() {
		_ = rows.Close()
	}()

	var usages []SharedIPUsage
	for rows.Next() {
		var usage SharedIPUsage
		if err := rows.Scan(&usage.IP, pq.Array(&usage.Students)); err != nil {
			return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
		}
		usages = append(usages, usage)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	return usages, nil
}

// Clear removes every action log record.
func (r *PostgresRepository) Clear(ctx context.Context, tx db.Transaction) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return appErr.Wrap(err, appErr.ActionLogWriteFailed)
	}
	if _, err := querier.Exec(ctx, "DELETE FROM user_action_logs"); err != nil {
		return appErr.Wrap(err, appErr.ActionLogWriteFailed)
	}
	return nil
}

func (r *PostgresRepository) queryRecords(ctx context.Context, tx db.Transaction, query string, args ...interface{}) ([]Record, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.ID, &record.StudentID, &record.IPAddress, &record.ActionType, &record.Details, &record.OccurredAt); err != nil {
			return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.ActionLogQueryFailed)
	}
	return records, nil
}
