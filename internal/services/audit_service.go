package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coreledger/backend/internal/models"
)

// AuditService is the append-only recorder of financial and
// administrative events. Entries are never updated or deleted.
type AuditService struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditQuery holds the optional filters for Query. Zero values mean
// "no filter"; DateFrom and DateTo are both inclusive.
type AuditQuery struct {
	UserID   *int64
	Action   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

// Record appends one audit entry. Metadata is serialized opaquely; nil
// is stored as an empty object.
func (s *AuditService) Record(ctx context.Context, userID int64, action, resource string, metadata map[string]any) (*models.AuditLog, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling audit metadata: %w", err)
	}

	entry := &models.AuditLog{
		UserID:   userID,
		Action:   action,
		Resource: resource,
		Metadata: metadata,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (user_id, action, resource, metadata, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		userID, action, resource, payload,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting audit entry: %w", err)
	}

	return entry, nil
}

// Query returns audit entries matching the filters, newest first, with
// pagination metadata.
func (s *AuditService) Query(ctx context.Context, q AuditQuery) ([]models.AuditLog, models.PageMeta, error) {
	page, limit := normalizePage(q.Page, q.Limit)

	var conditions []string
	var args []any
	argIndex := 1

	if q.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *q.UserID)
		argIndex++
	}
	if q.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argIndex))
		args = append(args, q.Action)
		argIndex++
	}
	if q.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *q.DateFrom)
		argIndex++
	}
	if q.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *q.DateTo)
		argIndex++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, user_id, action, resource, metadata, created_at FROM audit_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var entry models.AuditLog
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Resource, &payload, &entry.CreatedAt); err != nil {
			return nil, models.PageMeta{}, fmt.Errorf("scanning audit entry: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Metadata); err != nil {
				return nil, models.PageMeta{}, fmt.Errorf("decoding audit metadata: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("iterating audit entries: %w", err)
	}

	return logs, models.NewPageMeta(total, page, limit), nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
