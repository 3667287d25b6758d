package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"hourledger/database"
	"hourledger/models"
	"hourledger/service"
)

// AuditLogRepository implements the AuditLogRepository interface.
// The table is append-only; there is no update or delete path.
type AuditLogRepository struct {
	q        queryable
	tenantID int64
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *database.DB, tenantID int64) *AuditLogRepository {
	return &AuditLogRepository{q: db.Pool, tenantID: tenantID}
}

// newAuditLogRepository creates a new audit log repository with a transaction and tenant scope
func newAuditLogRepository(tx queryable, tenantID int64) service.AuditLogRepository {
	return &AuditLogRepository{q: tx, tenantID: tenantID}
}

// Record appends one audit entry
func (r *AuditLogRepository) Record(ctx context.Context, entry *models.DebtAuditLog) error {
	var beforeJSON []byte
	var err error
	if entry.BeforeState != nil {
		beforeJSON, err = json.Marshal(entry.BeforeState)
		if err != nil {
			return fmt.Errorf("failed to marshal before state: %w", err)
		}
	}

	afterJSON, err := json.Marshal(entry.AfterState)
	if err != nil {
		return fmt.Errorf("failed to marshal after state: %w", err)
	}

	query := `
		INSERT INTO debt_audit_logs
		(debt_id, action, before_state, after_state, changed_fields, reason, performed_by, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		entry.DebtID,
		entry.Action,
		beforeJSON,
		afterJSON,
		entry.ChangedFields,
		entry.Reason,
		entry.PerformedBy,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record audit entry for debt %d: %w", entry.DebtID, err)
	}

	return nil
}

// GetByDebt returns a debt's audit entries, newest first
func (r *AuditLogRepository) GetByDebt(ctx context.Context, debtID int64, limit int) ([]*models.DebtAuditLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT a.id, a.debt_id, a.action, a.before_state, a.after_state, a.changed_fields,
		       a.reason, a.performed_by, a.ip_address, a.user_agent, a.created_at
		FROM debt_audit_logs a
		WHERE a.debt_id = $1
		  AND EXISTS (SELECT 1 FROM debts WHERE debts.id = a.debt_id AND debts.tenant_id = $2)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, debtID, r.tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log for debt %d: %w", debtID, err)
	}
	defer rows.Close()

	var entries []*models.DebtAuditLog
	for rows.Next() {
		var entry models.DebtAuditLog
		var beforeJSON, afterJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.DebtID,
			&entry.Action,
			&beforeJSON,
			&afterJSON,
			&entry.ChangedFields,
			&entry.Reason,
			&entry.PerformedBy,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if len(beforeJSON) > 0 {
			if err := json.Unmarshal(beforeJSON, &entry.BeforeState); err != nil {
				return nil, fmt.Errorf("failed to unmarshal before state: %w", err)
			}
		}
		if len(afterJSON) > 0 {
			if err := json.Unmarshal(afterJSON, &entry.AfterState); err != nil {
				return nil, fmt.Errorf("failed to unmarshal after state: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}

	return entries, nil
}
