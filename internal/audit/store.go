package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"

	_ "github.com/lib/pq"
)

// Entry is one recorded admin override: who changed what, the full order
// state before and after, and the mandatory reason.
type Entry struct {
	ID        int64        `json:"id"`
	AdminID   string       `json:"admin_id"`
	OrderID   string       `json:"order_id"`
	Before    models.Order `json:"before"`
	After     models.Order `json:"after"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

// Store persists the override audit trail in plain SQL, separate from the
// order ledger so overrides stay visible even when order rows churn.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

func NewStore(db *sql.DB, log *logger.Logger) (*Store, error) {
	s := &Store{db: db, log: log}
	if err := s.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize audit tables: %w", err)
	}
	return s, nil
}

func (s *Store) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS order_audit (
		id BIGSERIAL PRIMARY KEY,
		admin_id VARCHAR(255) NOT NULL,
		order_id VARCHAR(255) NOT NULL,
		before_state TEXT NOT NULL,
		after_state TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_order_audit_order_id ON order_audit(order_id);
	CREATE INDEX IF NOT EXISTS idx_order_audit_admin_id ON order_audit(admin_id);
	`
	_, err := s.db.Exec(query)
	return err
}

// Record writes one audit entry. Before and after are stored as full JSON
// snapshots so the trail survives later schema changes on the orders table.
func (s *Store) Record(adminID, orderID string, before, after models.Order, reason string) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("failed to marshal before state: %w", err)
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return fmt.Errorf("failed to marshal after state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO order_audit (admin_id, order_id, before_state, after_state, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		adminID, orderID, string(beforeJSON), string(afterJSON), reason, time.Now(),
	)
	if err != nil {
		s.log.LogDatabase("INSERT", "order_audit", fmt.Sprintf("Failed to record override of %s: %v", orderID, err))
		return err
	}

	s.log.LogDatabase("INSERT", "order_audit", fmt.Sprintf("Recorded override of %s by %s", orderID, adminID))
	return nil
}

// ListByOrder returns the override history for an order, newest first.
func (s *Store) ListByOrder(orderID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(`
		SELECT id, admin_id, order_id, before_state, after_state, reason, created_at
		FROM order_audit
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		orderID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var beforeJSON, afterJSON string
		if err := rows.Scan(&e.ID, &e.AdminID, &e.OrderID, &beforeJSON, &afterJSON, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(beforeJSON), &e.Before); err != nil {
			return nil, fmt.Errorf("corrupt before state for audit entry %d: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(afterJSON), &e.After); err != nil {
			return nil, fmt.Errorf("corrupt after state for audit entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) HealthCheck() error {
	return s.db.Ping()
}

func (s *Store) Close() error {
	return s.db.Close()
}
