package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmlow/goalflow/internal/domain"
)

// CreateStopRequest appends a stop row. Insertion is always accepted:
// a scope that already has an active request simply gains another row,
// which keeps the operation idempotent from the caller's perspective.
func (s *Storage) CreateStopRequest(ctx context.Context, r *domain.StopRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stop_requests (id, scope, scope_id, status, requested_at, handled_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Scope, r.ScopeID, r.Status, r.RequestedAt, nullTime(r.HandledAt))
	return err
}

// HasActiveStopRequest reports whether at least one requested row
// exists for the scope.
func (s *Storage) HasActiveStopRequest(ctx context.Context, scope domain.StopScope, scopeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM stop_requests WHERE scope = ? AND scope_id = ? AND status = ?
	`, scope, scopeID, domain.StopRequested).Scan(&n)
	return n > 0, err
}

// MarkStopRequestsHandled flips every requested row for the scope to
// handled in a single statement; rows for other scopes are untouched.
func (s *Storage) MarkStopRequestsHandled(ctx context.Context, scope domain.StopScope, scopeID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stop_requests SET status = ?, handled_at = ?
		WHERE scope = ? AND scope_id = ? AND status = ?
	`, domain.StopHandled, time.Now().UTC(), scope, scopeID, domain.StopRequested)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Storage) ListStopRequests(ctx context.Context, scope domain.StopScope, scopeID string) ([]*domain.StopRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, scope_id, status, requested_at, handled_at
		FROM stop_requests WHERE scope = ? AND scope_id = ?
		ORDER BY requested_at ASC
	`, scope, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.StopRequest
	for rows.Next() {
		var r domain.StopRequest
		var handledAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Scope, &r.ScopeID, &r.Status, &r.RequestedAt, &handledAt); err != nil {
			return nil, err
		}
		r.HandledAt = timePtr(handledAt)
		requests = append(requests, &r)
	}
	return requests, rows.Err()
}
