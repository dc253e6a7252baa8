package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmlow/goalflow/internal/domain"
)

// CreateGraph inserts a task graph with its templates serialized as JSON.
func (s *Storage) CreateGraph(ctx context.Context, g *domain.TaskGraph) error {
	templatesJSON, err := json.Marshal(g.Templates)
	if err != nil {
		return fmt.Errorf("marshal templates: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graphs (id, title, objective, status, templates_json,
			schedule, schedule_active, clarification,
			prompt_tokens, completion_tokens, total_tokens, planning_cost,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Title, g.Objective, g.Status, templatesJSON,
		nullString(g.Recurrence.Schedule), g.Recurrence.Active, nullString(g.Clarification),
		g.PlanningUsage.PromptTokens, g.PlanningUsage.CompletionTokens, g.PlanningUsage.TotalTokens, g.PlanningCost,
		g.CreatedAt, g.UpdatedAt)
	return err
}

func (s *Storage) GetGraph(ctx context.Context, id string) (*domain.TaskGraph, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, objective, status, templates_json,
			schedule, schedule_active, clarification,
			prompt_tokens, completion_tokens, total_tokens, planning_cost,
			created_at, updated_at
		FROM graphs WHERE id = ?
	`, id)

	g, err := scanGraph(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Kind: "graph", ID: id}
	}
	return g, err
}

func (s *Storage) ListGraphs(ctx context.Context, limit int) ([]*domain.TaskGraph, error) {
	query := `
		SELECT id, title, objective, status, templates_json,
			schedule, schedule_active, clarification,
			prompt_tokens, completion_tokens, total_tokens, planning_cost,
			created_at, updated_at
		FROM graphs ORDER BY updated_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var graphs []*domain.TaskGraph
	for rows.Next() {
		g, err := scanGraph(rows)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

// UpdateGraphStatus patches status and clarification text. Templates are
// immutable once a graph is ready and are deliberately not touched here.
func (s *Storage) UpdateGraphStatus(ctx context.Context, id string, status domain.GraphStatus, clarification string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE graphs SET status = ?, clarification = ?, updated_at = ? WHERE id = ?
	`, status, nullString(clarification), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "graph", ID: id}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGraph(row scannable) (*domain.TaskGraph, error) {
	var g domain.TaskGraph
	var templatesJSON string
	var schedule, clarification sql.NullString

	err := row.Scan(&g.ID, &g.Title, &g.Objective, &g.Status, &templatesJSON,
		&schedule, &g.Recurrence.Active, &clarification,
		&g.PlanningUsage.PromptTokens, &g.PlanningUsage.CompletionTokens, &g.PlanningUsage.TotalTokens, &g.PlanningCost,
		&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(templatesJSON), &g.Templates); err != nil {
		return nil, fmt.Errorf("unmarshal templates: %w", err)
	}
	g.Recurrence.Schedule = schedule.String
	g.Clarification = clarification.String
	return &g, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
