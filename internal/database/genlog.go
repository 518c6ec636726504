package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GenerationLog is one bookkeeping row for a completed generation request
type GenerationLog struct {
	ID               uuid.UUID `json:"id"`
	RequestID        string    `json:"request_id"`
	UserID           string    `json:"user_id"`
	ModelID          string    `json:"model_id"`
	GenerationMethod string    `json:"generation_method"`
	AgentCount       int       `json:"agent_count"`
	ToolCount        int       `json:"tool_count"`
	CodeLength       int       `json:"code_length"`
	IsSafe           bool      `json:"is_safe"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// InsertGenerationLog records one generation. Bookkeeping failures are the
// caller's to log and swallow; they never fail a generation.
func (p *Postgres) InsertGenerationLog(ctx context.Context, entry GenerationLog) error {
	query := `
		INSERT INTO generation_logs
			(id, request_id, user_id, model_id, generation_method, agent_count, tool_count, code_length, is_safe, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := p.pool.Exec(ctx, query,
		uuid.New(), entry.RequestID, entry.UserID, entry.ModelID,
		entry.GenerationMethod, entry.AgentCount, entry.ToolCount,
		entry.CodeLength, entry.IsSafe, entry.LatencyMs)
	return err
}

// RecentGenerationLogs returns the newest log rows for a user
func (p *Postgres) RecentGenerationLogs(ctx context.Context, userID string, limit int) ([]GenerationLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, request_id, user_id, model_id, generation_method, agent_count, tool_count, code_length, is_safe, latency_ms, created_at
		FROM generation_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []GenerationLog
	for rows.Next() {
		var entry GenerationLog
		if err := rows.Scan(&entry.ID, &entry.RequestID, &entry.UserID, &entry.ModelID,
			&entry.GenerationMethod, &entry.AgentCount, &entry.ToolCount,
			&entry.CodeLength, &entry.IsSafe, &entry.LatencyMs, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
