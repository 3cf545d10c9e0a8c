package shared

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewLog is one recorded review transition.
type ReviewLog struct {
	ID      int64     `json:"id"`
	EntryID uuid.UUID `json:"entry_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Actor   string    `json:"actor"`
	At      time.Time `json:"at"`
}

// ReviewAudit persists review history in review_audit.
type ReviewAudit struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewReviewAudit constructs ReviewAudit.
func NewReviewAudit(pool *pgxpool.Pool, logger *slog.Logger) *ReviewAudit {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewAudit{pool: pool, logger: logger}
}

// RecordReview writes one transition. An empty actor is stored as "system".
func (a *ReviewAudit) RecordReview(ctx context.Context, entryID uuid.UUID, from, to, actor string) error {
	if a == nil {
		return errors.New("review audit not initialised")
	}
	if entryID == uuid.Nil {
		return errors.New("review audit entry id required")
	}
	if from == "" || to == "" {
		return errors.New("review audit requires from/to states")
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "system"
	}
	_, err := a.pool.Exec(ctx, `INSERT INTO review_audit (entry_id, from_state, to_state, actor, at)
VALUES ($1, $2, $3, $4, NOW())`, entryID, from, to, actor)
	if err != nil {
		a.logger.Error("record review audit", slog.String("entry_id", entryID.String()), slog.Any("error", err))
		return err
	}
	return nil
}

// History returns the transitions recorded for an entry, oldest first.
func (a *ReviewAudit) History(ctx context.Context, entryID uuid.UUID) ([]ReviewLog, error) {
	if a == nil {
		return nil, errors.New("review audit not initialised")
	}
	rows, err := a.pool.Query(ctx, `SELECT id, entry_id, from_state, to_state, actor, at
FROM review_audit WHERE entry_id = $1 ORDER BY at ASC, id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := make([]ReviewLog, 0)
	for rows.Next() {
		var l ReviewLog
		if err := rows.Scan(&l.ID, &l.EntryID, &l.From, &l.To, &l.Actor, &l.At); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
