package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

// Postgres хранит журнал административных команд.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.AuditRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// RecordCommand сохраняет запись о выполнении команды.
func (p *Postgres) RecordCommand(ctx context.Context, entry domain.CommandAudit) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	args := entry.Args
	if args == nil {
		args = []string{}
	}

	ctx, cancel := connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO command_audit (community_id, user_id, command, args, outcome, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		int64(entry.Community), int64(entry.User), entry.Command, args, entry.Outcome, entry.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "insert_command_audit", start, err)
	if err != nil {
		return fmt.Errorf("insert command audit: %w", err)
	}
	return nil
}
