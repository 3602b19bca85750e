package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "thoughts_changes"

// PGBridge carries change topics between server instances over Postgres
// LISTEN/NOTIFY. Publish signals the local Changes broker and sends a NOTIFY;
// Run feeds notifications from every instance into the local broker. Local
// views keep updating while the listen connection is down.
type PGBridge struct {
	pool    *pgxpool.Pool
	changes *Changes
}

func NewPGBridge(ctx context.Context, databaseURL string, changes *Changes) (*PGBridge, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PGBridge{pool: pool, changes: changes}, nil
}

func (b *PGBridge) Publish(ctx context.Context, topic string) error {
	// Our own NOTIFY comes back through Run as a second signal, which the
	// broker coalesces.
	b.changes.Publish(ctx, topic)

	if _, err := b.pool.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, topic); err != nil {
		return fmt.Errorf("notify %s: %w", topic, err)
	}
	return nil
}

// Run listens until ctx is done. It holds one pool connection for its whole
// lifetime.
func (b *PGBridge) Run(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	log.Printf("[store] listening for changes on %s", notifyChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		b.changes.Publish(ctx, n.Payload)
	}
}

func (b *PGBridge) Close() {
	b.pool.Close()
}
