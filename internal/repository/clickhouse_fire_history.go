package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	pkgch "SignalPulse/pkg/clickhouse"
	applogger "SignalPulse/pkg/logger"
)

// ClickHouseFireHistory appends fire events to a MergeTree table.
type ClickHouseFireHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// FireHistorySchema returns the DDL for the fire events table.
func FireHistorySchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            fired_at    DateTime64(3),
            target      DateTime64(3),
            signal_key  String,
            timeframe   LowCardinality(String),
            asset       LowCardinality(String),
            direction   LowCardinality(String),
            timestamp   String,
            instance_id LowCardinality(String),
            drift_ms    Int64,
            antidelay   UInt8,
            dispatched  UInt8,
            persisted   UInt8
        ) ENGINE = MergeTree
        ORDER BY (fired_at, signal_key)
        TTL toDateTime(fired_at) + INTERVAL 90 DAY`, database, table),
	}
}

func NewClickHouseFireHistory(ctx context.Context, ch *pkgch.Client, table string, l *applogger.Logger) (*ClickHouseFireHistory, error) {
	if l == nil {
		l = applogger.Nop()
	}
	if err := ch.InitSchema(ctx, FireHistorySchema(ch.Database(), table)); err != nil {
		return nil, err
	}
	return &ClickHouseFireHistory{db: ch.DB(), table: ch.Database() + "." + table, l: l}, nil
}

func (h *ClickHouseFireHistory) Record(ctx context.Context, ev models.FireEvent) error {
	q := fmt.Sprintf(`INSERT INTO %s (fired_at, target, signal_key, timeframe, asset, direction, timestamp,
        instance_id, drift_ms, antidelay, dispatched, persisted) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, h.table)
	_, err := h.db.ExecContext(ctx, q,
		ev.FiredAt,
		ev.Target,
		ev.Key,
		ev.Signal.Timeframe,
		ev.Signal.Asset,
		ev.Signal.Direction,
		ev.Signal.Timestamp,
		ev.InstanceID,
		ev.DriftMs,
		uint8(ev.Antidelay),
		boolToUInt8(ev.Dispatched),
		boolToUInt8(ev.Persisted),
	)
	if err != nil {
		h.l.Error("clickhouse insert fire event", applogger.String("key", ev.Key), applogger.Error(err))
		return fmt.Errorf("insert fire event: %w", err)
	}
	return nil
}

func (h *ClickHouseFireHistory) Recent(ctx context.Context, limit int) ([]models.FireEvent, error) {
	q := fmt.Sprintf(`
        SELECT fired_at, target, signal_key, timeframe, asset, direction, timestamp,
               instance_id, drift_ms, antidelay, dispatched, persisted
        FROM %s
        ORDER BY fired_at DESC
        LIMIT ?`, h.table)
	rows, err := h.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query fire events: %w", err)
	}
	defer rows.Close()

	out := make([]models.FireEvent, 0, limit)
	for rows.Next() {
		var (
			ev                               models.FireEvent
			firedAt, target                  time.Time
			antidelay, dispatched, persisted uint8
		)
		if err := rows.Scan(&firedAt, &target, &ev.Key, &ev.Signal.Timeframe, &ev.Signal.Asset,
			&ev.Signal.Direction, &ev.Signal.Timestamp, &ev.InstanceID, &ev.DriftMs,
			&antidelay, &dispatched, &persisted); err != nil {
			return nil, fmt.Errorf("scan fire event: %w", err)
		}
		ev.FiredAt, ev.Target = firedAt, target
		ev.Antidelay = int(antidelay)
		ev.Dispatched, ev.Persisted = dispatched == 1, persisted == 1
		ev.Signal.Triggered = ev.Persisted
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fire events: %w", err)
	}
	return out, nil
}

// Close is a no-op; the ClickHouse client is owned by the caller.
func (h *ClickHouseFireHistory) Close() error { return nil }

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
