package repository

import (
	"context"
	"database/sql"
	"time"

	domrepo "MarketBrief/internal/domain/repository"
	pkgch "MarketBrief/pkg/clickhouse"
	applogger "MarketBrief/pkg/logger"
)

const chargesTable = "mb_charges"

// ChargeLedgerSchema creates the append-only charge table. Passed to
// clickhouse.Client.InitSchema on startup.
var ChargeLedgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + chargesTable + ` (
        ts DateTime64(3),
        event LowCardinality(String),
        count UInt32
    ) ENGINE = MergeTree()
    ORDER BY (event, ts)
    TTL toDateTime(ts) + INTERVAL 90 DAY`,
}

// ChargeLedger implements Charger. Every charge is counted in Prometheus and
// logged; when ClickHouse is configured it is also appended to the ledger
// table. Charge never fails the run: a ledger write error is logged and
// dropped.
type ChargeLedger struct {
	db      *sql.DB
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewChargeLedger(metrics domrepo.Metrics, lgr *applogger.Logger) *ChargeLedger {
	return &ChargeLedger{metrics: metrics, logger: lgr}
}

// WithClickHouse attaches the durable ledger backend.
func (l *ChargeLedger) WithClickHouse(ch *pkgch.Client) *ChargeLedger {
	l.db = ch.DB()
	return l
}

func (l *ChargeLedger) Charge(ctx context.Context, event string, count int) {
	l.metrics.RecordCharge(event, count)
	l.logger.Info("charge recorded",
		applogger.String("event", event),
		applogger.Int("count", count))

	if l.db == nil {
		return
	}
	q := "INSERT INTO " + chargesTable + " (ts, event, count) VALUES (?, ?, ?)"
	if _, err := l.db.ExecContext(ctx, q, time.Now().UTC(), event, uint32(count)); err != nil {
		l.logger.Warn("charge ledger insert failed",
			applogger.String("event", event),
			applogger.Error(err))
	}
}
