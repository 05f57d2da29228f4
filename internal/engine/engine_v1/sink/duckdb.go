package sink

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/halcyonlab/halcyon/internal/logger"
	"github.com/halcyonlab/halcyon/internal/types"
	"github.com/halcyonlab/halcyon/pkg/errors"
)

// DuckDBSink records run artifacts in an in-memory DuckDB database and
// exports them as Parquet files.
type DuckDBSink struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBSink creates a sink backed by an in-memory DuckDB database.
func NewDuckDBSink(log *logger.Logger) (*DuckDBSink, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSinkInitFailed, "failed to open database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeSinkInitFailed, "failed to connect to database", err)
	}

	s := &DuckDBSink{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := s.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *DuckDBSink) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT,
			side TEXT,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			entry_price DOUBLE,
			exit_price DOUBLE,
			size DOUBLE,
			leverage DOUBLE,
			fee_paid DOUBLE,
			realized_pnl DOUBLE,
			exit_reason TEXT,
			closed_ratio DOUBLE,
			reason TEXT
		);
		CREATE SEQUENCE IF NOT EXISTS event_id_seq;
		CREATE TABLE IF NOT EXISTS risk_events (
			id INTEGER PRIMARY KEY,
			timestamp TIMESTAMP,
			bar_index INTEGER,
			kind TEXT,
			detail TEXT
		);
		CREATE SEQUENCE IF NOT EXISTS snapshot_id_seq;
		CREATE TABLE IF NOT EXISTS equity_snapshots (
			id INTEGER PRIMARY KEY,
			timestamp TIMESTAMP,
			equity DOUBLE,
			drawdown_pct DOUBLE
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to create tables", err)
	}

	return nil
}

// RecordTrade implements Sink.
func (s *DuckDBSink) RecordTrade(trade types.Trade) error {
	if s == nil || s.db == nil {
		return errors.New(errors.ErrCodeSinkInitFailed, "sink or database is nil")
	}

	_, err := s.sq.
		Insert("trades").
		Columns("id", "symbol", "side", "entry_time", "exit_time", "entry_price", "exit_price",
			"size", "leverage", "fee_paid", "realized_pnl", "exit_reason", "closed_ratio", "reason").
		Values(trade.ID, trade.Symbol, string(trade.Side), trade.EntryTime, trade.ExitTime,
			trade.EntryPrice, trade.ExitPrice, trade.Size, trade.Leverage, trade.FeePaid,
			trade.RealizedPnL, string(trade.ExitReason), trade.ClosedRatio, trade.Reason).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to insert trade", err)
	}

	return nil
}

// RecordEvent implements Sink.
func (s *DuckDBSink) RecordEvent(event types.RiskEvent) error {
	if s == nil || s.db == nil {
		return errors.New(errors.ErrCodeSinkInitFailed, "sink or database is nil")
	}

	var nextID int
	if err := s.db.QueryRow("SELECT nextval('event_id_seq')").Scan(&nextID); err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to get next event id", err)
	}

	_, err := s.sq.
		Insert("risk_events").
		Columns("id", "timestamp", "bar_index", "kind", "detail").
		Values(nextID, event.Time, event.Index, string(event.Kind), event.Detail).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to insert risk event", err)
	}

	return nil
}

// RecordSnapshot implements Sink.
func (s *DuckDBSink) RecordSnapshot(snapshot types.EquitySnapshot) error {
	if s == nil || s.db == nil {
		return errors.New(errors.ErrCodeSinkInitFailed, "sink or database is nil")
	}

	var nextID int
	if err := s.db.QueryRow("SELECT nextval('snapshot_id_seq')").Scan(&nextID); err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to get next snapshot id", err)
	}

	_, err := s.sq.
		Insert("equity_snapshots").
		Columns("id", "timestamp", "equity", "drawdown_pct").
		Values(nextID, snapshot.Time, snapshot.Equity, snapshot.DrawdownPct).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to insert equity snapshot", err)
	}

	return nil
}

// Trades returns all recorded trades ordered by entry time.
func (s *DuckDBSink) Trades() ([]types.Trade, error) {
	if s == nil || s.db == nil {
		return nil, errors.New(errors.ErrCodeSinkInitFailed, "sink or database is nil")
	}

	rows, err := s.sq.
		Select("id", "symbol", "side", "entry_time", "exit_time", "entry_price", "exit_price",
			"size", "leverage", "fee_paid", "realized_pnl", "exit_reason", "closed_ratio", "reason").
		From("trades").
		OrderBy("entry_time ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSinkQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var trade types.Trade

		var side, exitReason string

		if err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&side,
			&trade.EntryTime,
			&trade.ExitTime,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.Size,
			&trade.Leverage,
			&trade.FeePaid,
			&trade.RealizedPnL,
			&exitReason,
			&trade.ClosedRatio,
			&trade.Reason,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeSinkQueryFailed, "failed to scan trade", err)
		}

		trade.Side = types.Side(side)
		trade.ExitReason = types.ExitReason(exitReason)
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSinkQueryFailed, "error iterating trades", err)
	}

	return trades, nil
}

// Write exports the recorded artifacts as Parquet files in the given
// directory.
func (s *DuckDBSink) Write(path string) error {
	if s == nil || s.db == nil {
		return errors.New(errors.ErrCodeSinkInitFailed, "sink or database is nil")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to create results directory", err)
	}

	exports := map[string]string{
		"trades":           "trades.parquet",
		"risk_events":      "risk_events.parquet",
		"equity_snapshots": "equity.parquet",
	}

	for table, file := range exports {
		target := filepath.Join(path, file)

		_, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, target))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeSinkWriteFailed, err, "failed to export %s to Parquet", table)
		}
	}

	if s.logger != nil {
		s.logger.Debug("exported run artifacts",
			zap.String("path", path),
		)
	}

	return nil
}

// Cleanup drops and recreates the tables so the sink can be reused for the
// next run.
func (s *DuckDBSink) Cleanup() error {
	if s == nil || s.db == nil {
		return errors.New(errors.ErrCodeSinkInitFailed, "sink or database is nil")
	}

	_, err := s.db.Exec(`
		DROP TABLE IF EXISTS trades;
		DROP TABLE IF EXISTS risk_events;
		DROP TABLE IF EXISTS equity_snapshots;
		DROP SEQUENCE IF EXISTS event_id_seq;
		DROP SEQUENCE IF EXISTS snapshot_id_seq;
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to drop tables", err)
	}

	return s.initialize()
}

// Close closes the database connection.
func (s *DuckDBSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}
