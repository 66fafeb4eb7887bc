package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"TradeSentinel/internal/model"
)

// SQLiteStore persists the ledger and market rows to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL mode so the status reader does not block the cycle writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log.With().Str("component", "sqlite").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS balances (
			currency TEXT PRIMARY KEY,
			amount   REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS positions (
			symbol      TEXT PRIMARY KEY,
			volume      REAL NOT NULL,
			entry_price REAL NOT NULL,
			entry_time  TEXT NOT NULL,
			high_price  REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS trade_history (
			seq             INTEGER PRIMARY KEY,
			id              TEXT NOT NULL,
			timestamp       TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			type            TEXT NOT NULL,
			price           REAL,
			quantity        REAL,
			value           REAL,
			balance_after   REAL,
			entry_price     REAL,
			profit_loss     REAL,
			profit_loss_pct REAL,
			reason          TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS portfolio_history (
			seq       INTEGER PRIMARY KEY,
			timestamp TEXT NOT NULL,
			balance   REAL,
			equity    REAL
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS market_data (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			symbol     TEXT NOT NULL,
			close      REAL,
			volume     REAL,
			rsi        REAL,
			macd       REAL,
			regime     TEXT,
			action     TEXT,
			confidence REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_ts ON market_data(timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// SaveState rewrites the ledger tables in one transaction.
func (s *SQLiteStore) SaveState(state *model.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"balances", "positions", "trade_history", "portfolio_history", "ledger_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for currency, amount := range state.Balances {
		if _, err := tx.Exec(`INSERT INTO balances (currency, amount) VALUES (?,?)`, currency, amount); err != nil {
			return fmt.Errorf("insert balance %s: %w", currency, err)
		}
	}

	for _, p := range state.Positions {
		if _, err := tx.Exec(`INSERT INTO positions
			(symbol, volume, entry_price, entry_time, high_price) VALUES (?,?,?,?,?)`,
			p.Symbol, p.Volume, p.EntryPrice, encodeTime(p.EntryTime), p.HighPrice,
		); err != nil {
			return fmt.Errorf("insert position %s: %w", p.Symbol, err)
		}
	}

	for i, t := range state.Trades {
		if _, err := tx.Exec(`INSERT INTO trade_history
			(seq, id, timestamp, symbol, type, price, quantity, value, balance_after,
			 entry_price, profit_loss, profit_loss_pct, reason)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			i, t.ID, encodeTime(t.Time), t.Symbol, string(t.Side), t.Price, t.Quantity, t.Value,
			t.BalanceAfter, t.EntryPrice, t.PnL, t.PnLPct, string(t.Reason),
		); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}

	for i, p := range state.Portfolio {
		if _, err := tx.Exec(`INSERT INTO portfolio_history (seq, timestamp, balance, equity) VALUES (?,?,?,?)`,
			i, encodeTime(p.Time), p.Balance, p.Equity,
		); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO ledger_meta (key, value) VALUES ('updated_at', ?)`,
		encodeTime(state.UpdatedAt)); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadState reads the ledger back, keeping the most recent trades and
// snapshots up to the retention caps. An empty database yields a nil state.
func (s *SQLiteStore) LoadState() (*model.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := model.NewLedgerState()

	var updated interface{}
	err := s.db.QueryRow(`SELECT value FROM ledger_meta WHERE key = 'updated_at'`).Scan(&updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	if state.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}

	if err := s.loadBalances(state); err != nil {
		return nil, err
	}
	if err := s.loadPositions(state); err != nil {
		return nil, err
	}
	if err := s.loadTrades(state); err != nil {
		return nil, err
	}
	if err := s.loadPortfolio(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *SQLiteStore) loadBalances(state *model.LedgerState) error {
	rows, err := s.db.Query(`SELECT currency, amount FROM balances`)
	if err != nil {
		return fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var currency string
		var amount float64
		if err := rows.Scan(&currency, &amount); err != nil {
			return fmt.Errorf("scan balance: %w", err)
		}
		state.Balances[currency] = amount
	}
	return rows.Err()
}

func (s *SQLiteStore) loadPositions(state *model.LedgerState) error {
	rows, err := s.db.Query(`SELECT symbol, volume, entry_price, entry_time, high_price FROM positions`)
	if err != nil {
		return fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Position
		var entry interface{}
		if err := rows.Scan(&p.Symbol, &p.Volume, &p.EntryPrice, &entry, &p.HighPrice); err != nil {
			return fmt.Errorf("scan position: %w", err)
		}
		if p.EntryTime, err = decodeTime(entry); err != nil {
			return fmt.Errorf("position %s entry time: %w", p.Symbol, err)
		}
		state.Positions[p.Symbol] = p
	}
	return rows.Err()
}

func (s *SQLiteStore) loadTrades(state *model.LedgerState) error {
	rows, err := s.db.Query(`SELECT id, timestamp, symbol, type, price, quantity, value, balance_after,
			entry_price, profit_loss, profit_loss_pct, reason
		FROM (SELECT * FROM trade_history ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`, TradeRetention)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Trade
		var ts interface{}
		var side, reason string
		if err := rows.Scan(&t.ID, &ts, &t.Symbol, &side, &t.Price, &t.Quantity, &t.Value,
			&t.BalanceAfter, &t.EntryPrice, &t.PnL, &t.PnLPct, &reason); err != nil {
			return fmt.Errorf("scan trade: %w", err)
		}
		if t.Time, err = decodeTime(ts); err != nil {
			return fmt.Errorf("trade %s time: %w", t.ID, err)
		}
		t.Side = model.Side(side)
		t.Reason = model.ExitReason(reason)
		state.Trades = append(state.Trades, t)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadPortfolio(state *model.LedgerState) error {
	rows, err := s.db.Query(`SELECT timestamp, balance, equity
		FROM (SELECT * FROM portfolio_history ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`, PortfolioRetention)
	if err != nil {
		return fmt.Errorf("query portfolio: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p model.PortfolioSnapshot
		var ts interface{}
		if err := rows.Scan(&ts, &p.Balance, &p.Equity); err != nil {
			return fmt.Errorf("scan snapshot: %w", err)
		}
		if p.Time, err = decodeTime(ts); err != nil {
			return fmt.Errorf("snapshot time: %w", err)
		}
		state.Portfolio = append(state.Portfolio, p)
	}
	return rows.Err()
}

// encodeTime keeps the zone offset so a reload matches what was saved.
func encodeTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// decodeTime also accepts the unix nanosecond integers of older databases.
func decodeTime(v interface{}) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case int64:
		return time.Unix(0, x), nil
	case string:
		return time.Parse(time.RFC3339Nano, x)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(x))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

func (s *SQLiteStore) RecordMarket(row MarketRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO market_data
		(timestamp, symbol, close, volume, rsi, macd, regime, action, confidence)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		row.Time.Unix(), row.Symbol, row.Close, row.Volume, row.RSI, row.MACD,
		string(row.Regime), string(row.Action), row.Confidence,
	)
	return err
}

// PruneMarket deletes market rows older than before and reports how many went.
func (s *SQLiteStore) PruneMarket(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM market_data WHERE timestamp < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune market data: %w", err)
	}
	return res.RowsAffected()
}

// CountMarket returns the number of stored market rows.
func (s *SQLiteStore) CountMarket() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM market_data`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}
