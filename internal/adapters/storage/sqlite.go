package storage

// sqlite.go — persistencia del agente.
//
// Estrategia:
//   - `labels`: salida del labeling offline, una fila por evento retenido.
//     Se reemplaza por símbolo en cada corrida (el labeling es idempotente
//     sobre la misma historia).
//   - `decisions`: una fila por evaluación del entry gate. Solo reporting.
//   - `fills`: log cronológico de ejecuciones, en orden de llegada.
//   - `eod_reports`: un reporte por día, PRIMARY KEY sobre el día — el
//     INSERT OR IGNORE es el guard de idempotencia de la reconciliación.
//   - Prune automático al arrancar: decisions > 30d, fills > 90d.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Etiquetas triple-barrier del labeling offline
CREATE TABLE IF NOT EXISTS labels (
    symbol      TEXT     NOT NULL,
    entry_time  DATETIME NOT NULL,
    entry_price REAL     NOT NULL,
    label       INTEGER  NOT NULL,
    ret         REAL     NOT NULL,
    exit_time   DATETIME NOT NULL,
    exit_kind   TEXT     NOT NULL,
    PRIMARY KEY (symbol, entry_time)
);

-- Una fila por evaluación del entry gate
CREATE TABLE IF NOT EXISTS decisions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    decided_at  DATETIME NOT NULL,
    symbol      TEXT     NOT NULL,
    stage       TEXT     NOT NULL,
    admitted    INTEGER  NOT NULL DEFAULT 0,
    probability REAL     NOT NULL DEFAULT 0,
    price       REAL     NOT NULL DEFAULT 0
);

-- Log cronológico de ejecuciones
CREATE TABLE IF NOT EXISTS fills (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    filled_at DATETIME NOT NULL,
    symbol    TEXT     NOT NULL,
    side      TEXT     NOT NULL,
    quantity  REAL     NOT NULL,
    price     REAL     NOT NULL,
    order_id  TEXT
);

-- Un reporte de fin de día por día — nunca se reescribe
CREATE TABLE IF NOT EXISTS eod_reports (
    day            TEXT PRIMARY KEY,
    created_at     DATETIME NOT NULL,
    equity         REAL     NOT NULL,
    total_realized REAL     NOT NULL,
    detail         TEXT     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_labels_symbol   ON labels(symbol);
CREATE INDEX IF NOT EXISTS idx_decisions_at    ON decisions(decided_at DESC);
CREATE INDEX IF NOT EXISTS idx_fills_at        ON fills(filled_at);
`

const (
	retentionDecisions = 30 * 24 * time.Hour
	retentionFills     = 90 * 24 * time.Hour
)

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveLabels reemplaza las etiquetas de un símbolo con la corrida nueva.
func (s *SQLiteStorage) SaveLabels(ctx context.Context, symbol string, outcomes []domain.BarrierOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveLabels: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("storage.SaveLabels: clear %s: %w", symbol, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO labels (symbol, entry_time, entry_price, label, ret, exit_time, exit_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveLabels: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx,
			symbol, o.EntryTime.UTC(), o.EntryPrice, o.Label, o.Return,
			o.ExitTime.UTC(), string(o.ExitKind),
		); err != nil {
			return fmt.Errorf("storage.SaveLabels: insert %s@%s: %w", symbol, o.EntryTime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveLabels: commit: %w", err)
	}
	return nil
}

// CountLabels devuelve filas y wins por símbolo — para el resumen del labeling.
func (s *SQLiteStorage) CountLabels(ctx context.Context, symbol string) (total, wins int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(label), 0) FROM labels WHERE symbol = ?`, symbol)
	if err := row.Scan(&total, &wins); err != nil {
		return 0, 0, fmt.Errorf("storage.CountLabels: %w", err)
	}
	return total, wins, nil
}

// SaveDecision registra una evaluación del entry gate.
func (s *SQLiteStorage) SaveDecision(ctx context.Context, d domain.Decision) error {
	admitted := 0
	if d.Admitted {
		admitted = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (decided_at, symbol, stage, admitted, probability, price)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.Time.UTC(), d.Symbol, d.Stage, admitted, d.Probability, d.Price); err != nil {
		return fmt.Errorf("storage.SaveDecision: %w", err)
	}
	return nil
}

// SaveFill registra una ejecución en orden de llegada.
func (s *SQLiteStorage) SaveFill(ctx context.Context, f domain.Fill) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO fills (filled_at, symbol, side, quantity, price, order_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.Time.UTC(), f.Symbol, string(f.Side), f.Quantity, f.Price, f.OrderID); err != nil {
		return fmt.Errorf("storage.SaveFill: %w", err)
	}
	return nil
}

// SaveDayReport persiste el reporte una sola vez por día. Devuelve false si
// ya existía — la reconciliación puede invocarse dos veces (breaker +
// shutdown) pero escribe una.
func (s *SQLiteStorage) SaveDayReport(ctx context.Context, rep domain.DayReport) (bool, error) {
	detail, err := json.Marshal(struct {
		Symbols    []domain.SymbolPnL `json:"symbols"`
		Executions []domain.Fill      `json:"executions"`
	}{rep.Symbols, rep.Executions})
	if err != nil {
		return false, fmt.Errorf("storage.SaveDayReport: marshal: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO eod_reports (day, created_at, equity, total_realized, detail)
		VALUES (?, ?, ?, ?, ?)
	`, rep.Day, time.Now().UTC(), rep.AccountEquity, rep.TotalRealized, string(detail))
	if err != nil {
		return false, fmt.Errorf("storage.SaveDayReport: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.SaveDayReport: rows affected: %w", err)
	}
	return n > 0, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoffDecisions := time.Now().UTC().Add(-retentionDecisions)
	cutoffFills := time.Now().UTC().Add(-retentionFills)
	s.db.ExecContext(ctx, `DELETE FROM decisions WHERE decided_at < ?`, cutoffDecisions)
	s.db.ExecContext(ctx, `DELETE FROM fills WHERE filled_at < ?`, cutoffFills)
}
