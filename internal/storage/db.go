package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"outbound/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  threads INTEGER NOT NULL,
  items INTEGER NOT NULL,
  products INTEGER NOT NULL,
  passed INTEGER NOT NULL,
  reportJson TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS line_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId INTEGER NOT NULL,
  brand TEXT NOT NULL,
  productCode TEXT NOT NULL,
  canonicalName TEXT NOT NULL,
  rawName TEXT NOT NULL,
  quantity REAL NOT NULL,
  confidence REAL NOT NULL,
  source TEXT NOT NULL,
  sourceRef TEXT,
  memo TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_line_items_run ON line_items(runId);

CREATE TABLE IF NOT EXISTS aggregates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId INTEGER NOT NULL,
  brand TEXT NOT NULL,
  productCode TEXT NOT NULL,
  canonicalName TEXT NOT NULL,
  totalQuantity INTEGER NOT NULL,
  confidence REAL NOT NULL,
  sourceCount INTEGER NOT NULL,
  sourcesJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(runId, brand, productCode),
  FOREIGN KEY(runId) REFERENCES runs(id)
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// InsertRun records one batch run with its validation report and timings.
func (d *DB) InsertRun(traceID string, threads, items int, report internal.ValidationReport, timings map[string]float64) (int64, error) {
	reportJSON, _ := json.Marshal(report)
	timingsJSON, _ := json.Marshal(timings)

	passed := 0
	if report.Passed {
		passed = 1
	}

	res, err := d.conn.Exec(`
INSERT INTO runs (traceId, threads, items, products, passed, reportJson, timingsJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, traceID, threads, items, report.TotalProducts, passed, string(reportJSON), string(timingsJSON))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) InsertLineItems(runID int64, items []internal.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO line_items (runId, brand, productCode, canonicalName, rawName, quantity, confidence, source, sourceRef, memo)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.Exec(
			runID, item.Brand, item.ProductCode, item.CanonicalName, item.RawProductName,
			item.Quantity, item.Confidence, string(item.Source), item.SourceRef, item.Memo,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) InsertAggregates(runID int64, products []internal.AggregatedProduct) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO aggregates (runId, brand, productCode, canonicalName, totalQuantity, confidence, sourceCount, sourcesJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, product := range products {
		sourcesJSON, _ := json.Marshal(product.Sources)
		if _, err := stmt.Exec(
			runID, product.Brand, product.ProductCode, product.CanonicalName,
			product.TotalQuantity, product.Confidence, product.SourceCount, string(sourcesJSON),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, threads, items, products, passed, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		var passed int
		if err := rows.Scan(&row.ID, &row.TraceID, &row.Threads, &row.Items, &row.Products, &passed, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.Passed = passed == 1
		out = append(out, row)
	}
	return out, rows.Err()
}

// RunReport loads the stored validation report for one run.
func (d *DB) RunReport(runID int64) (internal.ValidationReport, error) {
	var blob string
	err := d.conn.QueryRow(`SELECT reportJson FROM runs WHERE id = ?`, runID).Scan(&blob)
	if err != nil {
		return internal.ValidationReport{}, err
	}
	var report internal.ValidationReport
	if err := json.Unmarshal([]byte(blob), &report); err != nil {
		return internal.ValidationReport{}, fmt.Errorf("parse stored report: %w", err)
	}
	return report, nil
}
