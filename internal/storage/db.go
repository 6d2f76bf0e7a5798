package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"reviewdash/internal"
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
CREATE TABLE IF NOT EXISTS imports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sourceType TEXT NOT NULL,
  sourceName TEXT NOT NULL,
  hash TEXT NOT NULL UNIQUE,
  rawRef TEXT NOT NULL,
  totalRows INTEGER NOT NULL DEFAULT 0,
  keptRows INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'imported',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_imports_status ON imports(status);

CREATE TABLE IF NOT EXISTS review_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  importId INTEGER NOT NULL,
  rowNo INTEGER NOT NULL,
  gmtCreate TEXT NOT NULL,
  taskId TEXT NOT NULL,
  projectName TEXT NOT NULL,
  algorithmName TEXT NOT NULL,
  imageLink TEXT NOT NULL,
  imageThumbnail TEXT NOT NULL,
  detectionResult TEXT NOT NULL,
  description TEXT NOT NULL,
  storeCode TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(importId, rowNo),
  FOREIGN KEY(importId) REFERENCES imports(id)
);
CREATE INDEX IF NOT EXISTS idx_review_rows_taskId ON review_rows(taskId);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  importId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(importId) REFERENCES imports(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

const importColumns = `id, sourceType, sourceName, hash, rawRef, totalRows, keptRows, status, createdAt`

func scanImport(scan func(dest ...any) error) (internal.ImportRow, error) {
	var row internal.ImportRow
	err := scan(&row.ID, &row.SourceType, &row.SourceName, &row.Hash, &row.RawRef, &row.TotalRows, &row.KeptRows, &row.Status, &row.CreatedAt)
	return row, err
}

// CreateImport records an import together with its transformed rows in one
// transaction, so a failed row insert leaves no import behind.
func (d *DB) CreateImport(sourceType, sourceName, hash, rawRef string, totalRows int, rows []internal.OutputRecord) (internal.ImportRow, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return internal.ImportRow{}, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`
INSERT INTO imports (sourceType, sourceName, hash, rawRef) VALUES (?, ?, ?, ?)
`, sourceType, sourceName, hash, rawRef)
	if err != nil {
		return internal.ImportRow{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return internal.ImportRow{}, err
	}
	if err := writeReviewRows(tx, int(id), totalRows, rows); err != nil {
		return internal.ImportRow{}, err
	}
	if err := tx.Commit(); err != nil {
		return internal.ImportRow{}, err
	}

	row, err := d.GetImportByID(int(id))
	if err != nil {
		return internal.ImportRow{}, err
	}
	if row == nil {
		return internal.ImportRow{}, errors.New("failed to create import")
	}
	return *row, nil
}

func (d *DB) GetImportByHash(hash string) (*internal.ImportRow, error) {
	row, err := scanImport(d.conn.QueryRow(`SELECT `+importColumns+` FROM imports WHERE hash = ?`, hash).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetImportByID(id int) (*internal.ImportRow, error) {
	row, err := scanImport(d.conn.QueryRow(`SELECT `+importColumns+` FROM imports WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustImportByID(id int) (internal.ImportRow, error) {
	row, err := d.GetImportByID(id)
	if err != nil {
		return internal.ImportRow{}, err
	}
	if row == nil {
		return internal.ImportRow{}, fmt.Errorf("import not found: id=%d", id)
	}
	return *row, nil
}

func (d *DB) ListImportsByStatus(status string, limit int) ([]internal.ImportRow, error) {
	rows, err := d.conn.Query(`
SELECT `+importColumns+` FROM imports WHERE status = ? ORDER BY id ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ImportRow
	for rows.Next() {
		row, err := scanImport(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateImportStatus(importID int, status string) error {
	_, err := d.conn.Exec(`UPDATE imports SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, importID)
	return err
}

// ReplaceReviewRows stores rows for an existing import in order, replacing
// any rows stored earlier.
func (d *DB) ReplaceReviewRows(importID int, totalRows int, rows []internal.OutputRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM review_rows WHERE importId = ?`, importID); err != nil {
		return err
	}
	if err := writeReviewRows(tx, importID, totalRows, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func writeReviewRows(tx *sql.Tx, importID int, totalRows int, rows []internal.OutputRecord) error {
	stmt, err := tx.Prepare(`
INSERT INTO review_rows (
  importId, rowNo, gmtCreate, taskId, projectName, algorithmName,
  imageLink, imageThumbnail, detectionResult, description, storeCode
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.Exec(
			importID, i+1, r.GmtCreate, r.TaskID, r.ProjectName, r.AlgorithmName,
			r.ImageLink, r.ImageThumbnail, r.DetectionResult, r.Description, r.StoreCode,
		); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
UPDATE imports SET totalRows = ?, keptRows = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?
`, totalRows, len(rows), importID)
	return err
}

func (d *DB) GetReviewRows(importID int) ([]internal.OutputRecord, error) {
	rows, err := d.conn.Query(`
SELECT gmtCreate, taskId, projectName, algorithmName, imageLink,
       imageThumbnail, detectionResult, description, storeCode
FROM review_rows WHERE importId = ? ORDER BY rowNo ASC
`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.OutputRecord
	for rows.Next() {
		var r internal.OutputRecord
		if err := rows.Scan(
			&r.GmtCreate, &r.TaskID, &r.ProjectName, &r.AlgorithmName, &r.ImageLink,
			&r.ImageThumbnail, &r.DetectionResult, &r.Description, &r.StoreCode,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, importID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, importId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, importID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns(importID int) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs WHERE importId = ?`, importID).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
