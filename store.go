// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is written into the schema_version row on first open. A
// store whose on-disk version is newer than this binary understands is
// rejected with SchemaMismatch rather than read partially.
const schemaVersion = 1

// storeSubdir is the fixed relative path of the database file, placed
// beneath the directory one level above the master file's own directory.
const storeSubdir = "fo76dm/store.db"

// StorePathFor derives the snapshot database path from a master file
// path by ascending two directory levels and appending the fixed store
// subdirectory, so two independently located masters get independent
// databases.
func StorePathFor(esmPath string) string {
	dir := filepath.Dir(filepath.Dir(esmPath))
	return filepath.Join(dir, storeSubdir)
}

// Store is the content-addressed snapshot store: one SQLite database
// in WAL mode holding an append-only sequence of
// immutable snapshots.
type Store struct {
	db     *sql.DB
	logger *sugaredLogger
}

// OpenStore opens (creating if absent) the SQLite database at path in
// WAL mode and ensures the schema exists.
func OpenStore(path string, logger *sugaredLogger) (*Store, error) {
	if logger == nil {
		logger = newNopLogger()
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, newErr(KindStoreUnavailable, 0, 0, "open store", err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL,
	created_at TEXT NOT NULL,
	esm_sha256 TEXT NOT NULL,
	record_count INTEGER NOT NULL DEFAULT 0,
	string_count INTEGER NOT NULL DEFAULT 0,
	committed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS records (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	form_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	editor_id TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	data_hash TEXT NOT NULL,
	flags INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (snapshot_id, form_id)
);
CREATE INDEX IF NOT EXISTS idx_records_type ON records(snapshot_id, type);
CREATE INDEX IF NOT EXISTS idx_records_editor_id ON records(snapshot_id, editor_id);

CREATE TABLE IF NOT EXISTS decoded_fields (
	snapshot_id INTEGER NOT NULL,
	form_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind INTEGER NOT NULL,
	int_value INTEGER,
	float_value REAL,
	str_value TEXT,
	bool_value INTEGER,
	form_value INTEGER,
	blob_value BLOB,
	PRIMARY KEY (snapshot_id, form_id, name),
	FOREIGN KEY (snapshot_id, form_id) REFERENCES records(snapshot_id, form_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS strings (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	string_id INTEGER NOT NULL,
	lang TEXT NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, string_id, lang)
);

CREATE TABLE IF NOT EXISTS keywords (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	form_id INTEGER NOT NULL,
	keyword_form_id INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, form_id, keyword_form_id)
);

CREATE TABLE IF NOT EXISTS subrecords (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	form_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	tag TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (snapshot_id, form_id, seq)
);

CREATE TABLE IF NOT EXISTS diffs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	old_snapshot_id INTEGER NOT NULL,
	new_snapshot_id INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS diff_entries (
	diff_id INTEGER NOT NULL REFERENCES diffs(id) ON DELETE CASCADE,
	bucket TEXT NOT NULL,
	form_id INTEGER NOT NULL,
	field_name TEXT,
	old_value TEXT,
	new_value TEXT
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return newErr(KindStoreUnavailable, 0, 0, "create schema", err)
	}

	row := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	var version int
	switch err := row.Scan(&version); err {
	case sql.ErrNoRows:
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return newErr(KindStoreUnavailable, 0, 0, "write schema_version", err)
		}
	case nil:
		if version > schemaVersion {
			return newErr(KindSchemaMismatch, 0, 0,
				fmt.Sprintf("store schema version %d is newer than this binary's %d", version, schemaVersion), nil)
		}
	default:
		return newErr(KindStoreUnavailable, 0, 0, "read schema_version", err)
	}
	return nil
}

// Snapshot is one row of the Snapshot entity.
type Snapshot struct {
	ID          int64
	Label       string
	CreatedAt   time.Time
	ESMSHA256   string
	RecordCount int
	StringCount int
}

// beginSnapshotTx carries the in-progress transaction and its snapshot
// id between BeginSnapshot, InsertRecords and Commit. InsertRecords may be
// called any number of times, so a caller can insert the parsed records
// in batches rather than as one set of typed database rows.
type beginSnapshotTx struct {
	tx  *sql.Tx
	id  int64
	rc  int
	sc  int
}

// BeginSnapshot opens a transaction and inserts the snapshot's metadata
// row, returning a handle for InsertRecords/Commit.
func (s *Store) BeginSnapshot(label string, esmSHA256 [32]byte) (*beginSnapshotTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, newErr(KindStoreUnavailable, 0, 0, "begin snapshot transaction", err)
	}
	res, err := tx.Exec(
		`INSERT INTO snapshots (label, created_at, esm_sha256) VALUES (?, ?, ?)`,
		label, time.Now().UTC().Format(time.RFC3339Nano), hex.EncodeToString(esmSHA256[:]),
	)
	if err != nil {
		tx.Rollback()
		return nil, newErr(KindStoreUnavailable, 0, 0, "insert snapshot row", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, newErr(KindStoreUnavailable, 0, 0, "read snapshot id", err)
	}
	return &beginSnapshotTx{tx: tx, id: id}, nil
}

// InsertRecords bulk-inserts one batch of decoded records into the open
// snapshot transaction. Batch size is the caller's choice.
func (b *beginSnapshotTx) InsertRecords(batch []*Record) error {
	recStmt, err := b.tx.Prepare(`INSERT INTO records (snapshot_id, form_id, type, editor_id, full_name, data_hash, flags) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return newErr(KindStoreUnavailable, 0, 0, "prepare record insert", err)
	}
	defer recStmt.Close()

	fieldStmt, err := b.tx.Prepare(`INSERT INTO decoded_fields (snapshot_id, form_id, name, kind, int_value, float_value, str_value, bool_value, form_value, blob_value) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return newErr(KindStoreUnavailable, 0, 0, "prepare field insert", err)
	}
	defer fieldStmt.Close()

	for _, rec := range batch {
		_, err := recStmt.Exec(b.id, int64(uint32(rec.FormID)), rec.Type, rec.EditorID, rec.FullName, rec.DataHashHex(true), rec.Flags)
		if err != nil {
			return newErr(KindStoreUnavailable, 0, uint32(rec.FormID), "insert record", err)
		}
		for name, f := range rec.Fields {
			if err := insertField(fieldStmt, b.id, uint32(rec.FormID), name, f); err != nil {
				return err
			}
		}
		b.rc++
	}
	return nil
}

func insertField(stmt *sql.Stmt, snapshotID int64, formID uint32, name string, f Field) error {
	var intVal, formVal sql.NullInt64
	var floatVal sql.NullFloat64
	var strVal sql.NullString
	var boolVal sql.NullInt64
	var blobVal []byte

	switch f.Kind {
	case KindInt:
		intVal = sql.NullInt64{Int64: f.Int, Valid: true}
	case KindFloat:
		floatVal = sql.NullFloat64{Float64: f.Float, Valid: true}
	case KindString:
		strVal = sql.NullString{String: f.Str, Valid: true}
	case KindBool:
		v := int64(0)
		if f.Bool {
			v = 1
		}
		boolVal = sql.NullInt64{Int64: v, Valid: true}
	case KindFormRef:
		formVal = sql.NullInt64{Int64: int64(f.Form), Valid: true}
	case KindBlob:
		blobVal = f.Blob
	}

	_, err := stmt.Exec(snapshotID, int64(formID), name, int(f.Kind), intVal, floatVal, strVal, boolVal, formVal, blobVal)
	if err != nil {
		return newErr(KindStoreUnavailable, 0, formID, "insert decoded field "+name, err)
	}
	return nil
}

// InsertStrings persists the resolved string table alongside the
// snapshot, so a later query or diff can resolve ids without re-reading
// the BA2.
func (b *beginSnapshotTx) InsertStrings(lang string, st *StringTable) error {
	if st == nil {
		return nil
	}
	stmt, err := b.tx.Prepare(`INSERT INTO strings (snapshot_id, string_id, lang, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return newErr(KindStoreUnavailable, 0, 0, "prepare string insert", err)
	}
	defer stmt.Close()
	for id, text := range st.text {
		if _, err := stmt.Exec(b.id, int64(id), lang, text); err != nil {
			return newErr(KindStoreUnavailable, 0, 0, "insert string", err)
		}
		b.sc++
	}
	return nil
}

// Commit finalizes the snapshot: updates its record/string counts,
// marks it committed, and commits the transaction. Callers must call
// either Commit or Rollback exactly once.
func (b *beginSnapshotTx) Commit() (int64, error) {
	if _, err := b.tx.Exec(`UPDATE snapshots SET record_count = ?, string_count = ?, committed = 1 WHERE id = ?`, b.rc, b.sc, b.id); err != nil {
		b.tx.Rollback()
		return 0, newErr(KindStoreUnavailable, 0, 0, "finalize snapshot", err)
	}
	if err := b.tx.Commit(); err != nil {
		return 0, newErr(KindStoreUnavailable, 0, 0, "commit snapshot transaction", err)
	}
	return b.id, nil
}

// Rollback discards the in-progress snapshot, used on parse failure or
// context cancellation
func (b *beginSnapshotTx) Rollback() error { return b.tx.Rollback() }

// ListSnapshots returns every committed snapshot, newest first.
func (s *Store) ListSnapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(`SELECT id, label, created_at, esm_sha256, record_count, string_count FROM snapshots WHERE committed = 1 ORDER BY id DESC`)
	if err != nil {
		return nil, newErr(KindStoreUnavailable, 0, 0, "list snapshots", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var createdAt string
		if err := rows.Scan(&snap.ID, &snap.Label, &createdAt, &snap.ESMSHA256, &snap.RecordCount, &snap.StringCount); err != nil {
			return nil, newErr(KindStoreUnavailable, 0, 0, "scan snapshot row", err)
		}
		snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// StoredRecord is one row from records, the shape LoadRecords returns.
type StoredRecord struct {
	FormID   FormID
	Type     string
	EditorID string
	FullName string
	DataHash string
	Flags    uint32
}

// LoadRecords returns every record in snapshotID, optionally filtered
// to one record type.
func (s *Store) LoadRecords(snapshotID int64, typeFilter string) ([]StoredRecord, error) {
	query := `SELECT form_id, type, editor_id, full_name, data_hash, flags FROM records WHERE snapshot_id = ?`
	args := []interface{}{snapshotID}
	if typeFilter != "" {
		query += ` AND type = ?`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY form_id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, newErr(KindStoreUnavailable, 0, 0, "load records", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var r StoredRecord
		var formID int64
		if err := rows.Scan(&formID, &r.Type, &r.EditorID, &r.FullName, &r.DataHash, &r.Flags); err != nil {
			return nil, newErr(KindStoreUnavailable, 0, 0, "scan record row", err)
		}
		r.FormID = FormID(uint32(formID))
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadFields returns the decoded field table for one record in one
// snapshot.
func (s *Store) LoadFields(snapshotID int64, formID FormID) (map[string]Field, error) {
	rows, err := s.db.Query(`SELECT name, kind, int_value, float_value, str_value, bool_value, form_value, blob_value FROM decoded_fields WHERE snapshot_id = ? AND form_id = ?`, snapshotID, int64(uint32(formID)))
	if err != nil {
		return nil, newErr(KindStoreUnavailable, 0, uint32(formID), "load fields", err)
	}
	defer rows.Close()

	out := map[string]Field{}
	for rows.Next() {
		var name string
		var kind int
		var intVal, formVal, boolVal sql.NullInt64
		var floatVal sql.NullFloat64
		var strVal sql.NullString
		var blobVal []byte
		if err := rows.Scan(&name, &kind, &intVal, &floatVal, &strVal, &boolVal, &formVal, &blobVal); err != nil {
			return nil, newErr(KindStoreUnavailable, 0, uint32(formID), "scan field row", err)
		}
		out[name] = fieldFromRow(name, FieldKind(kind), intVal, floatVal, strVal, boolVal, formVal, blobVal)
	}
	return out, rows.Err()
}

func fieldFromRow(name string, kind FieldKind, intVal sql.NullInt64, floatVal sql.NullFloat64, strVal sql.NullString, boolVal, formVal sql.NullInt64, blobVal []byte) Field {
	switch kind {
	case KindInt:
		return IntField(name, intVal.Int64)
	case KindFloat:
		return Field{Name: name, Kind: KindFloat, Float: floatVal.Float64}
	case KindString:
		return StringField(name, strVal.String)
	case KindBool:
		return BoolField(name, boolVal.Int64 != 0)
	case KindFormRef:
		return FormRefField(name, uint32(formVal.Int64))
	case KindBlob:
		return BlobField(name, blobVal)
	default:
		return Field{Name: name, Kind: kind}
	}
}

// Purge deletes all but the keepN most recent committed snapshots,
// cascading to their records/fields/strings/keywords rows.
func (s *Store) Purge(keepN int) error {
	rows, err := s.db.Query(`SELECT id FROM snapshots WHERE committed = 1 ORDER BY id DESC`)
	if err != nil {
		return newErr(KindStoreUnavailable, 0, 0, "purge: list snapshots", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return newErr(KindStoreUnavailable, 0, 0, "purge: scan snapshot id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return newErr(KindStoreUnavailable, 0, 0, "purge: iterate snapshots", err)
	}

	if keepN >= len(ids) {
		return nil
	}
	for _, id := range ids[keepN:] {
		if _, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
			return newErr(KindStoreUnavailable, 0, 0, "purge snapshot", err)
		}
	}
	return nil
}

// ClearAll removes every snapshot and its rows, leaving an empty but
// still-initialized schema.
func (s *Store) ClearAll() error {
	tables := []string{"diff_entries", "diffs", "keywords", "subrecords", "decoded_fields", "strings", "records", "snapshots"}
	for _, t := range tables {
		if _, err := s.db.Exec(`DELETE FROM ` + t); err != nil {
			return newErr(KindStoreUnavailable, 0, 0, "clear "+t, err)
		}
	}
	return nil
}
