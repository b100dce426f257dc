// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import (
	"path"
	"strconv"
	"strings"
)

// Query is the read-only lookup surface described here, used by
// external collaborators (rendering, search, the unreleased-content
// scan) — it never mutates the store.
type Query struct {
	store      *Store
	snapshotID int64
}

// NewQuery binds a read-only query surface to one committed snapshot.
func NewQuery(store *Store, snapshotID int64) *Query {
	return &Query{store: store, snapshotID: snapshotID}
}

// ParseFormID accepts either a "0x"-prefixed hex string or a decimal
// string, per its FormID lookup rule.
func ParseFormID(s string) (FormID, bool) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, false
	}
	return FormID(v), true
}

// Find returns every record matching patternOrFormID, optionally
// restricted to typeFilter. patternOrFormID is tried first as a
// FormID, then as a glob (containing '*' or '?'), then as a
// case-insensitive editor-id/full-name substring.
func (q *Query) Find(patternOrFormID string, typeFilter string) ([]StoredRecord, error) {
	if id, ok := ParseFormID(patternOrFormID); ok {
		rec, err := q.Get(id)
		if err != nil {
			if errIsKind(err, KindEntryNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []StoredRecord{*rec}, nil
	}

	all, err := q.store.LoadRecords(q.snapshotID, typeFilter)
	if err != nil {
		return nil, err
	}

	isGlob := strings.ContainsAny(patternOrFormID, "*?")
	needle := strings.ToLower(patternOrFormID)

	var out []StoredRecord
	for _, r := range all {
		if isGlob {
			if ok, _ := path.Match(patternOrFormID, r.EditorID); ok {
				out = append(out, r)
			}
			continue
		}
		if strings.Contains(strings.ToLower(r.EditorID), needle) || strings.Contains(strings.ToLower(r.FullName), needle) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns one record by FormID, with its decoded fields loaded
// separately via LoadFields (kept apart so a caller that only needs the
// header doesn't pay for the field table).
func (q *Query) Get(formID FormID) (*StoredRecord, error) {
	records, err := q.store.LoadRecords(q.snapshotID, "")
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].FormID == formID {
			return &records[i], nil
		}
	}
	return nil, newErr(KindEntryNotFound, 0, uint32(formID), "record not found in snapshot", nil)
}

// GetFields loads the decoded field table for one FormID.
func (q *Query) GetFields(formID FormID) (map[string]Field, error) {
	return q.store.LoadFields(q.snapshotID, formID)
}

// Iter returns every record of the given type, in FormID order.
func (q *Query) Iter(recordType string) ([]StoredRecord, error) {
	return q.store.LoadRecords(q.snapshotID, recordType)
}

// StringEntry is one localized string matched by StringsSearch.
type StringEntry struct {
	ID   uint32
	Lang string
	Text string
}

// StringsSearch returns every persisted localized string whose text
// contains substr, case-insensitively.
func (q *Query) StringsSearch(substr string) ([]StringEntry, error) {
	rows, err := q.store.db.Query(`SELECT string_id, lang, text FROM strings WHERE snapshot_id = ? AND text LIKE ? ESCAPE '\' COLLATE NOCASE`,
		q.snapshotID, "%"+escapeLike(substr)+"%")
	if err != nil {
		return nil, newErr(KindStoreUnavailable, 0, 0, "strings search", err)
	}
	defer rows.Close()

	var out []StringEntry
	for rows.Next() {
		var e StringEntry
		var id int64
		if err := rows.Scan(&id, &e.Lang, &e.Text); err != nil {
			return nil, newErr(KindStoreUnavailable, 0, 0, "scan string row", err)
		}
		e.ID = uint32(id)
		out = append(out, e)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func errIsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
