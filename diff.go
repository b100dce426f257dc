// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import "sort"

// FieldChange is one field-level delta inside a ModifiedRecord: either
// field is the zero Field when the name is only present on the other
// side (an added or removed field rather than a changed one).
type FieldChange struct {
	Name     string
	Old, New Field
	OldSet   bool
	NewSet   bool
}

// ModifiedRecord is one FormID present in both snapshots with a
// differing data_hash, plus the field-level delta that explains why.
type ModifiedRecord struct {
	FormID   FormID
	Type     string
	EditorID string
	Fields   []FieldChange
}

// Diff is the structured output of Compare: two FormID sets plus the
// field deltas for records present on both sides but changed, each
// bucket sorted by FormID ascending
type Diff struct {
	Added    []StoredRecord
	Removed  []StoredRecord
	Modified []ModifiedRecord

	// Empty reports a pre-hash short-circuit: the two snapshots share
	// esm_sha256 and were never compared record-by-record.
	Empty bool
}

// Compare computes the diff between snapshotOld in storeOld and
// snapshotNew in storeNew, optionally restricted to one record type.
// storeOld and storeNew may be the same *Store (same database file) or
// two independent ones, per its cross-database requirement.
func Compare(storeOld *Store, snapshotOld int64, storeNew *Store, snapshotNew int64, typeFilter string) (*Diff, error) {
	oldMeta, err := snapshotByID(storeOld, snapshotOld)
	if err != nil {
		return nil, err
	}
	newMeta, err := snapshotByID(storeNew, snapshotNew)
	if err != nil {
		return nil, err
	}

	if oldMeta.ESMSHA256 == newMeta.ESMSHA256 {
		return &Diff{Empty: true}, nil
	}

	oldRecords, err := storeOld.LoadRecords(snapshotOld, typeFilter)
	if err != nil {
		return nil, err
	}
	newRecords, err := storeNew.LoadRecords(snapshotNew, typeFilter)
	if err != nil {
		return nil, err
	}

	oldByID := make(map[FormID]StoredRecord, len(oldRecords))
	for _, r := range oldRecords {
		oldByID[r.FormID] = r
	}
	newByID := make(map[FormID]StoredRecord, len(newRecords))
	for _, r := range newRecords {
		newByID[r.FormID] = r
	}

	d := &Diff{}
	for id, r := range newByID {
		if _, ok := oldByID[id]; !ok {
			d.Added = append(d.Added, r)
		}
	}
	for id, r := range oldByID {
		if _, ok := newByID[id]; !ok {
			d.Removed = append(d.Removed, r)
		}
	}

	for id, oldRec := range oldByID {
		newRec, ok := newByID[id]
		if !ok {
			continue
		}
		if oldRec.DataHash == newRec.DataHash {
			continue
		}
		oldFields, err := storeOld.LoadFields(snapshotOld, id)
		if err != nil {
			return nil, err
		}
		newFields, err := storeNew.LoadFields(snapshotNew, id)
		if err != nil {
			return nil, err
		}
		changes := diffFields(oldFields, newFields)
		if len(changes) == 0 {
			continue
		}
		d.Modified = append(d.Modified, ModifiedRecord{
			FormID:   id,
			Type:     newRec.Type,
			EditorID: newRec.EditorID,
			Fields:   changes,
		})
	}

	sortByFormID(d)
	return d, nil
}

func diffFields(oldFields, newFields map[string]Field) []FieldChange {
	var out []FieldChange
	names := make(map[string]bool, len(oldFields)+len(newFields))
	for n := range oldFields {
		names[n] = true
	}
	for n := range newFields {
		names[n] = true
	}
	for name := range names {
		oldF, oldOK := oldFields[name]
		newF, newOK := newFields[name]
		switch {
		case oldOK && !newOK:
			out = append(out, FieldChange{Name: name, Old: oldF, OldSet: true})
		case !oldOK && newOK:
			out = append(out, FieldChange{Name: name, New: newF, NewSet: true})
		case oldOK && newOK && !oldF.Equal(newF):
			out = append(out, FieldChange{Name: name, Old: oldF, New: newF, OldSet: true, NewSet: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortByFormID(d *Diff) {
	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i].FormID < d.Added[j].FormID })
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i].FormID < d.Removed[j].FormID })
	sort.Slice(d.Modified, func(i, j int) bool { return d.Modified[i].FormID < d.Modified[j].FormID })
}

func snapshotByID(s *Store, id int64) (*Snapshot, error) {
	snaps, err := s.ListSnapshots()
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		if snaps[i].ID == id {
			return &snaps[i], nil
		}
	}
	return nil, newErr(KindSnapshotNotFound, 0, 0, "no such snapshot", nil)
}
