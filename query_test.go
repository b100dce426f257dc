package fo76dm

import "testing"

func TestParseFormIDHexAndDecimal(t *testing.T) {
	if id, ok := ParseFormID("0x0010A1FF"); !ok || id != 0x0010A1FF {
		t.Errorf("ParseFormID(hex) = %v, %v", id, ok)
	}
	if id, ok := ParseFormID("1089023"); !ok || id != 1089023 {
		t.Errorf("ParseFormID(decimal) = %v, %v", id, ok)
	}
	if _, ok := ParseFormID("not-a-form-id"); ok {
		t.Error("ParseFormID should reject non-numeric input")
	}
}

func TestQueryGetAndFind(t *testing.T) {
	s := openTestStore(t)
	id := commitSnapshot(t, s, 1, []*Record{
		weaponRecord(0x001, 1, 50),
		weaponRecord(0x002, 2, 65),
	})
	q := NewQuery(s, id)

	rec, err := q.Get(0x001)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.EditorID != "TestRifle" {
		t.Errorf("Get() EditorID = %q", rec.EditorID)
	}

	if _, err := q.Get(0xDEAD); err == nil {
		t.Error("Get() of a missing FormID should fail")
	}

	found, err := q.Find("0x002", "")
	if err != nil {
		t.Fatalf("Find(form id) error = %v", err)
	}
	if len(found) != 1 || found[0].FormID != 0x002 {
		t.Fatalf("Find(form id) = %+v", found)
	}

	bySubstring, err := q.Find("rifle", "")
	if err != nil {
		t.Fatalf("Find(substring) error = %v", err)
	}
	if len(bySubstring) != 2 {
		t.Fatalf("Find(substring) = %+v, want both records", bySubstring)
	}

	byGlob, err := q.Find("Test*", "")
	if err != nil {
		t.Fatalf("Find(glob) error = %v", err)
	}
	if len(byGlob) != 2 {
		t.Fatalf("Find(glob) = %+v, want both records", byGlob)
	}
}

func TestQueryIterFiltersByType(t *testing.T) {
	s := openTestStore(t)
	id := commitSnapshot(t, s, 1, []*Record{
		weaponRecord(0x001, 1, 50),
		{FormID: 0x100, Type: "ARMO", DataHash: [32]byte{9}, Fields: map[string]Field{}},
	})
	q := NewQuery(s, id)

	weapons, err := q.Iter("WEAP")
	if err != nil {
		t.Fatalf("Iter() error = %v", err)
	}
	if len(weapons) != 1 || weapons[0].Type != "WEAP" {
		t.Fatalf("Iter(WEAP) = %+v", weapons)
	}
}

func TestStringsSearchCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.BeginSnapshot("snap", [32]byte{1})
	if err != nil {
		t.Fatalf("BeginSnapshot() error = %v", err)
	}
	st := &StringTable{text: map[uint32]string{1: "Nuka-Cola Quantum"}, fromStrings: map[uint32]bool{}}
	if err := tx.InsertStrings(DefaultLanguage, st); err != nil {
		t.Fatalf("InsertStrings() error = %v", err)
	}
	id, err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	q := NewQuery(s, id)
	entries, err := q.StringsSearch("quantum")
	if err != nil {
		t.Fatalf("StringsSearch() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "Nuka-Cola Quantum" {
		t.Fatalf("StringsSearch() = %+v", entries)
	}
}
