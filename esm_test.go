package fo76dm

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"testing"
)

type testRecord struct {
	typ    string
	formID uint32
	flags  uint32
	data   []byte
}

func encodeRecordHeader(out *bytes.Buffer, typ string, dataSize, flags, formID, revision uint32, version uint16) {
	out.WriteString(typ)
	binary.Write(out, binary.LittleEndian, dataSize)
	binary.Write(out, binary.LittleEndian, flags)
	binary.Write(out, binary.LittleEndian, formID)
	binary.Write(out, binary.LittleEndian, revision)
	binary.Write(out, binary.LittleEndian, version)
	binary.Write(out, binary.LittleEndian, uint16(0))
}

func encodeSubrecord(out *bytes.Buffer, tag string, payload []byte) {
	out.WriteString(tag)
	binary.Write(out, binary.LittleEndian, uint16(len(payload)))
	out.Write(payload)
}

// buildESM assembles a TES4 header followed by one top-level GRUP per
// distinct record type in recs, in the order first seen.
func buildESM(t *testing.T, recs []testRecord) []byte {
	t.Helper()
	var out bytes.Buffer

	// TES4 header: empty payload is legal (data_size 0).
	encodeRecordHeader(&out, "TES4", 0, 0, 0, 1, ExpectedESMVersion)

	var order []string
	byType := map[string][]testRecord{}
	for _, r := range recs {
		if _, ok := byType[r.typ]; !ok {
			order = append(order, r.typ)
		}
		byType[r.typ] = append(byType[r.typ], r)
	}

	for _, typ := range order {
		var body bytes.Buffer
		for _, r := range byType[typ] {
			encodeRecordHeader(&body, r.typ, uint32(len(r.data)), r.flags, r.formID, 1, 1)
			body.Write(r.data)
		}
		groupSize := uint32(groupHeaderSize + body.Len())
		out.WriteString("GRUP")
		binary.Write(&out, binary.LittleEndian, groupSize)
		out.WriteString(typ)
		binary.Write(&out, binary.LittleEndian, int32(0))
		binary.Write(&out, binary.LittleEndian, uint16(0))
		binary.Write(&out, binary.LittleEndian, uint16(0))
		binary.Write(&out, binary.LittleEndian, uint32(0))
		out.Write(body.Bytes())
	}
	return out.Bytes()
}

func weapData(damage int32, speed float32) []byte {
	var b bytes.Buffer
	encodeSubrecord(&b, "EDID", []byte("TestRifle\x00"))
	data := append(i32le(10), append(f32le(2.0), i32le(damage)...)...)
	encodeSubrecord(&b, "DATA", data)
	dnam := append(f32le(speed), make([]byte, 21)...)
	encodeSubrecord(&b, "DNAM", dnam)
	return b.Bytes()
}

func TestParseTrivialSnapshot(t *testing.T) {
	raw := buildESM(t, nil)
	f := NewBytes(raw, nil)
	if err := f.Parse(context.Background()); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Records) != 0 {
		t.Fatalf("Records = %d, want 0", len(f.Records))
	}
	if f.ESMSHA256 != sha256.Sum256(raw) {
		t.Fatal("ESMSHA256 should be a byte-level hash of the whole file")
	}
}

func TestParseSingleWeapon(t *testing.T) {
	raw := buildESM(t, []testRecord{
		{typ: "WEAP", formID: 0x0010A1FF, data: weapData(50, 1.0)},
	})
	f := NewBytes(raw, nil)
	if err := f.Parse(context.Background()); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(f.Records))
	}
	rec := f.Records[0]
	if rec.FormID != 0x0010A1FF {
		t.Errorf("FormID = %s, want 0x0010A1FF", rec.FormID)
	}
	if got := rec.Fields["damage"]; got.Kind != KindFloat && got.Kind != KindInt {
		t.Fatalf("damage field missing or wrong kind: %+v", got)
	}
	if rec.Fields["damage"].Int != 50 {
		t.Errorf("damage = %+v, want 50", rec.Fields["damage"])
	}
	if rec.EditorID != "TestRifle" {
		t.Errorf("EditorID = %q, want TestRifle", rec.EditorID)
	}
}

func TestParseCompressedNPC(t *testing.T) {
	var body bytes.Buffer
	acbs := append(u32le(0), append(i32le(10), append(i32le(0), append(i32le(0), i32le(0)...)...)...)...)
	encodeSubrecord(&body, "ACBS", acbs)

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write(body.Bytes())
	zw.Close()

	var payload bytes.Buffer
	binary.Write(&payload, binary.LittleEndian, uint32(body.Len()))
	payload.Write(compressed.Bytes())

	raw := buildESM(t, []testRecord{
		{typ: "NPC_", formID: 0x00123456, flags: FlagCompressed, data: payload.Bytes()},
	})
	f := NewBytes(raw, nil)
	if err := f.Parse(context.Background()); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(f.Records))
	}
	rec := f.Records[0]
	if rec.Fields["level"].Int != 10 {
		t.Errorf("level = %+v, want 10", rec.Fields["level"])
	}
	if rec.DataHash != sha256.Sum256(body.Bytes()) {
		t.Error("DataHash should be sha256 of the uncompressed subrecord bytes")
	}
}

func TestParseRejectsWrongVersion(t *testing.T) {
	var out bytes.Buffer
	encodeRecordHeader(&out, "TES4", 0, 0, 0, 1, 42)
	f := NewBytes(out.Bytes(), nil)
	err := f.Parse(context.Background())
	if err == nil {
		t.Fatal("Parse() with version 42 succeeded, want UnsupportedVersion")
	}
}

func TestParseDropsRecordOnDecompressFailure(t *testing.T) {
	var payload bytes.Buffer
	binary.Write(&payload, binary.LittleEndian, uint32(64)) // declared uncompressed length
	payload.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})            // not a valid zlib stream

	raw := buildESM(t, []testRecord{
		{typ: "NPC_", formID: 0x00000001, flags: FlagCompressed, data: payload.Bytes()},
		{typ: "NPC_", formID: 0x00000002, flags: FlagCompressed, data: payload.Bytes()},
	})
	f := NewBytes(raw, nil)
	if err := f.Parse(context.Background()); err != nil {
		t.Fatalf("Parse() error = %v, want the malformed record to be recoverably dropped", err)
	}
	if len(f.Records) != 0 {
		t.Fatalf("Records = %+v, want both malformed records dropped rather than retained with a zero DataHash", f.Records)
	}
	if len(f.Warnings) != 2 {
		t.Fatalf("Warnings = %+v, want one per dropped record", f.Warnings)
	}
	for _, w := range f.Warnings {
		if !strings.Contains(w, "dropped") {
			t.Errorf("warning %q should mention the record was dropped", w)
		}
	}
}

func TestParseCancelledAtGroupBoundary(t *testing.T) {
	raw := buildESM(t, []testRecord{
		{typ: "WEAP", formID: 0x00000001, data: weapData(1, 1)},
		{typ: "ARMO", formID: 0x00000002, data: []byte{}},
	})
	f := NewBytes(raw, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.Parse(ctx)
	if err == nil || !IsCancelled(err) {
		t.Fatalf("Parse() error = %v, want a Cancelled error from the pre-cancelled context", err)
	}
	if len(f.Records) != 0 {
		t.Fatalf("Records = %+v, want no records committed for a cancelled parse", f.Records)
	}
}

func TestParseSkipsREFRGroup(t *testing.T) {
	raw := buildESM(t, []testRecord{
		{typ: "REFR", formID: 0x00000001, data: []byte{0, 0, 0, 0}},
		{typ: "WEAP", formID: 0x00000002, data: weapData(1, 1)},
	})
	f := NewBytes(raw, nil)
	if err := f.Parse(context.Background()); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Records) != 1 || f.Records[0].Type != "WEAP" {
		t.Fatalf("Records = %+v, want exactly one WEAP", f.Records)
	}
}
