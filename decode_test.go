package fo76dm

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func f32le(v float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return b[:]
}

func i32le(v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func u32le(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func TestDecodeWEAPDamageAndSpeed(t *testing.T) {
	data := append(append(i32le(10), f32le(2.5)...), i32le(50)...) // value, weight, damage
	dnam := append(f32le(1.0), make([]byte, 21)...)                // speed=1.0, rest zeroed

	subs := []Subrecord{
		{Tag: "DATA", Payload: data},
		{Tag: "DNAM", Payload: dnam},
	}

	rec := &Record{Type: "WEAP", Fields: map[string]Field{}}
	decodeFields(rec, subs, nil)

	if got := rec.Fields["damage"]; got.Kind != KindInt || got.Int != 50 {
		t.Errorf("damage = %+v, want int 50", got)
	}
	if got := rec.Fields["speed"]; got.Kind != KindFloat || got.Float != 1.0 {
		t.Errorf("speed = %+v, want float 1.0", got)
	}
}

func TestDecodeWEAPShortPayloadYieldsMissingNotPartial(t *testing.T) {
	// Only 6 bytes: value decodes (0..4), weight needs 4..8 and is short.
	data := []byte{0x01, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	subs := []Subrecord{{Tag: "DATA", Payload: data}}

	rec := &Record{Type: "WEAP", Fields: map[string]Field{}}
	decodeFields(rec, subs, nil)

	if _, ok := rec.Fields["value"]; !ok {
		t.Error("value should decode from the first 4 bytes")
	}
	if _, ok := rec.Fields["weight"]; ok {
		t.Error("weight should be absent, not a zero-padded partial value")
	}
}

func TestDecodeGMSTTypesByEdidPrefix(t *testing.T) {
	tests := []struct {
		edid string
		data []byte
		kind FieldKind
	}{
		{"fHealthBase", f32le(100.0), KindFloat},
		{"iMaxLevel", i32le(275), KindInt},
		{"bUseNewSystem", i32le(1), KindBool},
	}
	for _, tt := range tests {
		rec := &Record{Type: "GMST", EditorID: tt.edid, Fields: map[string]Field{}}
		decodeFields(rec, []Subrecord{{Tag: "DATA", Payload: tt.data}}, nil)
		got := rec.Fields["value"]
		if got.Kind != tt.kind {
			t.Errorf("%s: value.Kind = %v, want %v", tt.edid, got.Kind, tt.kind)
		}
	}
}

func TestDecodeCOBJComponents(t *testing.T) {
	subs := []Subrecord{
		{Tag: "CNAM", Payload: u32le(0x0010A1FF)},
		{Tag: "BNAM", Payload: u32le(0x0010A200)},
		{Tag: "NAM1", Payload: i32le(1)},
		{Tag: "CNTO", Payload: append(u32le(0x00000001), i32le(5)...)},
		{Tag: "CNTO", Payload: append(u32le(0x00000002), i32le(3)...)},
	}
	rec := &Record{Type: "COBJ", Fields: map[string]Field{}}
	decodeFields(rec, subs, nil)

	if got := rec.Fields["component1_count"]; got.Int != 5 {
		t.Errorf("component1_count = %+v, want 5", got)
	}
	if got := rec.Fields["component2_count"]; got.Int != 3 {
		t.Errorf("component2_count = %+v, want 3", got)
	}
}

func TestDecodeARMOFields(t *testing.T) {
	data := append(append(i32le(200), i32le(50)...), f32le(4.5)...) // value, health, weight
	dnam := f32le(35.0)
	bod2 := u32le(0x00000042)

	subs := []Subrecord{
		{Tag: "DATA", Payload: data},
		{Tag: "DNAM", Payload: dnam},
		{Tag: "BOD2", Payload: bod2},
	}
	rec := &Record{Type: "ARMO", Fields: map[string]Field{}}
	decodeFields(rec, subs, nil)

	want := map[string]Field{
		"value":        IntField("value", 200),
		"health":       IntField("health", 50),
		"weight":       FloatField("weight", 4.5),
		"armor_rating": FloatField("armor_rating", 35.0),
		"biped_slots":  IntField("biped_slots", 0x42),
	}
	if diff := cmp.Diff(want, rec.Fields); diff != "" {
		t.Errorf("decoded ARMO fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFULLResolvesStringID(t *testing.T) {
	st := &StringTable{text: map[uint32]string{7: "Nuka-Cola"}, fromStrings: map[uint32]bool{}}
	rec := &Record{Type: "MISC", Fields: map[string]Field{}}
	decodeFields(rec, []Subrecord{{Tag: "FULL", Payload: u32le(7)}}, st)

	if rec.FullName != "Nuka-Cola" {
		t.Errorf("FullName = %q, want Nuka-Cola", rec.FullName)
	}
}

func TestFieldEqualCanonicalizesFloats(t *testing.T) {
	nan1 := FloatField("x", float32(math.NaN()))
	nan2 := FloatField("x", float32(math.NaN()))
	if !nan1.Equal(nan2) {
		t.Error("two NaN fields should compare equal (canonicalized)")
	}
	posZero := FloatField("x", 0.0)
	negZero := FloatField("x", float32(math.Copysign(0, -1)))
	if !posZero.Equal(negZero) {
		t.Error("+0.0 and -0.0 should compare equal")
	}
	if nan1.Equal(posZero) {
		t.Error("a NaN field must not compare equal to a zero-valued field")
	}
	if posZero.Equal(nan1) {
		t.Error("a zero-valued field must not compare equal to a NaN field")
	}
}

func TestFieldEqualCrossKindNeverEqual(t *testing.T) {
	i := IntField("x", 0)
	f := FloatField("x", 0)
	if i.Equal(f) {
		t.Error("int 0 and float 0.0 must not compare equal across kinds")
	}
}
