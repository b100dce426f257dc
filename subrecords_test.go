package fo76dm

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func collectWarnings() (func(string, ...interface{}), *[]string) {
	var out []string
	return func(format string, args ...interface{}) {
		out = append(out, format)
	}, &out
}

func TestParseSubrecordsXXXXOverrideAppliesToNextSubrecord(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB}, 70000) // exceeds a 16-bit length

	var body bytes.Buffer
	body.WriteString("XXXX")
	binary.Write(&body, binary.LittleEndian, uint16(4))
	binary.Write(&body, binary.LittleEndian, uint32(len(big)))
	encodeSubrecord(&body, "DATA", big)

	warnf, warnings := collectWarnings()
	subs, truncated := parseSubrecords(body.Bytes(), warnf)
	if truncated {
		t.Fatalf("parseSubrecords() truncated = true, want false; warnings=%v", *warnings)
	}
	if len(subs) != 1 || subs[0].Tag != "DATA" || len(subs[0].Payload) != len(big) {
		t.Fatalf("parseSubrecords() = %+v, want one DATA subrecord of %d bytes", subs, len(big))
	}
}

func TestParseSubrecordsRejectsXXXXMaxUint32Override(t *testing.T) {
	var body bytes.Buffer
	body.WriteString("XXXX")
	binary.Write(&body, binary.LittleEndian, uint16(4))
	binary.Write(&body, binary.LittleEndian, uint32(math.MaxUint32))
	encodeSubrecord(&body, "DATA", []byte{1, 2, 3, 4})

	warnf, warnings := collectWarnings()
	subs, truncated := parseSubrecords(body.Bytes(), warnf)
	if !truncated {
		t.Fatal("parseSubrecords() with an XXXX override of u32::MAX should be rejected as malformed")
	}
	if len(subs) != 0 {
		t.Fatalf("parseSubrecords() = %+v, want no subrecords decoded past the rejected override", subs)
	}
	if len(*warnings) == 0 {
		t.Fatal("parseSubrecords() should warn about the rejected u32::MAX override")
	}
}

func TestParseSubrecordsDropsSubrecordExceedingRemainingPayload(t *testing.T) {
	var body bytes.Buffer
	encodeSubrecord(&body, "EDID", []byte("Good\x00"))
	// A DATA subrecord that claims more payload than actually follows it.
	body.WriteString("DATA")
	binary.Write(&body, binary.LittleEndian, uint16(100))
	body.Write([]byte{1, 2, 3}) // far short of the declared 100 bytes

	warnf, warnings := collectWarnings()
	subs, truncated := parseSubrecords(body.Bytes(), warnf)
	if !truncated {
		t.Fatal("parseSubrecords() with an oversized subrecord length should report truncated")
	}
	if len(subs) != 1 || subs[0].Tag != "EDID" {
		t.Fatalf("parseSubrecords() = %+v, want the EDID subrecord parsed before the drop", subs)
	}
	if len(*warnings) == 0 {
		t.Fatal("parseSubrecords() should warn about the dropped oversized subrecord")
	}
}
