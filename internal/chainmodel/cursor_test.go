package chainmodel

import (
	"encoding/json"
	"testing"
)

// TestCursorJSONRoundTrip exercises scenario S3 from spec.md 8.
func TestCursorJSONRoundTrip(t *testing.T) {
	c := Cursor{OrderKey: 1, UniqueKey: []byte{0, 1, 2, 3}}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	const want = `{"orderKey":1,"uniqueKey":"0x00010203"}`
	if string(data) != want {
		t.Fatalf("marshal = %s, want %s", data, want)
	}

	var got Cursor
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Equal(c) || string(got.UniqueKey) != string(c.UniqueKey) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
}

func TestCursorEmptyHash(t *testing.T) {
	c := Cursor{OrderKey: 7}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"orderKey":7,"uniqueKey":"0x"}` {
		t.Fatalf("marshal = %s", data)
	}
	var got Cursor
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.HasHash() {
		t.Fatal("expected empty hash to round trip as no hash")
	}
}

func TestFinalityJSONCaseInsensitive(t *testing.T) {
	var f Finality
	if err := json.Unmarshal([]byte(`"FINALIZED"`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f != FinalityFinalized {
		t.Fatalf("got %v, want FinalityFinalized", f)
	}
	data, err := json.Marshal(FinalityFinalized)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"finalized"` {
		t.Fatalf("marshal = %s", data)
	}
}
