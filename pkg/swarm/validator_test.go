package swarm

import "testing"

func TestRecordValidatorRejectsEmptyValue(t *testing.T) {
	var v RecordValidator
	if err := v.Validate("/agoramesh/abc", nil); err == nil {
		t.Fatal("expected error for empty record value")
	}
}

func TestRecordValidatorRejectsOversizedValue(t *testing.T) {
	var v RecordValidator
	big := make([]byte, MaxDHTRecordBytes+1)
	if err := v.Validate("/agoramesh/abc", big); err == nil {
		t.Fatal("expected error for oversized record value")
	}
}

func TestRecordValidatorAcceptsWithinBounds(t *testing.T) {
	var v RecordValidator
	if err := v.Validate("/agoramesh/abc", []byte("card bytes")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecordValidatorSelectPicksDeterministicWinner(t *testing.T) {
	var v RecordValidator
	values := [][]byte{[]byte("aaa"), []byte("zzz"), []byte("mmm")}
	idx, err := v.Select("/agoramesh/abc", values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected index 1 (\"zzz\", the byte-wise max), got %d", idx)
	}
}

func TestRecordValidatorSelectRejectsEmptyCandidates(t *testing.T) {
	var v RecordValidator
	if _, err := v.Select("/agoramesh/abc", nil); err == nil {
		t.Fatal("expected error when no candidate values are supplied")
	}
}
