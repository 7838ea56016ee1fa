package common

import (
	"encoding/hex"
	"testing"
)

func TestMakeRandHexString_LengthAndCharset(t *testing.T) {
	s, err := MakeRandHexString(16)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("want 32 chars, got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("not valid hex: %v", err)
	}
}

func TestMakeRandHexString_NotRepeating(t *testing.T) {
	a, err := MakeRandHexString(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := MakeRandHexString(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("two random strings are identical: %s", a)
	}
}
