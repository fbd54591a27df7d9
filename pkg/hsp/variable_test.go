package hsp

import "testing"

func TestNewVariableDefaultsToIntLength16(t *testing.T) {
	v := NewVariable("a")
	if v.Type != VarInt {
		t.Errorf("Type = %v, want VarInt", v.Type)
	}
	if v.Length != defaultLength {
		t.Errorf("Length = %d, want %d", v.Length, defaultLength)
	}
}

func TestSetTypeChangeReinitializesLengthToOne(t *testing.T) {
	v := NewVariable("a")
	if err := v.Set(0, StringValue("hello")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v.Type != VarString {
		t.Errorf("Type = %v, want VarString", v.Type)
	}
	if v.Length != 1 {
		t.Errorf("Length = %d, want 1", v.Length)
	}
	if v.Granule < len("hello")+1 {
		t.Errorf("Granule = %d, want >= %d", v.Granule, len("hello")+1)
	}
}

func TestSetTypeChangeAtNonzeroIndexErrors(t *testing.T) {
	v := NewVariable("a")
	if err := v.Set(1, StringValue("nope")); err == nil {
		t.Error("Set() at idx 1 with a type change returned nil error")
	}
}
