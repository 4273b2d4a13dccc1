package wad

import (
	"testing"

	"github.com/pkg/errors"
)

func TestNameRoundTrip(t *testing.T) {
	for _, s := range []string{"E1M1", "STARTAN3", "F_SKY1", "-", "VILE\\1", "VILE[1", "A", "12345678"} {
		n, err := EncodeName(s)
		if err != nil {
			t.Errorf("EncodeName(%q) error: %v", s, err)
			continue
		}
		decoded, err := DecodeName(n)
		if err != nil {
			t.Errorf("DecodeName(%q) error: %v", s, err)
			continue
		}
		if decoded != n || decoded.String() != s {
			t.Errorf("DecodeName(EncodeName(%q)) = %q, want %q", s, decoded, s)
		}
	}
}

func TestEncodeNameUpperCases(t *testing.T) {
	n, err := EncodeName("sky1")
	if err != nil {
		t.Fatal(err)
	}
	if n.String() != "SKY1" {
		t.Errorf("EncodeName(sky1) = %v, want SKY1", n)
	}
}

func TestNameErrors(t *testing.T) {
	if _, err := EncodeName("TOOLONGNAME"); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("EncodeName(TOOLONGNAME) = %v, want %v", err, ErrNameTooLong)
	}
	if _, err := EncodeName("BAD NAME"); !errors.Is(err, ErrBadName) {
		t.Errorf("EncodeName(BAD NAME) = %v, want %v", err, ErrBadName)
	}
	garbage := [8]byte{'A', 'B', 0, 'C'}
	if _, err := DecodeName(garbage); !errors.Is(err, ErrBadName) {
		t.Errorf("DecodeName(%q) = %v, want %v", garbage, err, ErrBadName)
	}
	if _, err := DecodeName([8]byte{'A', 0xff}); !errors.Is(err, ErrBadName) {
		t.Errorf("DecodeName(0xff) = %v, want %v", err, ErrBadName)
	}
}

func TestNameAppend(t *testing.T) {
	n := MustName("TROO")
	n, err := n.Append('a')
	if err != nil {
		t.Fatal(err)
	}
	if n.String() != "TROOA" {
		t.Errorf("Append = %v, want TROOA", n)
	}
	if _, err := MustName("12345678").Append('A'); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("Append to full name = %v, want %v", err, ErrNameTooLong)
	}
}

func TestSpecialNames(t *testing.T) {
	if !MustName("-").IsUntextured() || !(LumpName{}).IsUntextured() {
		t.Error("IsUntextured() = false for - or empty name")
	}
	if !MustName("F_SKY1").IsSky() || MustName("FLOOR4_8").IsSky() {
		t.Error("IsSky() wrong")
	}
}
