package wad

import (
	"bytes"

	"github.com/pkg/errors"
)

// LumpName is the WAD eight-character name type. Short names are NUL padded.
type LumpName [8]byte

// Special names
var (
	SkyFlatName    = MustName("F_SKY1")
	UntexturedName = MustName("-")
)

// String converts LumpName to string
func (n LumpName) String() string {
	i := bytes.IndexByte(n[:], 0)
	if i == -1 {
		i = len(n)
	}
	return string(n[0:i])
}

// Len returns the number of characters before the padding.
func (n LumpName) Len() int {
	return len(n.String())
}

// IsUntextured reports whether n is the "no texture" marker.
func (n LumpName) IsUntextured() bool {
	return n == UntexturedName || n == LumpName{}
}

// IsSky reports whether n is the sky flat.
func (n LumpName) IsSky() bool {
	return n == SkyFlatName
}

// Append returns n with c appended after the last character.
func (n LumpName) Append(c byte) (LumpName, error) {
	l := n.Len()
	if l == len(n) {
		return n, errors.Wrapf(ErrNameTooLong, "%q + %q", n.String(), c)
	}
	c = upper(c)
	if !validNameByte(c) {
		return n, errors.Wrapf(ErrBadName, "%q", c)
	}
	n[l] = c
	return n, nil
}

// EncodeName validates s and packs it into a LumpName. Lower case letters are upper cased.
func EncodeName(s string) (LumpName, error) {
	var n LumpName
	if len(s) > len(n) {
		return n, errors.Wrapf(ErrNameTooLong, "%q", s)
	}
	for i := 0; i < len(s); i++ {
		c := upper(s[i])
		if !validNameByte(c) {
			return LumpName{}, errors.Wrapf(ErrBadName, "%q in %q", s[i], s)
		}
		n[i] = c
	}
	return n, nil
}

// MustName is EncodeName for names known to be valid. It panics otherwise.
func MustName(s string) LumpName {
	n, err := EncodeName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// DecodeName validates a raw directory name. Everything after the first NUL must also be NUL.
func DecodeName(b [8]byte) (LumpName, error) {
	var n LumpName
	end := bytes.IndexByte(b[:], 0)
	if end == -1 {
		end = len(b)
	}
	for i := end; i < len(b); i++ {
		if b[i] != 0 {
			return LumpName{}, errors.Wrapf(ErrBadName, "garbage after NUL in %q", b[:])
		}
	}
	for i := 0; i < end; i++ {
		c := upper(b[i])
		if !validNameByte(c) {
			return LumpName{}, errors.Wrapf(ErrBadName, "%q in %q", b[i], b[:end])
		}
		n[i] = c
	}
	return n, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// validNameByte accepts upper case letters, digits and _-[]. DOOM II also uses % and \ in
// sprite names (VILE\1 and friends).
func validNameByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '_', '-', '[', ']', '%', '\\':
		return true
	}
	return false
}
