package messages

import (
	"errors"
	"fmt"
	"strconv"
)

// Object type characters, used as objid prefixes.
const (
	KindMatrix byte = 'm'
	KindAgent  byte = 'a'
	KindToken  byte = 't'
	KindKey    byte = 'k'
	KindImage  byte = 'i'
)

// ErrInvalidObjID is returned for client-supplied object ids that do not
// follow the <type_char><positive_integer> format.
var ErrInvalidObjID = errors.New("invalid objid")

// ValidKind reports whether c is one of the five object type characters.
func ValidKind(c byte) bool {
	switch c {
	case KindMatrix, KindAgent, KindToken, KindKey, KindImage:
		return true
	}
	return false
}

// KindOf returns the type character of an objid, or 0 for an empty string.
// It does not validate the id; use ParseObjID for untrusted input.
func KindOf(objid string) byte {
	if objid == "" {
		return 0
	}
	return objid[0]
}

// FormatObjID renders an objid like "t42" from its two parts.
func FormatObjID(kind byte, num int) string {
	return string(kind) + strconv.Itoa(num)
}

// ParseObjID splits an objid like "t42" into its type character and sequence
// number. Ids shorter than two characters, with an unknown type character,
// or with a non-positive or non-numeric suffix are rejected.
func ParseObjID(objid string) (byte, int, error) {
	if len(objid) < 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidObjID, objid)
	}
	kind := objid[0]
	if !ValidKind(kind) {
		return 0, 0, fmt.Errorf("%w: unknown type in %q", ErrInvalidObjID, objid)
	}
	num, err := strconv.Atoi(objid[1:])
	if err != nil || num < 1 {
		return 0, 0, fmt.Errorf("%w: bad sequence in %q", ErrInvalidObjID, objid)
	}
	return kind, num, nil
}
