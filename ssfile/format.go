// Package ssfile reads and writes the .ss scheme container.
//
// A container is a fixed header followed by tagged sections and a trailer:
//
//	header      magic ".ss\0" | version u8 | flags u8 | reserved u16
//	section*    tag u8 | pad [3]u8 | length u32 | payload | zero pad to 8
//	identity    [32]u8 scheme identity
//	checksum    u32 CRC-32 (IEEE) of every preceding byte
//
// Sections appear in a fixed order: axes, points, relations, layout,
// observation, constraints, then the scheme metadata when flag bit 0 is set.
// All integers are little endian; strings are a u32 length and the raw bytes;
// maps are written with sorted keys.
package ssfile

import (
	"errors"
	"fmt"
)

// Version is the container version written by Encode.
const Version uint8 = 1

var magic = [4]byte{'.', 's', 's', 0}

const (
	headerSize   = 8
	sectionAlign = 8
	trailerSize  = 32 + 4

	flagMetadata uint8 = 1 << 0
)

// Section tags
const (
	sectionAxes uint8 = iota + 1
	sectionPoints
	sectionRelations
	sectionLayout
	sectionObservation
	sectionConstraints
	sectionMetadata
)

var sectionNames = [...]string{"", "axes", "points", "relations", "layout", "observation", "constraints", "metadata"}

func sectionName(tag uint8) string {
	if int(tag) < len(sectionNames) && tag != 0 {
		return sectionNames[tag]
	}
	return fmt.Sprintf("section(%d)", tag)
}

// ErrInvalidMagic is returned when the input does not start with ".ss\0".
var ErrInvalidMagic = errors.New("ssfile: invalid magic")

// UnsupportedVersionError reports a container written by an unknown version.
type UnsupportedVersionError struct {
	Version uint8
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("ssfile: unsupported version %d", e.Version)
}

// MalformedError reports a structurally invalid container. Section is
// "header", "trailer", "identity" or the name of the offending section.
type MalformedError struct {
	Section string
	Reason  string
	Err     error
}

func (e *MalformedError) Error() string {
	msg := "ssfile: malformed " + e.Section + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error { return e.Err }

func malformed(section, format string, args ...any) *MalformedError {
	return &MalformedError{Section: section, Reason: fmt.Sprintf(format, args...)}
}
