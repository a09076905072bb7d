package codec

import "fmt"

// BadMagic is returned when a shard image's magic number doesn't match.
type BadMagic struct {
	Got uint32
}

func (e *BadMagic) Error() string {
	return fmt.Sprintf("codec: bad magic: got 0x%08x", e.Got)
}

// UnsupportedVersion is returned when a shard image's version field is not
// one this codec knows how to read.
type UnsupportedVersion struct {
	Got uint32
}

func (e *UnsupportedVersion) Error() string {
	return fmt.Sprintf("codec: unsupported version: got %d", e.Got)
}

// Truncated is returned when a shard image ends before a region's declared
// length is satisfied.
type Truncated struct {
	Want int
	Got  int
}

func (e *Truncated) Error() string {
	return fmt.Sprintf("codec: truncated: want at least %d bytes, got %d", e.Want, e.Got)
}
