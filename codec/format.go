// Package codec implements the binary wire format that persists a single
// hnsw.Index shard: a versioned, little-endian, alignment-sensitive byte
// image that Encode/Decode map bidirectionally against hnsw.RawState.
package codec

const (
	// Magic identifies a shard image ("HNSW" read little-endian as a u32).
	Magic uint32 = 0x574E5348
	// Version is the only version this codec reads or writes.
	Version uint32 = 1
	// HeaderSize is the fixed size in bytes of the leading header region.
	HeaderSize = 64
)

const (
	flagCosineNorms           byte = 1 << 0
	flagUseHeuristic          byte = 1 << 1
	flagKeepPrunedConnections byte = 1 << 2
)

// Header is the fixed 64-byte region at the start of every shard image.
type Header struct {
	Dim            uint32
	Count          uint32
	MaxLevel       int32
	EntryPoint     int32
	M              uint32
	Mmax0          uint32
	Metric         byte
	Flags          byte
	EfConstruction uint32
	EfSearch       uint32
}

func (h Header) hasCosineNorms() bool        { return h.Flags&flagCosineNorms != 0 }
func (h Header) useHeuristic() bool          { return h.Flags&flagUseHeuristic != 0 }
func (h Header) keepPrunedConnections() bool { return h.Flags&flagKeepPrunedConnections != 0 }

func writeHeader(w *writer, h Header) {
	w.u32(Magic)
	w.u32(Version)
	w.u32(h.Dim)
	w.u32(h.Count)
	w.i32(h.MaxLevel)
	w.i32(h.EntryPoint)
	w.u32(h.M)
	w.u32(h.Mmax0)
	w.u8(h.Metric)
	w.u8(h.Flags)
	w.u32(h.EfConstruction)
	w.u32(h.EfSearch)
	w.zero(22)
}

func readHeader(r *reader) (Header, error) {
	magic, err := r.u32()
	if err != nil {
		return Header{}, err
	}
	if magic != Magic {
		return Header{}, &BadMagic{Got: magic}
	}
	version, err := r.u32()
	if err != nil {
		return Header{}, err
	}
	if version != Version {
		return Header{}, &UnsupportedVersion{Got: version}
	}

	var h Header
	if h.Dim, err = r.u32(); err != nil {
		return Header{}, err
	}
	if h.Count, err = r.u32(); err != nil {
		return Header{}, err
	}
	if h.MaxLevel, err = r.i32(); err != nil {
		return Header{}, err
	}
	if h.EntryPoint, err = r.i32(); err != nil {
		return Header{}, err
	}
	if h.M, err = r.u32(); err != nil {
		return Header{}, err
	}
	if h.Mmax0, err = r.u32(); err != nil {
		return Header{}, err
	}
	if h.Metric, err = r.u8(); err != nil {
		return Header{}, err
	}
	if h.Flags, err = r.u8(); err != nil {
		return Header{}, err
	}
	if h.EfConstruction, err = r.u32(); err != nil {
		return Header{}, err
	}
	if h.EfSearch, err = r.u32(); err != nil {
		return Header{}, err
	}
	if err := r.skip(22); err != nil {
		return Header{}, err
	}
	return h, nil
}
