package cache

// Algorithm identifies a compression algorithm recorded against a
// CacheData envelope.
type Algorithm int

const (
	AlgoNone Algorithm = iota
	AlgoLZ4
	AlgoZstd
	AlgoSnappy
)

// String renders the algorithm's stable name, used in events and the
// local-disk sidecar JSON.
func (a Algorithm) String() string {
	switch a {
	case AlgoLZ4:
		return "lz4"
	case AlgoZstd:
		return "zstd"
	case AlgoSnappy:
		return "snappy"
	default:
		return "none"
	}
}

// Data is an immutable envelope over a byte buffer. Once created it is
// shared by reference across goroutines; callers must never mutate Bytes.
type Data struct {
	Bytes        []byte
	OriginalSize int64
	Compressed   bool
	Algorithm    Algorithm
}

// NewData wraps an uncompressed buffer.
func NewData(b []byte) *Data {
	return &Data{Bytes: b, OriginalSize: int64(len(b)), Compressed: false, Algorithm: AlgoNone}
}

// StoredSize is the envelope's current buffer length: the compressed
// length when Compressed is true, else equal to OriginalSize.
func (d *Data) StoredSize() int64 { return int64(len(d.Bytes)) }
