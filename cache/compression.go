package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionConfig configures the compression manager's behavior.
type CompressionConfig struct {
	DefaultAlgorithm  Algorithm
	MinSizeBytes      int64
	Level             int
	FallbackOnFailure bool
}

// DefaultCompressionConfig mirrors the teacher's preference for sane
// zero-value-safe defaults: zstd at a middling level, a 4 KiB floor
// below which compression isn't worth the CPU, and fallback enabled so
// a single bad input never fails a Put outright.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		DefaultAlgorithm:  AlgoZstd,
		MinSizeBytes:      4096,
		Level:             3,
		FallbackOnFailure: true,
	}
}

// Manager implements the compress/decompress contract of spec §4.2:
// inputs under MinSizeBytes, compression failures under
// FallbackOnFailure, and compressed output that doesn't shrink the
// payload are all stored verbatim with Algorithm=none.
type Manager struct {
	cfg CompressionConfig
}

// NewManager constructs a compression manager from cfg.
func NewManager(cfg CompressionConfig) *Manager { return &Manager{cfg: cfg} }

// CompressionFailedEvent is returned alongside a successful fallback so
// the caller (the manager) can emit a CompressionFailed event without
// the compression layer depending on the event/broadcast package.
type CompressionFailedEvent struct {
	Algorithm Algorithm
	Err       error
}

// Compress applies the configured algorithm per spec §4.2, returning the
// payload to store plus the algorithm actually used. A non-nil
// fallbackEvent indicates compression failed but FallbackOnFailure
// allowed the operation to proceed uncompressed.
func (m *Manager) Compress(data []byte) (out []byte, algo Algorithm, fallbackEvent *CompressionFailedEvent, err error) {
	if int64(len(data)) < m.cfg.MinSizeBytes {
		return data, AlgoNone, nil, nil
	}

	compressed, cerr := compressWith(m.cfg.DefaultAlgorithm, data, m.cfg.Level)
	if cerr != nil {
		if m.cfg.FallbackOnFailure {
			return data, AlgoNone, &CompressionFailedEvent{Algorithm: m.cfg.DefaultAlgorithm, Err: cerr}, nil
		}
		return nil, AlgoNone, nil, cerr
	}

	if len(compressed) >= len(data) {
		// Never store compressed output that grew the payload.
		return data, AlgoNone, nil, nil
	}
	return compressed, m.cfg.DefaultAlgorithm, nil, nil
}

// Decompress dispatches on algo; AlgoNone is a verbatim copy.
func (m *Manager) Decompress(data []byte, algo Algorithm) ([]byte, error) {
	return decompressWith(algo, data)
}

func compressWith(algo Algorithm, data []byte, level int) ([]byte, error) {
	switch algo {
	case AlgoNone:
		return data, nil
	case AlgoLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		// lz4 accepts only its named levels: <=0 maps to Fast, 1..9 to
		// Level1..Level9 (consecutive powers of two), higher clamps to Level9.
		lvl := lz4.Fast
		if level > 0 {
			if level > 9 {
				level = 9
			}
			lvl = lz4.Level1 << uint(level-1)
		}
		if err := w.Apply(lz4.CompressionLevelOption(lvl)); err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case AlgoZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case AlgoSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("cache: unsupported compression algorithm %v", algo)
	}
}

func decompressWith(algo Algorithm, data []byte) ([]byte, error) {
	switch algo {
	case AlgoNone:
		return data, nil
	case AlgoLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)
	case AlgoZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case AlgoSnappy:
		return snappy.Decode(nil, data)
	default:
		return nil, fmt.Errorf("cache: unsupported compression algorithm %v", algo)
	}
}
