package cache

import (
	"bytes"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	m := NewManager(CompressionConfig{DefaultAlgorithm: AlgoZstd, MinSizeBytes: 16, Level: 3, FallbackOnFailure: true})
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	out, algo, fallback, err := m.Compress(payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if fallback != nil {
		t.Fatalf("unexpected fallback event: %+v", fallback)
	}
	if algo != AlgoZstd {
		t.Fatalf("got algorithm %v, want zstd", algo)
	}
	if len(out) >= len(payload) {
		t.Fatalf("compressed output (%d bytes) not smaller than input (%d bytes)", len(out), len(payload))
	}

	back, err := m.Decompress(out, algo)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(back, payload) {
		t.Fatal("round trip mismatch")
	}
}

func TestCompressionBelowMinSizeStoredVerbatim(t *testing.T) {
	m := NewManager(CompressionConfig{DefaultAlgorithm: AlgoZstd, MinSizeBytes: 4096, FallbackOnFailure: true})
	small := []byte("tiny")
	out, algo, fallback, err := m.Compress(small)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if algo != AlgoNone {
		t.Fatalf("expected AlgoNone for small input, got %v", algo)
	}
	if fallback != nil {
		t.Fatal("expected no fallback event for a below-threshold input")
	}
	if !bytes.Equal(out, small) {
		t.Fatal("expected verbatim passthrough")
	}
}

func TestCompressionLz4AndSnappyRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 1000)
	for _, algo := range []Algorithm{AlgoLZ4, AlgoSnappy} {
		m := NewManager(CompressionConfig{DefaultAlgorithm: algo, MinSizeBytes: 16, Level: 1})
		out, got, _, err := m.Compress(payload)
		if err != nil {
			t.Fatalf("[%v] Compress: %v", algo, err)
		}
		if got != algo {
			t.Fatalf("[%v] got algorithm %v", algo, got)
		}
		back, err := m.Decompress(out, got)
		if err != nil {
			t.Fatalf("[%v] Decompress: %v", algo, err)
		}
		if !bytes.Equal(back, payload) {
			t.Fatalf("[%v] round trip mismatch", algo)
		}
	}
}
