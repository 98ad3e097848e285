// Package fingerprint provides the two hash routines the tiered duplicate
// detector uses: a fast sampled digest for candidate clustering (Tier 1)
// and a full streaming digest for cryptographic-confidence equality
// (Tier 2). Grounded on dupedog's internal/verifier.hashRange.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// window is the size of each sampled probe (spec.md §4.3: W = 65536).
const window = 65536

// midThreshold is the size at which a middle window is taken in addition
// to the head window (spec.md §4.3: S >= 196608).
const midThreshold = 3 * window

// defaultStreamBuf is the default chunk buffer for the streaming digest
// (spec.md §4.3's "configurable chunk buffer (default 4 MiB)").
const defaultStreamBuf = 4 * 1024 * 1024

// Sampled computes a 128-bit hex digest over up to three 64KiB windows
// (head, middle, tail) of path. Windows may overlap for small files; that
// is intentional (spec.md §4.3) since the result is only used for
// candidate clustering, never as evidence of equality.
//
// The 128 bits come from two independently seeded 64-bit xxhash sums over
// the same window bytes, concatenated — xxhash has no native 128-bit sum,
// and a non-cryptographic hash is the right tool for a fingerprint that
// explicitly disclaims being proof of equality.
func Sampled(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()

	h0 := xxhash.NewWithSeed(0)
	h1 := xxhash.NewWithSeed(1)

	readWindow := func(start, n int64) error {
		if n <= 0 {
			return nil
		}
		buf := make([]byte, n)
		if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
			return err
		}
		_, _ = h0.Write(buf)
		_, _ = h1.Write(buf)
		return nil
	}

	// Always hash the first window (or the whole file if shorter).
	headSize := min64(window, size)
	if err := readWindow(0, headSize); err != nil {
		return "", err
	}

	if size >= midThreshold {
		midStart := maxInt64(0, size/2-window/2)
		if err := readWindow(midStart, window); err != nil {
			return "", err
		}
	}

	if size >= window {
		tailStart := size - window
		if err := readWindow(tailStart, window); err != nil {
			return "", err
		}
	}

	sum := make([]byte, 16)
	putUint64BE(sum[0:8], h0.Sum64())
	putUint64BE(sum[8:16], h1.Sum64())
	return hex.EncodeToString(sum), nil
}

// Stream computes the full-file SHA-256 digest using bufSize-byte reads.
// bufSize <= 0 uses defaultStreamBuf. Read errors propagate to the caller.
func Stream(path string, bufSize int) (string, error) {
	if bufSize <= 0 {
		bufSize = defaultStreamBuf
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func putUint64BE(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
