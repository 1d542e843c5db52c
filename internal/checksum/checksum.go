// Package checksum computes file digests for verification and display.
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ChunkSize is how much of the file is read per step.
const ChunkSize = 64 * 1024

var ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"crc32":  func() hash.Hash { return crc32.NewIEEE() },
	"xxhash": func() hash.Hash { return xxhash.New() },
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize makes "SHA-256" and "sha256" the same name.
func normalize(algorithm string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(algorithm)), "-", "")
}

// New returns a fresh hash for algorithm.
func New(algorithm string) (hash.Hash, error) {
	newHash, ok := algorithms[normalize(algorithm)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", algorithm, ErrUnknownAlgorithm)
	}
	return newHash(), nil
}

// Sum returns the hex digest of the file at path.
func Sum(path, algorithm string) (string, error) {
	return SumContext(context.Background(), path, algorithm)
}

// SumContext is Sum with cancellation checked between chunks.
func SumContext(ctx context.Context, path, algorithm string) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the file's digest matches expected, ignoring case.
func Verify(path, algorithm, expected string) (bool, error) {
	got, err := Sum(path, algorithm)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(got, strings.TrimSpace(expected)), nil
}
