// internal/fixture/store.go

// Package fixture persists frozen scenarios. Scenarios are written to
// disk as JSON (optionally gzipped) with a content checksum, and can be
// catalogued in a database for versioning and diffing. Reads consult the
// data fault category so tests can rehearse corrupt-fixture handling.
package fixture

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hazmap/simkit/internal/config"
	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/util"
	"github.com/hazmap/simkit/pkg/core"
)

// ErrChecksumMismatch is returned when stored payload bytes no longer
// hash to the recorded checksum.
var ErrChecksumMismatch = errors.New("fixture checksum mismatch")

// Store reads and writes scenario fixtures under one directory.
type Store struct {
	dir      string
	compress bool
	registry *fault.Registry
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRegistry points the store at a fault registry other than the
// process-wide default.
func WithRegistry(r *fault.Registry) StoreOption {
	return func(s *Store) { s.registry = r }
}

// NewStore creates a store from fixture configuration.
func NewStore(cfg config.FixtureConfig, opts ...StoreOption) *Store {
	s := &Store{
		dir:      cfg.Dir,
		compress: cfg.CompressOutput,
		registry: fault.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Marshal encodes a scenario to its canonical JSON byte form and
// returns the bytes with their checksum. Struct field order makes the
// encoding deterministic, so equal scenarios hash equally.
func Marshal(s core.Scenario) ([]byte, string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, "", fmt.Errorf("marshal scenario: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// Unmarshal decodes canonical scenario JSON produced by Marshal.
func Unmarshal(data []byte) (core.Scenario, error) {
	var scn core.Scenario
	if err := json.Unmarshal(data, &scn); err != nil {
		return core.Scenario{}, err
	}
	return scn, nil
}

// WriteScenario persists a scenario under the given name and returns
// its metadata. The checksum always covers the uncompressed JSON.
func (s *Store) WriteScenario(name string, scn core.Scenario) (core.FixtureMetadata, error) {
	data, checksum, err := Marshal(scn)
	if err != nil {
		return core.FixtureMetadata{}, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return core.FixtureMetadata{}, fmt.Errorf("create fixture dir: %w", err)
	}

	path := s.path(name)
	if s.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return core.FixtureMetadata{}, fmt.Errorf("compress fixture: %w", err)
		}
		if err := zw.Close(); err != nil {
			return core.FixtureMetadata{}, fmt.Errorf("compress fixture: %w", err)
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return core.FixtureMetadata{}, fmt.Errorf("write fixture %s: %w", name, err)
	}

	return core.FixtureMetadata{Name: name, Seed: scn.Seed, Checksum: checksum}, nil
}

// ReadScenario loads a named scenario, decompressing if needed and
// verifying its checksum against expected when expected is non-empty.
// An armed data fault surfaces here through the same error paths real
// corruption would use.
func (s *Store) ReadScenario(name, expected string) (core.Scenario, core.FixtureMetadata, error) {
	path, compressed, err := s.locate(name)
	if err != nil {
		return core.Scenario{}, core.FixtureMetadata{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("read fixture %s: %w", name, err)
	}
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("decompress fixture %s: %w", name, err)
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("decompress fixture %s: %w", name, err)
		}
	}

	if d, ok := s.registry.Get(fault.CategoryData); ok {
		if df, ok := d.(fault.DataFault); ok {
			s.registry.Hit(fault.CategoryData, df.Kind())
			switch df.Mode {
			case fault.DataMalformedPayload:
				// Truncate so decoding fails the way a half-written file fails.
				data = data[:len(data)/2]
			case fault.DataChecksumMismatch:
				return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("fixture %s: %w", name, ErrChecksumMismatch)
			}
		}
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	if expected != "" && checksum != expected {
		return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("fixture %s: %w", name, ErrChecksumMismatch)
	}

	var scn core.Scenario
	if err := json.Unmarshal(data, &scn); err != nil {
		return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("decode fixture %s: %w", name, err)
	}

	meta := core.FixtureMetadata{Name: name, Seed: scn.Seed, Checksum: checksum}
	return scn, meta, nil
}

func (s *Store) path(name string) string {
	base := util.Slug(name)
	if s.compress {
		return filepath.Join(s.dir, base+".json.gz")
	}
	return filepath.Join(s.dir, base+".json")
}

// locate finds a fixture file regardless of how it was written.
func (s *Store) locate(name string) (string, bool, error) {
	base := util.Slug(name)
	gz := filepath.Join(s.dir, base+".json.gz")
	if _, err := os.Stat(gz); err == nil {
		return gz, true, nil
	}
	plain := filepath.Join(s.dir, base+".json")
	if _, err := os.Stat(plain); err == nil {
		return plain, false, nil
	}
	return "", false, fmt.Errorf("fixture %s not found in %s", name, s.dir)
}
