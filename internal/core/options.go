/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// options.go: Configuration options for go-officecrypt
package core

import (
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
)

// Config collects reader and writer settings. Zero values of the algorithm
// fields mean "use the default of the encryption mode".
type Config struct {
	CipherAlgorithm crypto.CipherAlgorithm
	HashAlgorithm   crypto.HashAlgorithm
	KeyBits         int
	ChainingMode    crypto.ChainingMode
	SpinCount       int // DefaultSpinCount selects the mode default

	// MaxRecordLength bounds every allocation whose size comes from the
	// file being parsed.
	MaxRecordLength int
	TempDir         string
	// Checksum makes DecryptPackage verify the agile integrity HMAC
	// before returning.
	Checksum bool
	Progress func(float64)
	Logger   *logrus.Logger
}

// Option defines functional options for encryption/decryption (algorithms, limits, logging, progress, etc.)
type Option func(*Config)

const (
	DefaultSpinCount       = -1
	MaxSpinCount           = 10000000
	DefaultMaxRecordLength = 100000
	MinRecordLength        = 1024
	maxRecordLengthEnv     = "OFFICECRYPT_MAX_RECORD_LENGTH"
)

// defaultMaxRecordLength honours the environment override, in any unit
// humanize understands ("200kB", "1MiB").
func defaultMaxRecordLength() int {
	if v, ok := os.LookupEnv(maxRecordLengthEnv); ok {
		if limit, err := humanize.ParseBytes(v); err == nil && limit >= MinRecordLength && limit <= math.MaxInt32 {
			return int(limit)
		}
	}
	return DefaultMaxRecordLength
}

func newConfig(opts ...Option) *Config {
	cfg := &Config{
		SpinCount:       DefaultSpinCount,
		MaxRecordLength: defaultMaxRecordLength(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return cfg
}

// checkLength rejects a metadata driven allocation above the limit.
func (c *Config) checkLength(what string, n int64) error {
	if n < 0 || n > int64(c.MaxRecordLength) {
		return errors.Wrapf(crypto.ErrRecordTooLarge, "%s of %d bytes (limit %s)", what, n, humanize.Bytes(uint64(c.MaxRecordLength)))
	}
	return nil
}

// WithCipher selects the content cipher for new descriptors.
func WithCipher(alg crypto.CipherAlgorithm) Option {
	return func(cfg *Config) {
		cfg.CipherAlgorithm = alg
	}
}

// WithHash selects the hash algorithm for new descriptors.
func WithHash(alg crypto.HashAlgorithm) Option {
	return func(cfg *Config) {
		cfg.HashAlgorithm = alg
	}
}

// WithKeyBits sets the content key size. RC4 accepts 40 to 128 bits in
// steps of 8; AES sizes follow the cipher.
func WithKeyBits(bits int) Option {
	return func(cfg *Config) {
		cfg.KeyBits = bits
	}
}

// WithChainingMode selects CBC or CFB for agile descriptors.
func WithChainingMode(mode crypto.ChainingMode) Option {
	return func(cfg *Config) {
		cfg.ChainingMode = mode
	}
}

// WithSpinCount sets the number of password hash iterations.
func WithSpinCount(n int) (Option, error) {
	if n < 0 || n > MaxSpinCount {
		return nil, errors.Errorf("invalid spin count: must be between 0 and %d, got %d", MaxSpinCount, n)
	}
	return func(cfg *Config) {
		cfg.SpinCount = n
	}, nil
}

// WithMaxRecordLength sets the allocation limit for parsed metadata.
func WithMaxRecordLength(size int) (Option, error) {
	if size < MinRecordLength || size > math.MaxInt32 {
		return nil, errors.Errorf("invalid record length limit: must be between %d and %d bytes", MinRecordLength, math.MaxInt32)
	}
	return func(cfg *Config) {
		cfg.MaxRecordLength = size
	}, nil
}

// WithTempDir sets where encrypted output is staged before it is written to
// the directory.
func WithTempDir(dir string) Option {
	return func(cfg *Config) {
		cfg.TempDir = dir
	}
}

// WithChecksum enables integrity verification on decrypt. Only agile
// packages carry a checksum; other modes ignore it.
func WithChecksum(enabled bool) Option {
	return func(cfg *Config) {
		cfg.Checksum = enabled
	}
}

// WithProgress sets a progress callback (called at every 20% interval).
//
// The callback receives a fraction between 0.0 and 1.0 (inclusive).
func WithProgress(cb func(float64)) Option {
	return func(cfg *Config) {
		cfg.Progress = cb
	}
}

// WithLogger sets the logger. Chunk and descriptor events are logged at
// debug and trace level.
func WithLogger(l *logrus.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}
