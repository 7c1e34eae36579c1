/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package officecrypt reads and writes the password protected, chunk
// encrypted package streams used by office document containers.
//
// A protected document stores two entries next to each other: an
// EncryptionInfo descriptor naming the algorithms, salts and password
// verifier, and an EncryptedPackage holding the length prefixed ciphertext
// of the real document. This package parses and writes both, given any
// container that can open and create named entries.
//
// # Features
//
//   - Agile encryption (version 4.4) with AES, DES or 3DES in CBC or CFB mode and
//     an HMAC integrity check
//   - Standard AES encryption (version 2..4 / 2)
//   - CryptoAPI RC4 and legacy binary RC4 for older binary formats
//   - Lazy, chunk addressed decryption with Skip and Seek
//   - Context support for cancellation
//   - Progress tracking callbacks
//   - Cross-platform memory safety for key material (mlock on Unix/macOS)
//
// # Basic Usage
//
// Encrypt a document into a directory of entries and read it back:
//
//	ctx := context.Background()
//
//	// Encrypt report.docx into the entries of pkg/
//	err := officecrypt.EncryptFile(ctx, "report.docx", "pkg", "secret", officecrypt.ModeAgile)
//
//	// Decrypt the entries of pkg/ into report.out.docx
//	err = officecrypt.DecryptFile(ctx, "pkg", "report.out.docx", "secret")
//
// # Working With Containers
//
// Any type implementing container.Directory can hold the entries, so the
// codec can sit behind a compound file or ZIP reader:
//
//	dir := container.NewMemDirectory()
//	err := officecrypt.EncryptPackage(ctx, src, dir, "secret", officecrypt.ModeStandard)
//
// For lower level access, ReadEncryptionInfo returns the descriptor and its
// Decryptor, whose DataStream is an io.ReadSeeker over the plaintext:
//
//	info, _ := officecrypt.ReadEncryptionInfo(dir)
//	dec := info.Decryptor()
//	defer dec.Destroy()
//	if ok, _ := dec.VerifyPassword("secret"); ok {
//	    r, _ := dec.DataStream(dir)
//	    defer r.Close()
//	}
//
// # Security Considerations
//
// Modes:
//   - Prefer ModeAgile for new documents; it is the only mode with an integrity check
//   - Binary RC4 and CryptoAPI RC4 are weak and exist for compatibility only
//
// Key material:
//   - Always call Destroy on decryptors and encryptors when done
//   - Streams own a private copy of the content key and wipe it on Close
//
// Errors:
//   - Use SanitizeError before showing errors to end users
//   - Treat ErrIntegrity as potential tampering
//
// For complete documentation and examples,
// see: https://github.com/gitrgoliveira/go-officecrypt
package officecrypt

import (
	"context"
	"io"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/core"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// Option defines functional options for encryption/decryption (re-exported from internal/core).
type Option = core.Option

// Re-exported descriptor and key types.
type (
	EncryptionMode     = core.EncryptionMode
	EncryptionInfo     = core.EncryptionInfo
	EncryptionHeader   = core.EncryptionHeader
	EncryptionVerifier = core.EncryptionVerifier
	Decryptor          = core.Decryptor
	Encryptor          = core.Encryptor
	IntegrityVerifier  = core.IntegrityVerifier
	PasswordParams     = core.PasswordParams
	CipherAlgorithm    = crypto.CipherAlgorithm
	HashAlgorithm      = crypto.HashAlgorithm
	ChainingMode       = crypto.ChainingMode
	EncryptionError    = crypto.EncryptionError
	CipherError        = crypto.CipherError
)

// Encryption modes.
const (
	ModeBinaryRC4 = core.ModeBinaryRC4
	ModeCryptoAPI = core.ModeCryptoAPI
	ModeStandard  = core.ModeStandard
	ModeAgile     = core.ModeAgile
)

// Algorithms accepted by WithCipher, WithHash and WithChainingMode.
const (
	CipherRC4     = crypto.CipherRC4
	CipherAES128  = crypto.CipherAES128
	CipherAES192  = crypto.CipherAES192
	CipherAES256  = crypto.CipherAES256
	CipherDES     = crypto.CipherDES
	Cipher3DES    = crypto.Cipher3DES
	Cipher3DES112 = crypto.Cipher3DES112

	HashSHA1      = crypto.HashSHA1
	HashSHA224    = crypto.HashSHA224
	HashSHA256    = crypto.HashSHA256
	HashSHA384    = crypto.HashSHA384
	HashSHA512    = crypto.HashSHA512
	HashMD5       = crypto.HashMD5
	HashMD4       = crypto.HashMD4
	HashRIPEMD160 = crypto.HashRIPEMD160

	ChainingECB = crypto.ChainingECB
	ChainingCBC = crypto.ChainingCBC
	ChainingCFB = crypto.ChainingCFB
)

// Re-export limits and defaults from internal/core
const (
	DefaultSpinCount       = core.DefaultSpinCount
	MaxSpinCount           = core.MaxSpinCount
	DefaultMaxRecordLength = core.DefaultMaxRecordLength
	MinRecordLength        = core.MinRecordLength
	AgileSpinCount         = core.AgileSpinCount
	StandardSpinCount      = core.StandardSpinCount
)

// Re-export sentinel errors so callers can match with errors.Is.
var (
	ErrUnsupported          = crypto.ErrUnsupported
	ErrUnsupportedAlgorithm = crypto.ErrUnsupportedAlgorithm
	ErrCorruptMetadata      = crypto.ErrCorruptMetadata
	ErrRecordTooLarge       = crypto.ErrRecordTooLarge
	ErrNotInitialized       = crypto.ErrNotInitialized
	ErrInvalidPassword      = crypto.ErrInvalidPassword
	ErrTruncated            = crypto.ErrTruncated
	ErrCipher               = crypto.ErrCipher
	ErrIntegrity            = crypto.ErrIntegrity
	ErrMarkNotSupported     = crypto.ErrMarkNotSupported
	ErrSeek                 = crypto.ErrSeek
	ErrClosed               = crypto.ErrClosed
	ErrContextCanceled      = crypto.ErrContextCanceled
)

// SanitizeError removes sensitive details for external consumption.
var SanitizeError = crypto.SanitizeError

// Option constructors (re-exported from internal/core).
var (
	WithCipher          = core.WithCipher
	WithHash            = core.WithHash
	WithKeyBits         = core.WithKeyBits
	WithChainingMode    = core.WithChainingMode
	WithSpinCount       = core.WithSpinCount
	WithMaxRecordLength = core.WithMaxRecordLength
	WithTempDir         = core.WithTempDir
	WithChecksum        = core.WithChecksum
	WithProgress        = core.WithProgress
	WithLogger          = core.WithLogger
)

// Descriptor constructors (re-exported from internal/core).
var (
	NewEncryptionInfo   = core.NewEncryptionInfo
	ReadEncryptionInfo  = core.ReadEncryptionInfo
	ParseEncryptionInfo = core.ParseEncryptionInfo
)

// ZeroKey securely zeroes a key slice returned by SecretKey.
var ZeroKey = secure.Zero

func coreOptions(opts []Option) []core.Option {
	coreOpts := make([]core.Option, len(opts))
	for i, opt := range opts {
		coreOpts[i] = core.Option(opt)
	}
	return coreOpts
}

// EncryptPackage encrypts src into the entries of dir.
func EncryptPackage(ctx context.Context, src io.Reader, dir container.Directory, password string, mode EncryptionMode, opts ...Option) error {
	return core.EncryptPackage(ctx, src, dir, password, mode, coreOptions(opts)...)
}

// DecryptPackage writes the plaintext of the package in dir to dst.
func DecryptPackage(ctx context.Context, dir container.Directory, dst io.Writer, password string, opts ...Option) error {
	return core.DecryptPackage(ctx, dir, dst, password, coreOptions(opts)...)
}

// EncryptFile encrypts a file into a directory of entries.
func EncryptFile(ctx context.Context, srcPath, dstDir, password string, mode EncryptionMode, opts ...Option) error {
	return core.EncryptFile(ctx, srcPath, dstDir, password, mode, coreOptions(opts)...)
}

// DecryptFile decrypts a directory of entries into a file.
func DecryptFile(ctx context.Context, srcDir, dstPath, password string, opts ...Option) error {
	return core.DecryptFile(ctx, srcDir, dstPath, password, coreOptions(opts)...)
}
