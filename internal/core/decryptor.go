/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// decryptor.go: password verification and decrypting streams
package core

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/internal/stream"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// Decryptor checks a password against an EncryptionInfo and, once it
// matches, opens decrypting streams.
type Decryptor interface {
	// VerifyPassword reports whether password unlocks the package. A wrong
	// password is not an error. The content key is retained only on success.
	VerifyPassword(password string) (bool, error)
	// DataStream opens the EncryptedPackage entry of dir.
	DataStream(dir container.Directory) (*stream.Reader, error)
	// RawStream decrypts an embedded stream of size plaintext bytes whose
	// first byte sits at logical offset initialPos.
	RawStream(r io.Reader, size, initialPos int64) (*stream.Reader, error)
	// Length is the plaintext size announced by the last DataStream, or -1.
	Length() int64
	SecretKey() []byte
	Verifier() []byte
	Clone() Decryptor
	Destroy()
}

// IntegrityVerifier is implemented by decryptors whose format carries a
// keyed checksum of the encrypted package.
type IntegrityVerifier interface {
	VerifyIntegrity(dir container.Directory) error
}

type decryptorBase struct {
	info      *EncryptionInfo
	keys      keyMaterial
	length    int64
	chunkSize int
}

func newDecryptorBase(info *EncryptionInfo, chunkSize int) decryptorBase {
	return decryptorBase{info: info, length: -1, chunkSize: chunkSize}
}

func (d *decryptorBase) Length() int64 { return d.length }

// SecretKey returns a copy of the content key, nil before a successful
// VerifyPassword.
func (d *decryptorBase) SecretKey() []byte {
	if !d.keys.ready() {
		return nil
	}
	return d.keys.secretKey.Bytes()
}

// Verifier returns a copy of the decrypted verifier.
func (d *decryptorBase) Verifier() []byte { return secure.Clone(d.keys.verifier) }

func (d *decryptorBase) Destroy() { d.keys.destroy() }

func (d *decryptorBase) cloneBase() decryptorBase {
	return decryptorBase{
		info:      d.info.Clone(),
		keys:      d.keys.clone(),
		length:    d.length,
		chunkSize: d.chunkSize,
	}
}

func (d *decryptorBase) logVerify(ok bool) {
	d.info.cfg.Logger.WithFields(logrus.Fields{
		"mode":    d.info.Mode,
		"cipher":  d.info.Header.CipherAlgorithm,
		"matched": ok,
	}).Debug("password verification")
}

// dataStream reads the size prefix of EncryptedPackage and wraps the rest.
func (d *decryptorBase) dataStream(dir container.Directory, s stream.Strategy) (*stream.Reader, error) {
	if !d.keys.ready() {
		release(s)
		return nil, crypto.ErrNotInitialized
	}
	rc, err := dir.OpenEntry(container.EncryptedPackageEntry)
	if err != nil {
		release(s)
		return nil, errors.Wrap(err, "open encrypted package")
	}
	var prefix [8]byte
	if _, err := io.ReadFull(rc, prefix[:]); err != nil {
		release(s)
		_ = rc.Close()
		return nil, errors.Wrap(crypto.ErrTruncated, "encrypted package size")
	}
	size := binary.LittleEndian.Uint64(prefix[:])
	if size > math.MaxInt64 {
		release(s)
		_ = rc.Close()
		return nil, crypto.Corruptf("encrypted package size %d", size)
	}

	r, err := d.rawStream(rc, int64(size), 0, s, container.EncryptedPackageEntry)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	d.length = int64(size)
	return r, nil
}

func (d *decryptorBase) rawStream(src io.Reader, size, initialPos int64, s stream.Strategy, entry string) (*stream.Reader, error) {
	if !d.keys.ready() {
		release(s)
		return nil, crypto.ErrNotInitialized
	}
	r, err := stream.NewReader(src, size, stream.ReaderOptions{
		ChunkSize:  d.chunkSize,
		BlockSize:  d.info.Header.BlockSize,
		Strategy:   s,
		InitialPos: initialPos,
		Entry:      entry,
		Logger:     d.info.cfg.Logger,
	})
	if err != nil {
		release(s)
		return nil, err
	}
	return r, nil
}
