/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// agile.go: agile encryption (XML descriptor, per-chunk IV, HMAC integrity)
package core

import (
	"io"

	"github.com/pkg/errors"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/internal/stream"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// hashInput runs input through the password key encryptor. The
// intermediate key comes from the password hash and blockKey, the IV from
// the verifier salt alone.
func hashInput(v *EncryptionVerifier, pwHash, blockKey, input []byte, dir crypto.Direction) ([]byte, error) {
	key, err := crypto.GenerateKey(pwHash, v.HashAlgorithm, blockKey, v.KeyBits/8)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(key)
	iv, err := crypto.GenerateIV(v.HashAlgorithm, v.Salt, nil, v.BlockSize)
	if err != nil {
		return nil, err
	}
	c, err := crypto.GetCipher(key, v.CipherAlgorithm, v.ChainingMode, iv, dir, false)
	if err != nil {
		return nil, err
	}
	defer c.Destroy()

	buf := crypto.Block0(input, crypto.NextBlockSize(len(input), v.BlockSize))
	if _, err := c.DoFinal(buf, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// integrityCipher returns a cipher keyed with the content key and the IV
// of one of the integrity block keys.
func integrityCipher(h *EncryptionHeader, key, blockKey []byte, dir crypto.Direction) (*crypto.Cipher, error) {
	iv, err := crypto.GenerateIV(h.HashAlgorithm, h.KeySalt, blockKey, h.BlockSize)
	if err != nil {
		return nil, err
	}
	return crypto.GetCipher(key, h.CipherAlgorithm, h.ChainingMode, iv, dir, false)
}

func integrityTransform(h *EncryptionHeader, key, blockKey, input []byte, dir crypto.Direction) ([]byte, error) {
	c, err := integrityCipher(h, key, blockKey, dir)
	if err != nil {
		return nil, err
	}
	defer c.Destroy()
	buf := crypto.Block0(input, crypto.NextBlockSize(len(input), h.BlockSize))
	if _, err := c.DoFinal(buf, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// agileStrategy derives the IV of chunk i from the key salt and LE32(i).
// The final chunk of an encrypting stream gets a fresh padded cipher.
type agileStrategy struct {
	key  *crypto.SecureBuffer
	info *EncryptionInfo
	keys *keyMaterial
	dir  crypto.Direction
}

func (s *agileStrategy) InitCipherForBlock(existing *crypto.Cipher, block uint32, lastChunk bool) (*crypto.Cipher, error) {
	h := s.info.Header
	iv, err := crypto.GenerateIV(h.HashAlgorithm, h.KeySalt, crypto.LE32(block), h.BlockSize)
	if err != nil {
		return nil, err
	}
	if existing == nil || lastChunk {
		if existing != nil {
			existing.Destroy()
		}
		return crypto.GetCipher(s.key.Data(), h.CipherAlgorithm, h.ChainingMode, iv, s.dir, lastChunk)
	}
	if err := existing.Init(nil, iv); err != nil {
		return nil, err
	}
	return existing, nil
}

// CalculateChecksum stores the encrypted HMAC of the package in the header.
func (s *agileStrategy) CalculateChecksum(pkg io.Reader, _ int64) error {
	if s.keys == nil || s.keys.hmacKey == nil {
		return errors.Wrap(crypto.ErrNotInitialized, "integrity key")
	}
	h := s.info.Header
	sum, err := CalculateChecksum(h.HashAlgorithm, s.keys.hmacKey, pkg)
	if err != nil {
		return err
	}
	enc, err := integrityTransform(h, s.key.Data(), blockKeyIntegrityValue, sum, crypto.Encrypt)
	if err != nil {
		return err
	}
	h.EncryptedHMACValue = enc
	secure.Zero(s.keys.hmacValue)
	s.keys.hmacValue = sum
	return nil
}

func (s *agileStrategy) Destroy() { s.key.Destroy() }

type agileDecryptor struct {
	decryptorBase
}

func newAgileDecryptor(info *EncryptionInfo) *agileDecryptor {
	return &agileDecryptor{newDecryptorBase(info, AgileChunkSize)}
}

func (d *agileDecryptor) VerifyPassword(password string) (bool, error) {
	h, v := d.info.Header, d.info.Verifier
	pwHash, err := crypto.HashPassword(password, v.HashAlgorithm, v.Salt, v.SpinCount)
	if err != nil {
		return false, err
	}
	defer secure.Zero(pwHash)

	verifier, err := hashInput(v, pwHash, blockKeyVerifierInput, v.EncryptedVerifier, crypto.Decrypt)
	if err != nil {
		return false, err
	}
	calc, err := v.HashAlgorithm.Sum(verifier)
	if err != nil {
		return false, err
	}
	stored, err := hashInput(v, pwHash, blockKeyVerifierValue, v.EncryptedVerifierHash, crypto.Decrypt)
	if err != nil {
		return false, err
	}
	defer secure.Zero(stored)

	ok := secure.Equal(calc, crypto.Block0(stored, v.HashAlgorithm.Size()))
	d.logVerify(ok)
	if !ok {
		secure.Zero(verifier)
		return false, nil
	}

	keySpec, err := hashInput(v, pwHash, blockKeyEncryptedKey, v.EncryptedKey, crypto.Decrypt)
	if err != nil {
		return false, err
	}
	defer secure.Zero(keySpec)
	if len(keySpec) < h.KeyBits/8 {
		return false, crypto.Corruptf("encrypted key of %d bytes for a %d bit key", len(keySpec), h.KeyBits)
	}
	key := keySpec[:h.KeyBits/8]

	var hmacKey, hmacValue []byte
	if len(h.EncryptedHMACKey) > 0 && len(h.EncryptedHMACValue) > 0 {
		hk, err := integrityTransform(h, key, blockKeyIntegrityKey, h.EncryptedHMACKey, crypto.Decrypt)
		if err != nil {
			return false, err
		}
		hv, err := integrityTransform(h, key, blockKeyIntegrityValue, h.EncryptedHMACValue, crypto.Decrypt)
		if err != nil {
			return false, err
		}
		hmacKey = crypto.Block0(hk, h.HashAlgorithm.Size())
		hmacValue = crypto.Block0(hv, h.HashAlgorithm.Size())
		secure.Zero(hk)
		secure.Zero(hv)
	}

	d.keys.setSecretKey(key)
	d.keys.verifier = verifier
	secure.Zero(d.keys.hmacKey)
	secure.Zero(d.keys.hmacValue)
	d.keys.hmacKey, d.keys.hmacValue = hmacKey, hmacValue
	return true, nil
}

func (d *agileDecryptor) strategy() stream.Strategy {
	return &agileStrategy{key: d.keys.share(), info: d.info, dir: crypto.Decrypt}
}

func (d *agileDecryptor) DataStream(dir container.Directory) (*stream.Reader, error) {
	return d.dataStream(dir, d.strategy())
}

func (d *agileDecryptor) RawStream(r io.Reader, size, initialPos int64) (*stream.Reader, error) {
	return d.rawStream(r, size, initialPos, d.strategy(), "")
}

// IntegrityHMACKey returns a copy of the decrypted integrity key.
func (d *agileDecryptor) IntegrityHMACKey() []byte { return secure.Clone(d.keys.hmacKey) }

// IntegrityHMACValue returns a copy of the decrypted integrity checksum.
func (d *agileDecryptor) IntegrityHMACValue() []byte { return secure.Clone(d.keys.hmacValue) }

// VerifyIntegrity recomputes the HMAC over the EncryptedPackage entry of
// dir and compares it with the checksum stored in the descriptor.
func (d *agileDecryptor) VerifyIntegrity(dir container.Directory) error {
	if !d.keys.ready() {
		return crypto.ErrNotInitialized
	}
	if d.keys.hmacKey == nil || d.keys.hmacValue == nil {
		return errors.Wrap(crypto.ErrIntegrity, "package carries no integrity data")
	}
	rc, err := dir.OpenEntry(container.EncryptedPackageEntry)
	if err != nil {
		return errors.Wrap(err, "open encrypted package")
	}
	defer func() {
		_ = rc.Close()
	}()

	ok, err := VerifyChecksum(d.info.Header.HashAlgorithm, d.keys.hmacKey, rc, d.keys.hmacValue)
	if err != nil {
		return err
	}
	d.info.cfg.Logger.WithField("matched", ok).Debug("integrity check")
	if !ok {
		return crypto.ErrIntegrity
	}
	return nil
}

func (d *agileDecryptor) Clone() Decryptor {
	return &agileDecryptor{d.cloneBase()}
}

type agileEncryptor struct {
	encryptorBase
}

func (e *agileEncryptor) ConfirmPassword(password string) error {
	return e.ConfirmPasswordWith(password, PasswordParams{})
}

// ConfirmPasswordWith fills the verifier, encrypted key and encrypted HMAC
// key of the descriptor. Salts and the verifier are one cipher block long,
// the key spec keyBits/8 and the integrity salt one hash long.
func (e *agileEncryptor) ConfirmPasswordWith(password string, params PasswordParams) error {
	h, v := e.info.Header, e.info.Verifier
	blockSize := h.BlockSize
	hashSize := h.HashAlgorithm.Size()

	verifierSalt, err := valueOr(params.VerifierSalt, v.BlockSize, "verifier salt")
	if err != nil {
		return err
	}
	verifier, err := valueOr(params.Verifier, v.BlockSize, "verifier")
	if err != nil {
		return err
	}
	keySalt, err := valueOr(params.KeySalt, blockSize, "key salt")
	if err != nil {
		return err
	}
	keySpec, err := valueOr(params.KeySpec, h.KeyBits/8, "key spec")
	if err != nil {
		return err
	}
	defer secure.Zero(keySpec)
	integritySalt, err := valueOr(params.IntegritySalt, hashSize, "integrity salt")
	if err != nil {
		return err
	}

	v.Salt = verifierSalt
	h.KeySalt = keySalt
	pwHash, err := crypto.HashPassword(password, v.HashAlgorithm, v.Salt, v.SpinCount)
	if err != nil {
		return err
	}
	defer secure.Zero(pwHash)

	encVerifier, err := hashInput(v, pwHash, blockKeyVerifierInput, verifier, crypto.Encrypt)
	if err != nil {
		return err
	}
	verifierHash, err := v.HashAlgorithm.Sum(verifier)
	if err != nil {
		return err
	}
	encVerifierHash, err := hashInput(v, pwHash, blockKeyVerifierValue, verifierHash, crypto.Encrypt)
	if err != nil {
		return err
	}
	encKey, err := hashInput(v, pwHash, blockKeyEncryptedKey, keySpec, crypto.Encrypt)
	if err != nil {
		return err
	}
	encHMACKey, err := integrityTransform(h, keySpec, blockKeyIntegrityKey, integritySalt, crypto.Encrypt)
	if err != nil {
		return err
	}

	v.EncryptedVerifier = encVerifier
	v.EncryptedVerifierHash = encVerifierHash
	v.EncryptedKey = encKey
	h.EncryptedHMACKey = encHMACKey
	h.EncryptedHMACValue = nil

	e.keys.setSecretKey(keySpec)
	e.keys.verifier = verifier
	secure.Zero(e.keys.hmacKey)
	e.keys.hmacKey = integritySalt
	e.keys.hmacValue = nil
	return nil
}

func (e *agileEncryptor) strategy() stream.Strategy {
	return &agileStrategy{key: e.keys.share(), info: e.info, keys: &e.keys, dir: crypto.Encrypt}
}

func (e *agileEncryptor) DataStream(dir container.Directory) (*stream.Writer, error) {
	return e.dataStream(dir, AgileChunkSize, e.strategy())
}

func (e *agileEncryptor) RawStream(w io.Writer) (*stream.Writer, error) {
	return e.rawStream(w, AgileChunkSize, e.strategy())
}

func (e *agileEncryptor) Clone() Encryptor {
	return &agileEncryptor{e.cloneBase()}
}
