/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// standard.go: Standard AES encryption (ECB, SHA-1 derived key)
package core

import (
	"io"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/internal/stream"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// standardSecretKey derives the AES key from the iterated password hash:
// X = H(hash || LE32(0)), key = (H(0x36^64 xor X) || H(0x5c^64 xor X))[:keyBits/8].
func standardSecretKey(password string, h *EncryptionHeader, v *EncryptionVerifier) ([]byte, error) {
	pwHash, err := crypto.HashPassword(password, v.HashAlgorithm, v.Salt, v.SpinCount)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(pwHash)

	x, err := v.HashAlgorithm.Sum(pwHash, crypto.LE32(0))
	if err != nil {
		return nil, err
	}
	defer secure.Zero(x)
	x1, err := fillAndHash(v.HashAlgorithm, x, 0x36)
	if err != nil {
		return nil, err
	}
	x2, err := fillAndHash(v.HashAlgorithm, x, 0x5c)
	if err != nil {
		return nil, err
	}
	both := append(x1, x2...)
	key := secure.Clone(both[:h.KeyBits/8])
	secure.Zero(both)
	secure.Zero(x1)
	secure.Zero(x2)
	return key, nil
}

func fillAndHash(alg crypto.HashAlgorithm, x []byte, fill byte) ([]byte, error) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = fill
	}
	for i := 0; i < len(x) && i < len(buf); i++ {
		buf[i] ^= x[i]
	}
	defer secure.Zero(buf)
	return alg.Sum(buf)
}

// standardStrategy runs a single ECB cipher over every chunk. ECB has no
// per-block state, so the cipher is created once and reused.
type standardStrategy struct {
	key *crypto.SecureBuffer
	alg crypto.CipherAlgorithm
	dir crypto.Direction
}

func (s *standardStrategy) InitCipherForBlock(existing *crypto.Cipher, _ uint32, _ bool) (*crypto.Cipher, error) {
	if existing != nil {
		return existing, nil
	}
	return crypto.GetCipher(s.key.Data(), s.alg, crypto.ChainingECB, nil, s.dir, true)
}

func (s *standardStrategy) CalculateChecksum(io.Reader, int64) error { return nil }

func (s *standardStrategy) Destroy() { s.key.Destroy() }

type standardDecryptor struct {
	decryptorBase
}

func newStandardDecryptor(info *EncryptionInfo) *standardDecryptor {
	return &standardDecryptor{newDecryptorBase(info, StandardChunkSize)}
}

func (d *standardDecryptor) VerifyPassword(password string) (bool, error) {
	h, v := d.info.Header, d.info.Verifier
	key, err := standardSecretKey(password, h, v)
	if err != nil {
		return false, err
	}
	defer secure.Zero(key)

	c, err := crypto.GetCipher(key, h.CipherAlgorithm, crypto.ChainingECB, nil, crypto.Decrypt, false)
	if err != nil {
		return false, err
	}
	defer c.Destroy()

	verifier := make([]byte, len(v.EncryptedVerifier))
	if _, err := c.Update(verifier, v.EncryptedVerifier); err != nil {
		return false, err
	}
	verifierHash := make([]byte, len(v.EncryptedVerifierHash))
	if _, err := c.Update(verifierHash, v.EncryptedVerifierHash); err != nil {
		return false, err
	}
	defer secure.Zero(verifierHash)
	calc, err := v.HashAlgorithm.Sum(verifier)
	if err != nil {
		return false, err
	}

	ok := len(verifierHash) >= len(calc) && secure.Equal(calc, verifierHash[:len(calc)])
	d.logVerify(ok)
	if !ok {
		secure.Zero(verifier)
		return false, nil
	}
	d.keys.setSecretKey(key)
	d.keys.verifier = verifier
	return true, nil
}

func (d *standardDecryptor) strategy() stream.Strategy {
	return &standardStrategy{key: d.keys.share(), alg: d.info.Header.CipherAlgorithm, dir: crypto.Decrypt}
}

func (d *standardDecryptor) DataStream(dir container.Directory) (*stream.Reader, error) {
	return d.dataStream(dir, d.strategy())
}

func (d *standardDecryptor) RawStream(r io.Reader, size, initialPos int64) (*stream.Reader, error) {
	return d.rawStream(r, size, initialPos, d.strategy(), "")
}

func (d *standardDecryptor) Clone() Decryptor {
	return &standardDecryptor{d.cloneBase()}
}

type standardEncryptor struct {
	encryptorBase
}

func (e *standardEncryptor) ConfirmPassword(password string) error {
	return e.ConfirmPasswordWith(password, PasswordParams{})
}

// ConfirmPasswordWith uses Verifier and VerifierSalt; the content key is
// derived from the password, so KeySpec is ignored.
func (e *standardEncryptor) ConfirmPasswordWith(password string, params PasswordParams) error {
	h, v := e.info.Header, e.info.Verifier
	salt, err := valueOr(params.VerifierSalt, standardSaltSize, "verifier salt")
	if err != nil {
		return err
	}
	verifier, err := valueOr(params.Verifier, verifierSize, "verifier")
	if err != nil {
		return err
	}

	v.Salt = salt
	key, err := standardSecretKey(password, h, v)
	if err != nil {
		return err
	}
	defer secure.Zero(key)

	c, err := crypto.GetCipher(key, h.CipherAlgorithm, crypto.ChainingECB, nil, crypto.Encrypt, false)
	if err != nil {
		return err
	}
	defer c.Destroy()

	encVerifier := make([]byte, verifierSize)
	if _, err := c.Update(encVerifier, verifier); err != nil {
		return err
	}
	hash, err := v.HashAlgorithm.Sum(verifier)
	if err != nil {
		return err
	}
	encHash := crypto.Block0(hash, aesVerifierHashSize)
	if _, err := c.Update(encHash, encHash); err != nil {
		return err
	}

	v.EncryptedVerifier = encVerifier
	v.EncryptedVerifierHash = encHash
	e.keys.setSecretKey(key)
	e.keys.verifier = verifier
	return nil
}

func (e *standardEncryptor) strategy() stream.Strategy {
	return &standardStrategy{key: e.keys.share(), alg: e.info.Header.CipherAlgorithm, dir: crypto.Encrypt}
}

func (e *standardEncryptor) DataStream(dir container.Directory) (*stream.Writer, error) {
	return e.dataStream(dir, stream.Streaming, e.strategy())
}

func (e *standardEncryptor) RawStream(w io.Writer) (*stream.Writer, error) {
	return e.rawStream(w, stream.Streaming, e.strategy())
}

func (e *standardEncryptor) Clone() Encryptor {
	return &standardEncryptor{e.cloneBase()}
}
