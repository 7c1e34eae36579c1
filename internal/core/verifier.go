/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// verifier.go: EncryptionVerifier and its binary layouts
package core

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// EncryptionVerifier holds the password check values. Agile descriptors
// also carry the encrypted content key and the parameters of the password
// key encryptor, which may differ from the content cipher.
type EncryptionVerifier struct {
	Salt                  []byte
	EncryptedVerifier     []byte
	EncryptedVerifierHash []byte
	EncryptedKey          []byte
	SpinCount             int

	CipherAlgorithm crypto.CipherAlgorithm
	HashAlgorithm   crypto.HashAlgorithm
	ChainingMode    crypto.ChainingMode
	KeyBits         int
	BlockSize       int
}

// Clone returns a deep copy.
func (v *EncryptionVerifier) Clone() *EncryptionVerifier {
	if v == nil {
		return nil
	}
	c := *v
	c.Salt = secure.Clone(v.Salt)
	c.EncryptedVerifier = secure.Clone(v.EncryptedVerifier)
	c.EncryptedVerifierHash = secure.Clone(v.EncryptedVerifierHash)
	c.EncryptedKey = secure.Clone(v.EncryptedKey)
	return &c
}

// verifierFor copies the header algorithms into a new verifier.
func verifierFor(h *EncryptionHeader, spinCount int) *EncryptionVerifier {
	return &EncryptionVerifier{
		SpinCount:       spinCount,
		CipherAlgorithm: h.CipherAlgorithm,
		HashAlgorithm:   h.HashAlgorithm,
		ChainingMode:    h.ChainingMode,
		KeyBits:         h.KeyBits,
		BlockSize:       h.BlockSize,
	}
}

// encryptedVerifierHashSize is 32 for AES (SHA-1 padded to two blocks)
// and the plain hash length for RC4.
func encryptedVerifierHashSize(h *EncryptionHeader) int {
	if h.CipherAlgorithm.IsStream() {
		return h.HashAlgorithm.Size()
	}
	return aesVerifierHashSize
}

func parseStandardVerifier(r io.Reader, h *EncryptionHeader, spinCount int) (*EncryptionVerifier, error) {
	saltSize, err := readUint32(r, "salt size")
	if err != nil {
		return nil, err
	}
	if saltSize != standardSaltSize {
		return nil, crypto.Corruptf("salt size %d, want %d", saltSize, standardSaltSize)
	}

	v := verifierFor(h, spinCount)
	if v.Salt, err = readFull(r, standardSaltSize, "salt"); err != nil {
		return nil, err
	}
	if v.EncryptedVerifier, err = readFull(r, verifierSize, "encrypted verifier"); err != nil {
		return nil, err
	}
	hashSize, err := readUint32(r, "verifier hash size")
	if err != nil {
		return nil, err
	}
	if int(hashSize) != h.HashAlgorithm.Size() {
		return nil, crypto.Corruptf("verifier hash size %d for %s", hashSize, h.HashAlgorithm)
	}
	if v.EncryptedVerifierHash, err = readFull(r, encryptedVerifierHashSize(h), "encrypted verifier hash"); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *EncryptionVerifier) marshalStandard(w *bytes.Buffer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(v.Salt))); err != nil { // #nosec G115
		return err
	}
	w.Write(v.Salt)
	w.Write(v.EncryptedVerifier)
	if err := binary.Write(w, binary.LittleEndian, uint32(v.HashAlgorithm.Size())); err != nil { // #nosec G115
		return err
	}
	w.Write(v.EncryptedVerifierHash)
	return nil
}

func parseBinaryRC4Verifier(r io.Reader, h *EncryptionHeader) (*EncryptionVerifier, error) {
	v := verifierFor(h, 0)
	var err error
	if v.Salt, err = readFull(r, standardSaltSize, "salt"); err != nil {
		return nil, err
	}
	if v.EncryptedVerifier, err = readFull(r, verifierSize, "encrypted verifier"); err != nil {
		return nil, err
	}
	if v.EncryptedVerifierHash, err = readFull(r, verifierSize, "encrypted verifier hash"); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *EncryptionVerifier) marshalBinaryRC4(w *bytes.Buffer) {
	w.Write(v.Salt)
	w.Write(v.EncryptedVerifier)
	w.Write(v.EncryptedVerifierHash)
}
