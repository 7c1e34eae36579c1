/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// header.go: EncryptionHeader and its binary layout
package core

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// EncryptionHeader describes the content cipher of an encrypted package.
// KeySalt and the HMAC fields are only used by agile descriptors; CSPName
// and Provider only by binary ones.
type EncryptionHeader struct {
	Flags           uint32
	SizeExtra       uint32
	CipherAlgorithm crypto.CipherAlgorithm
	HashAlgorithm   crypto.HashAlgorithm
	KeyBits         int
	BlockSize       int
	ChainingMode    crypto.ChainingMode
	Provider        crypto.CipherProvider
	CSPName         string

	KeySalt            []byte
	EncryptedHMACKey   []byte
	EncryptedHMACValue []byte
}

// Clone returns a deep copy.
func (h *EncryptionHeader) Clone() *EncryptionHeader {
	if h == nil {
		return nil
	}
	c := *h
	c.KeySalt = secure.Clone(h.KeySalt)
	c.EncryptedHMACKey = secure.Clone(h.EncryptedHMACKey)
	c.EncryptedHMACValue = secure.Clone(h.EncryptedHMACValue)
	return &c
}

// standardHeaderFields is the fixed part of the binary header.
type standardHeaderFields struct {
	Flags        uint32
	SizeExtra    uint32
	AlgID        uint32
	AlgIDHash    uint32
	KeySize      uint32
	ProviderType uint32
	Reserved1    uint32
	Reserved2    uint32
}

// readFull reads exactly n bytes, reporting a short read as corruption.
func readFull(r io.Reader, n int, what string) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, crypto.Corruptf("truncated %s", what)
		}
		return nil, errors.Wrapf(err, "read %s", what)
	}
	return b, nil
}

func readUint32(r io.Reader, what string) (uint32, error) {
	b, err := readFull(r, 4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// parseStandardHeader reads headerSize followed by the header it announces.
func parseStandardHeader(r io.Reader, cfg *Config) (*EncryptionHeader, error) {
	size, err := readUint32(r, "header size")
	if err != nil {
		return nil, err
	}
	if size < minStandardHeaderSize {
		return nil, crypto.Corruptf("header size %d", size)
	}
	if err := cfg.checkLength("encryption header", int64(size)); err != nil {
		return nil, err
	}
	buf, err := readFull(r, int(size), "encryption header")
	if err != nil {
		return nil, err
	}

	var f standardHeaderFields
	if err := binary.Read(bytes.NewReader(buf[:minStandardHeaderSize]), binary.LittleEndian, &f); err != nil {
		return nil, crypto.Corruptf("header fields: %v", err)
	}

	var alg crypto.CipherAlgorithm
	switch {
	case f.AlgID == 0 && f.Flags&FlagAES != 0:
		alg = crypto.CipherAES128
	case f.AlgID == 0 && f.Flags&FlagCryptoAPI != 0:
		alg = crypto.CipherRC4
	default:
		if alg, err = crypto.CipherAlgorithmFromID(f.AlgID); err != nil {
			return nil, err
		}
	}
	switch alg {
	case crypto.CipherRC4, crypto.CipherAES128, crypto.CipherAES192, crypto.CipherAES256:
	default:
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%s in a binary header", alg)
	}

	hashAlg := crypto.HashSHA1
	if f.AlgIDHash != 0 {
		if hashAlg, err = crypto.HashAlgorithmFromID(f.AlgIDHash); err != nil {
			return nil, err
		}
		if hashAlg != crypto.HashSHA1 {
			return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "hash %s in a binary header", hashAlg)
		}
	}

	keyBits := int(f.KeySize)
	if keyBits == 0 && alg == crypto.CipherRC4 {
		keyBits = 40
	}
	if !alg.ValidKeyBits(keyBits) {
		return nil, crypto.Corruptf("key size %d for %s", keyBits, alg)
	}

	csp, err := crypto.DecodeUTF16(buf[minStandardHeaderSize:])
	if err != nil {
		return nil, crypto.Corruptf("CSP name: %v", err)
	}

	h := &EncryptionHeader{
		Flags:           f.Flags,
		SizeExtra:       f.SizeExtra,
		CipherAlgorithm: alg,
		HashAlgorithm:   hashAlg,
		KeyBits:         keyBits,
		BlockSize:       alg.BlockSize(),
		Provider:        crypto.CipherProvider(f.ProviderType),
		CSPName:         csp,
	}
	if !alg.IsStream() {
		h.ChainingMode = crypto.ChainingECB
	}
	return h, nil
}

// marshalStandard writes headerSize and the header.
func (h *EncryptionHeader) marshalStandard(w *bytes.Buffer) error {
	csp, err := crypto.EncodeUTF16(h.CSPName)
	if err != nil {
		return errors.Wrap(err, "encode CSP name")
	}
	csp = append(csp, 0, 0)

	f := standardHeaderFields{
		Flags:        h.Flags,
		SizeExtra:    h.SizeExtra,
		AlgID:        h.CipherAlgorithm.ID(),
		AlgIDHash:    h.HashAlgorithm.ID(),
		KeySize:      uint32(h.KeyBits), // #nosec G115 -- validated key sizes
		ProviderType: uint32(h.Provider),
	}
	size := uint32(minStandardHeaderSize + len(csp)) // #nosec G115 -- CSP names are short
	if err := binary.Write(w, binary.LittleEndian, size); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &f); err != nil {
		return err
	}
	_, err = w.Write(csp)
	return err
}
