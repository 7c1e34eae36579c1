/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"crypto/md5"  // #nosec G501 -- mandated by the binary RC4 format
	"crypto/sha1" // #nosec G505 -- mandated by the standard and CryptoAPI formats
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/pkg/errors"
	"golang.org/x/crypto/md4"       //nolint:staticcheck // listed in agile descriptors
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // listed in agile descriptors
)

// HashAlgorithm identifies a digest used for key derivation and integrity.
type HashAlgorithm uint8

const (
	HashNone HashAlgorithm = iota
	HashSHA1
	HashSHA224
	HashSHA256
	HashSHA384
	HashSHA512
	HashMD5
	HashMD4
	HashRIPEMD160
)

type hashInfo struct {
	id      uint32 // ALG_ID in binary headers, 0 if not representable
	xmlName string
	size    int
	newFn   func() hash.Hash
}

var hashTable = map[HashAlgorithm]hashInfo{
	HashSHA1:      {0x8004, "SHA1", sha1.Size, sha1.New},
	HashSHA224:    {0, "SHA224", sha256.Size224, sha256.New224},
	HashSHA256:    {0x800C, "SHA256", sha256.Size, sha256.New},
	HashSHA384:    {0x800D, "SHA384", sha512.Size384, sha512.New384},
	HashSHA512:    {0x800E, "SHA512", sha512.Size, sha512.New},
	HashMD5:       {0x8003, "MD5", md5.Size, md5.New},
	HashMD4:       {0x8002, "MD4", md4.Size, md4.New},
	HashRIPEMD160: {0, "RIPEMD-160", ripemd160.Size, ripemd160.New},
}

// String returns the descriptor name of the algorithm.
func (h HashAlgorithm) String() string {
	if info, ok := hashTable[h]; ok {
		return info.xmlName
	}
	return "Unknown"
}

// ID returns the binary header identifier, or 0 when the algorithm has none.
func (h HashAlgorithm) ID() uint32 {
	return hashTable[h].id
}

// Size returns the digest length in bytes.
func (h HashAlgorithm) Size() int {
	return hashTable[h].size
}

// New returns a fresh digest instance.
func (h HashAlgorithm) New() (hash.Hash, error) {
	info, ok := hashTable[h]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "hash algorithm %d", h)
	}
	return info.newFn(), nil
}

// Sum hashes the concatenation of parts.
func (h HashAlgorithm) Sum(parts ...[]byte) ([]byte, error) {
	d, err := h.New()
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		d.Write(p)
	}
	return d.Sum(nil), nil
}

// HashAlgorithmFromID maps a binary header ALG_ID to a HashAlgorithm.
func HashAlgorithmFromID(id uint32) (HashAlgorithm, error) {
	for alg, info := range hashTable {
		if info.id != 0 && info.id == id {
			return alg, nil
		}
	}
	return HashNone, errors.Wrapf(ErrUnsupportedAlgorithm, "hash algorithm id 0x%x", id)
}

// HashAlgorithmFromName maps an agile descriptor name to a HashAlgorithm.
func HashAlgorithmFromName(name string) (HashAlgorithm, error) {
	for alg, info := range hashTable {
		if info.xmlName == name {
			return alg, nil
		}
	}
	return HashNone, errors.Wrapf(ErrUnsupportedAlgorithm, "hash algorithm %q", name)
}
