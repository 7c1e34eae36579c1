/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"crypto/hmac"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// CalculateChecksum computes the keyed integrity checksum of an encrypted
// package: HMAC over the whole EncryptedPackage entry, size prefix included.
func CalculateChecksum(alg crypto.HashAlgorithm, key []byte, pkg io.Reader) ([]byte, error) {
	if _, err := alg.New(); err != nil {
		return nil, err
	}
	mac := hmac.New(func() hash.Hash {
		h, _ := alg.New()
		return h
	}, key)
	if _, err := io.Copy(mac, pkg); err != nil {
		return nil, errors.Wrap(err, "read encrypted package")
	}
	return mac.Sum(nil), nil
}

// VerifyChecksum reports whether pkg matches sum.
func VerifyChecksum(alg crypto.HashAlgorithm, key []byte, pkg io.Reader, sum []byte) (bool, error) {
	actual, err := CalculateChecksum(alg, key, pkg)
	if err != nil {
		return false, err
	}
	return secure.Equal(actual, sum), nil
}
