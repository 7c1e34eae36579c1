/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// key.go: secret key material held by decryptors and encryptors
package core

import (
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
	"github.com/gitrgoliveira/go-officecrypt/internal/stream"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// keyMaterial is the secret state established by a password check or
// confirmation. It is never shared: clone copies every byte.
type keyMaterial struct {
	secretKey *crypto.SecureBuffer
	verifier  []byte
	hmacKey   []byte
	hmacValue []byte
}

func (k *keyMaterial) setSecretKey(b []byte) {
	k.secretKey.Destroy()
	k.secretKey = crypto.NewSecureBuffer(b)
}

func (k *keyMaterial) ready() bool {
	return k.secretKey != nil
}

// key returns the content key without copying.
func (k *keyMaterial) key() []byte {
	if k.secretKey == nil {
		return nil
	}
	return k.secretKey.Data()
}

// share hands a stream its own copy of the content key.
func (k *keyMaterial) share() *crypto.SecureBuffer {
	return k.secretKey.Clone()
}

func (k *keyMaterial) clone() keyMaterial {
	return keyMaterial{
		secretKey: k.secretKey.Clone(),
		verifier:  secure.Clone(k.verifier),
		hmacKey:   secure.Clone(k.hmacKey),
		hmacValue: secure.Clone(k.hmacValue),
	}
}

func (k *keyMaterial) destroy() {
	k.secretKey.Destroy()
	k.secretKey = nil
	secure.Zero(k.verifier)
	secure.Zero(k.hmacKey)
	secure.Zero(k.hmacValue)
	k.verifier, k.hmacKey, k.hmacValue = nil, nil, nil
}

// release destroys the key copy of a strategy that never reached a stream.
func release(s stream.Strategy) {
	if d, ok := s.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}
