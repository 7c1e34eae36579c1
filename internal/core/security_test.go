/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-officecrypt/container"
)

// Two confirmations of the same password must not produce the same salt,
// verifier or ciphertext.
func TestConfirmPasswordIsRandomized(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			data := pattern(2000)
			dirA := container.NewMemDirectory()
			dirB := container.NewMemDirectory()
			infoA := encryptTo(t, dirA, mode, "same", data, fastOptions(t, mode)...)
			infoB := encryptTo(t, dirB, mode, "same", data, fastOptions(t, mode)...)

			assert.NotEqual(t, infoA.Verifier.Salt, infoB.Verifier.Salt, "salt reused")
			assert.NotEqual(t, infoA.Verifier.EncryptedVerifier, infoB.Verifier.EncryptedVerifier)

			pkgA, _ := dirA.Bytes(container.EncryptedPackageEntry)
			pkgB, _ := dirB.Bytes(container.EncryptedPackageEntry)
			assert.False(t, bytes.Equal(pkgA[8:], pkgB[8:]), "identical ciphertext")
		})
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	dir := container.NewMemDirectory()
	encryptTo(t, dir, ModeStandard, "pw", pattern(10))
	dec := openPackage(t, dir, "pw")

	key := dec.SecretKey()
	require.Len(t, key, 16)
	key[0] ^= 0xff
	assert.NotEqual(t, key, dec.SecretKey(), "SecretKey exposes internal state")

	v := dec.Verifier()
	require.Len(t, v, verifierSize)
	v[0] ^= 0xff
	assert.NotEqual(t, v, dec.Verifier(), "Verifier exposes internal state")
}

func TestSecretKeyBeforePasswordCheck(t *testing.T) {
	dir := container.NewMemDirectory()
	encryptTo(t, dir, ModeAgile, "pw", pattern(10), fastOptions(t, ModeAgile)...)
	info, err := ReadEncryptionInfo(dir)
	require.NoError(t, err)

	dec := info.Decryptor()
	assert.Nil(t, dec.SecretKey())
	assert.Nil(t, dec.Verifier())
	assert.Equal(t, int64(-1), dec.Length())

	ok, err := dec.VerifyPassword("nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, dec.SecretKey(), "failed check must not install a key")
}

// An open stream owns its own key copy and keeps working after the
// decryptor is destroyed.
func TestReaderOutlivesDecryptor(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			data := pattern(3 * AgileChunkSize)
			dir := container.NewMemDirectory()
			encryptTo(t, dir, mode, "pw", data, fastOptions(t, mode)...)

			dec := openPackage(t, dir, "pw")
			r, err := dec.DataStream(dir)
			require.NoError(t, err)
			defer r.Close()

			head := make([]byte, 100)
			_, err = io.ReadFull(r, head)
			require.NoError(t, err)

			dec.Destroy()

			rest, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, append(head, rest...))
		})
	}
}

func TestClonedDecryptorIsIndependent(t *testing.T) {
	dir := container.NewMemDirectory()
	data := pattern(1500)
	encryptTo(t, dir, ModeBinaryRC4, "pw", data)

	dec := openPackage(t, dir, "pw")
	clone := dec.Clone()
	dec.Destroy()

	require.NotNil(t, clone.SecretKey(), "clone shares key material")
	r, err := clone.DataStream(dir)
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, out)
	assert.Equal(t, int64(len(data)), clone.Length())
}

func TestClonedEncryptorIsIndependent(t *testing.T) {
	info, err := NewEncryptionInfo(ModeCryptoAPI)
	require.NoError(t, err)
	enc := info.Encryptor()
	require.NoError(t, enc.ConfirmPassword("pw"))

	clone := enc.Clone()
	enc.Destroy()
	assert.Nil(t, enc.SecretKey())
	assert.NotNil(t, clone.SecretKey())
	clone.Destroy()
}
