/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
)

func TestRoundTripAllModes(t *testing.T) {
	lengths := []int{0, 1, 15, 16, 511, 512, 513, 4095, 4096, 4097, 3*4096 + 100}
	for _, mode := range allModes {
		for _, n := range lengths {
			mode, n := mode, n
			t.Run(fmt.Sprintf("%s/%d", mode, n), func(t *testing.T) {
				dir := container.NewMemDirectory()
				data := pattern(n)
				encryptTo(t, dir, mode, "secret", data, fastOptions(t, mode)...)

				pkg, ok := dir.Bytes(container.EncryptedPackageEntry)
				require.True(t, ok)
				require.GreaterOrEqual(t, len(pkg), 8)
				assert.Equal(t, uint64(n), binary.LittleEndian.Uint64(pkg), "size prefix")

				out := decryptFrom(t, dir, "secret", fastOptions(t, mode)...)
				assert.Equal(t, data, out, "length %d", n)
			})
		}
	}
}

func TestAgileTwoChunkPackage(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i % 256)
	}
	dir := container.NewMemDirectory()
	info := encryptTo(t, dir, ModeAgile, "test", data)
	assert.Equal(t, crypto.CipherAES128, info.Header.CipherAlgorithm)
	assert.Equal(t, crypto.ChainingCBC, info.Header.ChainingMode)
	assert.Equal(t, AgileSpinCount, info.Verifier.SpinCount)

	pkg, _ := dir.Bytes(container.EncryptedPackageEntry)
	// 4096 byte chunk plus 904 bytes padded to 912
	assert.Len(t, pkg, 8+4096+912)

	parsed, err := ReadEncryptionInfo(dir)
	require.NoError(t, err)
	ok, err := parsed.Decryptor().VerifyPassword("wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = parsed.Decryptor().DataStream(dir)
	assert.ErrorIs(t, err, crypto.ErrNotInitialized)

	assert.Equal(t, data, decryptFrom(t, dir, "test"))
}

func TestWrongPasswordAllModes(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			dir := container.NewMemDirectory()
			encryptTo(t, dir, mode, "right", pattern(100), fastOptions(t, mode)...)

			info, err := ReadEncryptionInfo(dir)
			require.NoError(t, err)
			dec := info.Decryptor()
			ok, err := dec.VerifyPassword("wrong")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, dec.SecretKey())

			_, err = dec.DataStream(dir)
			assert.ErrorIs(t, err, crypto.ErrNotInitialized)
			_, err = dec.RawStream(bytes.NewReader(nil), 0, 0)
			assert.ErrorIs(t, err, crypto.ErrNotInitialized)
		})
	}
}

func TestAgileAlgorithmVariants(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"AES-256/SHA512", []Option{WithCipher(crypto.CipherAES256), WithHash(crypto.HashSHA512)}},
		{"AES-192/SHA256/CFB", []Option{WithCipher(crypto.CipherAES192), WithHash(crypto.HashSHA256), WithChainingMode(crypto.ChainingCFB)}},
		{"3DES/SHA384", []Option{WithCipher(crypto.Cipher3DES), WithHash(crypto.HashSHA384)}},
		{"AES-128/SHA1/CFB", []Option{WithChainingMode(crypto.ChainingCFB)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append(fastOptions(t, ModeAgile), tt.opts...)
			data := pattern(2*AgileChunkSize + 77)
			dir := container.NewMemDirectory()
			encryptTo(t, dir, ModeAgile, "pw", data, opts...)
			assert.Equal(t, data, decryptFrom(t, dir, "pw"))
		})
	}
}

func TestCryptoAPIKeySizes(t *testing.T) {
	for _, bits := range []int{40, 56, 128} {
		dir := container.NewMemDirectory()
		data := pattern(3*RC4ChunkSize + 5)
		info := encryptTo(t, dir, ModeCryptoAPI, "pw", data, WithKeyBits(bits))
		assert.Equal(t, bits, info.Header.KeyBits)

		parsed, err := ReadEncryptionInfo(dir)
		require.NoError(t, err)
		assert.Equal(t, ModeCryptoAPI, parsed.Mode)
		assert.Equal(t, bits, parsed.Header.KeyBits)
		assert.Equal(t, data, decryptFrom(t, dir, "pw"), "%d bit key", bits)
	}
}

func TestCryptoAPIBlockKeyWidening(t *testing.T) {
	h := &EncryptionHeader{HashAlgorithm: crypto.HashSHA1, KeyBits: 40}
	k, err := cryptoAPIBlockKey(h)([]byte("secret"), 3)
	require.NoError(t, err)
	require.Len(t, k, 16)
	assert.Equal(t, make([]byte, 11), k[5:])

	h.KeyBits = 128
	k, err = cryptoAPIBlockKey(h)([]byte("secret"), 3)
	require.NoError(t, err)
	assert.Len(t, k, 16)
}

func TestBinaryRC4LongPasswordTruncated(t *testing.T) {
	long := string(bytes.Repeat([]byte("p"), 300))
	dir := container.NewMemDirectory()
	encryptTo(t, dir, ModeBinaryRC4, long, pattern(10))

	info, err := ReadEncryptionInfo(dir)
	require.NoError(t, err)
	ok, err := info.Decryptor().VerifyPassword(long[:maxBinaryRC4Password])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBinaryRC4TruncatesUTF16CodeUnits(t *testing.T) {
	v := &EncryptionVerifier{Salt: pattern(16)}
	prefix := strings.Repeat("p", maxBinaryRC4Password-1)

	// U+1F600 and U+1F601 share the high surrogate 0xD83D, which is the
	// 255th code unit; the low surrogates are cut off.
	k1, err := binaryRC4SecretKey(prefix+"\U0001F600", v)
	require.NoError(t, err)
	k2, err := binaryRC4SecretKey(prefix+"\U0001F601", v)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := binaryRC4SecretKey(prefix+"q", v)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestStandardKeyDerivationIsDeterministic(t *testing.T) {
	info, err := NewEncryptionInfo(ModeStandard, WithCipher(crypto.CipherAES256))
	require.NoError(t, err)
	info.Verifier.Salt = pattern(16)

	k1, err := standardSecretKey("pw", info.Header, info.Verifier)
	require.NoError(t, err)
	k2, err := standardSecretKey("pw", info.Header, info.Verifier)
	require.NoError(t, err)
	k3, err := standardSecretKey("pw2", info.Header, info.Verifier)
	require.NoError(t, err)

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestSkipMatchesSequentialRead(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			data := pattern(6*AgileChunkSize + 10)
			dir := container.NewMemDirectory()
			encryptTo(t, dir, mode, "pw", data, fastOptions(t, mode)...)

			dec := openPackage(t, dir, "pw", fastOptions(t, mode)...)
			r, err := dec.DataStream(dir)
			require.NoError(t, err)
			defer r.Close()

			skip := int64(5*AgileChunkSize + 3)
			n, err := r.Skip(skip)
			require.NoError(t, err)
			require.Equal(t, skip, n)
			rest, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data[skip:], rest)

			_, err = r.Seek(100, io.SeekStart)
			require.NoError(t, err)
			head := make([]byte, 50)
			_, err = io.ReadFull(r, head)
			require.NoError(t, err)
			assert.Equal(t, data[100:150], head)
		})
	}
}

func TestRawStreamRoundTrip(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			info, err := NewEncryptionInfo(mode, fastOptions(t, mode)...)
			require.NoError(t, err)
			enc := info.Encryptor()
			require.NoError(t, enc.ConfirmPassword("pw"))

			data := pattern(2000)
			var buf bytes.Buffer
			w, err := enc.RawStream(&buf)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			dec := info.Clone().Decryptor()
			ok, err := dec.VerifyPassword("pw")
			require.NoError(t, err)
			require.True(t, ok)

			r, err := dec.RawStream(bytes.NewReader(buf.Bytes()), int64(len(data)), 0)
			require.NoError(t, err)
			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, out)
			assert.Equal(t, int64(-1), dec.Length())
		})
	}
}

func TestRawStreamInitialPositionRC4(t *testing.T) {
	for _, mode := range []EncryptionMode{ModeCryptoAPI, ModeBinaryRC4} {
		t.Run(mode.String(), func(t *testing.T) {
			info, err := NewEncryptionInfo(mode)
			require.NoError(t, err)
			enc := info.Encryptor()
			require.NoError(t, enc.ConfirmPassword("pw"))

			data := pattern(2000)
			var buf bytes.Buffer
			w, err := enc.RawStream(&buf)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			dec := info.Clone().Decryptor()
			ok, err := dec.VerifyPassword("pw")
			require.NoError(t, err)
			require.True(t, ok)

			const start = 700
			r, err := dec.RawStream(io.MultiReader(bytes.NewReader(buf.Bytes()[start:])), int64(len(data)), start)
			require.NoError(t, err)
			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data[start:], out)
		})
	}
}
