/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrgoliveira/go-officecrypt/container"
)

var allModes = []EncryptionMode{ModeAgile, ModeStandard, ModeCryptoAPI, ModeBinaryRC4}

// fastOptions keeps the agile password hash cheap. The other modes have a
// fixed iteration count.
func fastOptions(t testing.TB, mode EncryptionMode) []Option {
	t.Helper()
	if mode != ModeAgile {
		return nil
	}
	opt, err := WithSpinCount(10)
	require.NoError(t, err)
	return []Option{opt}
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func encryptTo(t testing.TB, dir container.Directory, mode EncryptionMode, password string, data []byte, opts ...Option) *EncryptionInfo {
	t.Helper()
	info, err := NewEncryptionInfo(mode, opts...)
	require.NoError(t, err)
	enc := info.Encryptor()
	require.NoError(t, enc.ConfirmPassword(password))
	w, err := enc.DataStream(dir)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return info
}

func openPackage(t testing.TB, dir container.Directory, password string, opts ...Option) Decryptor {
	t.Helper()
	info, err := ReadEncryptionInfo(dir, opts...)
	require.NoError(t, err)
	dec := info.Decryptor()
	ok, err := dec.VerifyPassword(password)
	require.NoError(t, err)
	require.True(t, ok, "password rejected")
	return dec
}

func decryptFrom(t testing.TB, dir container.Directory, password string, opts ...Option) []byte {
	t.Helper()
	dec := openPackage(t, dir, password, opts...)
	r, err := dec.DataStream(dir)
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}
