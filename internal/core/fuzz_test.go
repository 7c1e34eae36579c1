//go:build go1.25
// +build go1.25

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

	"github.com/gitrgoliveira/go-officecrypt/container"
)

func FuzzParseEncryptionInfo(f *testing.F) {
	for _, mode := range allModes {
		info, err := NewEncryptionInfo(mode, fastOptions(f, mode)...)
		if err != nil {
			f.Fatalf("NewEncryptionInfo failed: %v", err)
		}
		if err := info.Encryptor().ConfirmPassword("pw"); err != nil {
			f.Fatalf("ConfirmPassword failed: %v", err)
		}
		data, err := info.MarshalBinary()
		if err != nil {
			f.Fatalf("MarshalBinary failed: %v", err)
		}
		f.Add(data)
	}
	f.Add([]byte{})
	f.Add([]byte{4, 0, 4, 0, 0x40, 0, 0, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		info, err := ParseEncryptionInfo(bytes.NewReader(data))
		if err != nil {
			return
		}
		// Whatever parses must survive a password check without panicking.
		_, _ = info.Decryptor().VerifyPassword("pw")
	})
}

func FuzzDecryptPackage(f *testing.F) {
	dir := container.NewMemDirectory()
	encryptTo(f, dir, ModeCryptoAPI, "pw", []byte("test data"))
	infoEntry, _ := dir.Bytes(container.EncryptionInfoEntry)
	pkg, _ := dir.Bytes(container.EncryptedPackageEntry)
	f.Add(pkg)
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, data []byte) {
		d := container.NewMemDirectory()
		d.Put(container.EncryptionInfoEntry, infoEntry)
		d.Put(container.EncryptedPackageEntry, data)
		dec := openPackage(t, d, "pw")
		defer dec.Destroy()
		r, err := dec.DataStream(d)
		if err != nil {
			return
		}
		defer r.Close()
		_, _ = io.Copy(io.Discard, r)
	})
}
