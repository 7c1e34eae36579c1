/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// checksum_test.go: integrity checksum tests
package core

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"testing"

	"github.com/pkg/errors"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
)

func TestChecksumKnownAnswer(t *testing.T) {
	// RFC 2202 test case 1
	key := bytes.Repeat([]byte{0x0b}, 20)
	sum, err := CalculateChecksum(crypto.HashSHA1, key, bytes.NewReader([]byte("Hi There")))
	if err != nil {
		t.Fatalf("CalculateChecksum failed: %v", err)
	}
	if got := hex.EncodeToString(sum); got != "b617318655057264e28bc0b6fb378c8ef146be00" {
		t.Errorf("unexpected HMAC-SHA1: %s", got)
	}

	ok, err := VerifyChecksum(crypto.HashSHA1, key, bytes.NewReader([]byte("Hi There")), sum)
	if err != nil {
		t.Fatalf("VerifyChecksum failed: %v", err)
	}
	if !ok {
		t.Error("checksum verification failed for matching data")
	}
}

func TestChecksumVerify_Mismatch(t *testing.T) {
	key := []byte("key")
	sum, err := CalculateChecksum(crypto.HashSHA256, key, bytes.NewReader([]byte("Original data")))
	if err != nil {
		t.Fatalf("CalculateChecksum failed: %v", err)
	}
	ok, err := VerifyChecksum(crypto.HashSHA256, key, bytes.NewReader([]byte("Modified data")), sum)
	if err != nil {
		t.Fatalf("VerifyChecksum failed: %v", err)
	}
	if ok {
		t.Error("checksum verification should fail for modified data")
	}

	ok, _ = VerifyChecksum(crypto.HashSHA256, key, bytes.NewReader([]byte("Original data")), sum[:10])
	if ok {
		t.Error("checksum verification should fail for a short checksum")
	}
}

func TestChecksumUnknownHash(t *testing.T) {
	if _, err := CalculateChecksum(crypto.HashNone, []byte("k"), bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for unknown hash")
	}
}

func TestAgileIntegrityRoundTrip(t *testing.T) {
	dir := container.NewMemDirectory()
	info := encryptTo(t, dir, ModeAgile, "pw", pattern(10000), fastOptions(t, ModeAgile)...)
	if len(info.Header.EncryptedHMACValue) == 0 {
		t.Fatal("encrypted HMAC value not stored")
	}

	dec := openPackage(t, dir, "pw").(*agileDecryptor)
	if err := dec.VerifyIntegrity(dir); err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}

	pkg, _ := dir.Bytes(container.EncryptedPackageEntry)
	sum, err := CalculateChecksum(crypto.HashSHA1, dec.IntegrityHMACKey(), bytes.NewReader(pkg))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sum, dec.IntegrityHMACValue()) {
		t.Error("stored HMAC does not cover the whole package entry")
	}

	var out bytes.Buffer
	if err := DecryptPackage(context.Background(), dir, &out, "pw", WithChecksum(true)); err != nil {
		t.Fatalf("DecryptPackage with checksum failed: %v", err)
	}
}

func TestAgileIntegrityDetectsTampering(t *testing.T) {
	dir := container.NewMemDirectory()
	encryptTo(t, dir, ModeAgile, "pw", pattern(10000), fastOptions(t, ModeAgile)...)

	pkg, _ := dir.Bytes(container.EncryptedPackageEntry)
	pkg[100] ^= 0x01
	dir.Put(container.EncryptedPackageEntry, pkg)

	dec := openPackage(t, dir, "pw").(*agileDecryptor)
	if err := dec.VerifyIntegrity(dir); !errors.Is(err, crypto.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}

	err := DecryptPackage(context.Background(), dir, io.Discard, "pw", WithChecksum(true))
	if !errors.Is(err, crypto.ErrIntegrity) {
		t.Fatalf("expected integrity error from DecryptPackage, got %v", err)
	}

	// without the option the tampered chunk decrypts to garbage silently
	if err := DecryptPackage(context.Background(), dir, io.Discard, "pw"); err != nil {
		t.Fatalf("DecryptPackage without checksum failed: %v", err)
	}
}

func TestIntegrityMissingData(t *testing.T) {
	info, err := NewEncryptionInfo(ModeAgile, fastOptions(t, ModeAgile)...)
	if err != nil {
		t.Fatal(err)
	}
	enc := info.Encryptor()
	if err := enc.ConfirmPassword("pw"); err != nil {
		t.Fatal(err)
	}
	var raw bytes.Buffer
	w, err := enc.RawStream(&raw)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	dec := info.Clone().Decryptor().(*agileDecryptor)
	if ok, err := dec.VerifyPassword("pw"); err != nil || !ok {
		t.Fatalf("VerifyPassword = %v, %v", ok, err)
	}
	if err := dec.VerifyIntegrity(container.NewMemDirectory()); !errors.Is(err, crypto.ErrIntegrity) {
		t.Fatalf("expected integrity error without HMAC value, got %v", err)
	}
}
