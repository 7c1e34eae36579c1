/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// platform_test.go: Cross-platform behavior tests
package officecrypt_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	officecrypt "github.com/gitrgoliveira/go-officecrypt"
	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

// TestCrossPlatform_MemoryLocking tests that memory locking behaves correctly
// on all platforms (mlock on Unix/macOS, VirtualLock on Windows)
func TestCrossPlatform_MemoryLocking(t *testing.T) {
	data := []byte("test data for memory locking")

	// Lock memory
	err := secure.Lock(data)
	if err != nil {
		// Locking may fail without the right privileges or limits
		t.Logf("Lock failed on %s (may require elevated permissions): %v", runtime.GOOS, err)
		return
	}
	t.Logf("Lock succeeded on %s", runtime.GOOS)

	// Unlock memory
	if err := secure.Unlock(data); err != nil {
		t.Errorf("Unlock failed on %s after a successful Lock: %v", runtime.GOOS, err)
	}
}

// TestCrossPlatform_MemoryZeroing tests that memory zeroing works on all platforms
func TestCrossPlatform_MemoryZeroing(t *testing.T) {
	data := []byte("sensitive data to be zeroed")
	original := make([]byte, len(data))
	copy(original, data)

	// Zero the memory
	secure.Zero(data)

	// Verify all bytes are zero
	for i, b := range data {
		if b != 0 {
			t.Errorf("Byte at index %d is not zero: %v", i, b)
		}
	}

	// Verify we actually changed something
	if bytes.Equal(data, original) {
		t.Errorf("Zero() did not modify the data")
	}

	t.Logf("Memory zeroing works correctly on %s", runtime.GOOS)
}

// TestCrossPlatform_FileEncryption tests that encryption/decryption works
// identically on all platforms, including non-ASCII passwords
func TestCrossPlatform_FileEncryption(t *testing.T) {
	plaintext := []byte("Cross-platform test data: 日本語 ✓ Emoji 🔐")
	passwords := []string{"ascii", "pässwörd", "パスワード", "🔐key"}

	for _, mode := range allModes {
		for _, password := range passwords {
			t.Run(mode.String()+"/"+password, func(t *testing.T) {
				srcFile := filepath.Join(t.TempDir(), "plaintext.txt")
				pkgDir := filepath.Join(t.TempDir(), "encrypted.pkg")
				dstFile := filepath.Join(t.TempDir(), "decrypted.txt")

				// Write plaintext
				if err := os.WriteFile(srcFile, plaintext, 0600); err != nil {
					t.Fatalf("Failed to write plaintext: %v", err)
				}

				ctx := context.Background()

				// Encrypt
				if err := officecrypt.EncryptFile(ctx, srcFile, pkgDir, password, mode, modeOptions(t, mode)...); err != nil {
					t.Fatalf("EncryptFile failed on %s: %v", runtime.GOOS, err)
				}

				// Decrypt
				if err := officecrypt.DecryptFile(ctx, pkgDir, dstFile, password); err != nil {
					t.Fatalf("DecryptFile failed on %s: %v", runtime.GOOS, err)
				}

				// Verify
				decrypted, err := os.ReadFile(dstFile)
				if err != nil {
					t.Fatalf("Failed to read decrypted file: %v", err)
				}

				if !bytes.Equal(plaintext, decrypted) {
					t.Errorf("Decrypted data does not match original on %s", runtime.GOOS)
					t.Errorf("Original:  %q", plaintext)
					t.Errorf("Decrypted: %q", decrypted)
				}
			})
		}
	}
}

// TestCrossPlatform_LargeFile tests encryption of a larger file on all platforms
func TestCrossPlatform_LargeFile(t *testing.T) {
	size := 5 * 1024 * 1024
	plaintext := make([]byte, size)
	for i := range plaintext {
		plaintext[i] = byte(i % 256)
	}

	srcFile := filepath.Join(t.TempDir(), "large_plaintext.bin")
	pkgDir := filepath.Join(t.TempDir(), "large_encrypted.pkg")
	dstFile := filepath.Join(t.TempDir(), "large_decrypted.bin")

	// Write plaintext
	if err := os.WriteFile(srcFile, plaintext, 0600); err != nil {
		t.Fatalf("Failed to write large plaintext: %v", err)
	}

	ctx := context.Background()

	// Encrypt with progress tracking
	progressCalls := 0
	err := officecrypt.EncryptFile(ctx, srcFile, pkgDir, "pw", officecrypt.ModeCryptoAPI, officecrypt.WithProgress(func(p float64) {
		progressCalls++
		t.Logf("Encryption progress on %s: %.1f%%", runtime.GOOS, p*100)
	}))
	if err != nil {
		t.Fatalf("EncryptFile failed on %s: %v", runtime.GOOS, err)
	}

	if progressCalls == 0 {
		t.Errorf("Progress callback was never called on %s", runtime.GOOS)
	}

	// Decrypt with progress tracking
	progressCalls = 0
	err = officecrypt.DecryptFile(ctx, pkgDir, dstFile, "pw", officecrypt.WithProgress(func(p float64) {
		progressCalls++
		t.Logf("Decryption progress on %s: %.1f%%", runtime.GOOS, p*100)
	}))
	if err != nil {
		t.Fatalf("DecryptFile failed on %s: %v", runtime.GOOS, err)
	}

	if progressCalls == 0 {
		t.Errorf("Progress callback was never called on %s", runtime.GOOS)
	}

	// Verify file integrity
	decrypted, err := os.ReadFile(dstFile)
	if err != nil {
		t.Fatalf("Failed to read decrypted large file: %v", err)
	}

	if !bytes.Equal(plaintext, decrypted) {
		t.Errorf("Large file decryption failed on %s", runtime.GOOS)
		t.Errorf("Size mismatch: original=%d, decrypted=%d", len(plaintext), len(decrypted))
	}

	t.Logf("Large file encryption/decryption works correctly on %s (size=%d bytes)", runtime.GOOS, size)
}

// TestCrossPlatform_FilePermissions tests that output files are private
func TestCrossPlatform_FilePermissions(t *testing.T) {
	plaintext := []byte("test data")
	srcFile := filepath.Join(t.TempDir(), "perms_test.txt")
	pkgDir := filepath.Join(t.TempDir(), "perms_test.pkg")
	dstFile := filepath.Join(t.TempDir(), "perms_decrypted.txt")

	// Write with specific permissions
	if err := os.WriteFile(srcFile, plaintext, 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	ctx := context.Background()

	// Encrypt
	if err := officecrypt.EncryptFile(ctx, srcFile, pkgDir, "pw", officecrypt.ModeStandard); err != nil {
		t.Fatalf("EncryptFile failed: %v", err)
	}

	// Check encrypted entry permissions
	encInfo, err := os.Stat(filepath.Join(pkgDir, container.EncryptedPackageEntry))
	if err != nil {
		t.Fatalf("Failed to stat encrypted entry: %v", err)
	}

	// Decrypt
	if err := officecrypt.DecryptFile(ctx, pkgDir, dstFile, "pw"); err != nil {
		t.Fatalf("DecryptFile failed: %v", err)
	}

	// Check decrypted file exists and is readable
	dstInfo, err := os.Stat(dstFile)
	if err != nil {
		t.Fatalf("Failed to stat decrypted file: %v", err)
	}

	if runtime.GOOS != "windows" {
		if perm := dstInfo.Mode().Perm(); perm&0o077 != 0 {
			t.Errorf("decrypted file is accessible to others: %v", perm)
		}
	}

	t.Logf("File permissions on %s: encrypted=%v, decrypted=%v",
		runtime.GOOS, encInfo.Mode(), dstInfo.Mode())
}

// TestCrossPlatform_PathHandling tests that path separators work correctly
func TestCrossPlatform_PathHandling(t *testing.T) {
	// Create nested directory structure
	baseDir := t.TempDir()
	nestedDir := filepath.Join(baseDir, "subdir1", "subdir2")

	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatalf("Failed to create nested directories: %v", err)
	}

	plaintext := []byte("nested path test")
	srcFile := filepath.Join(nestedDir, "test.txt")
	pkgDir := filepath.Join(nestedDir, "new", "test.pkg")
	dstFile := filepath.Join(nestedDir, "test_decrypted.txt")

	// Write plaintext
	if err := os.WriteFile(srcFile, plaintext, 0600); err != nil {
		t.Fatalf("Failed to write to nested path: %v", err)
	}

	ctx := context.Background()

	// Encrypt in nested path; missing parents of the package are created
	if err := officecrypt.EncryptFile(ctx, srcFile, pkgDir, "pw", officecrypt.ModeBinaryRC4); err != nil {
		t.Fatalf("EncryptFile failed with nested path on %s: %v", runtime.GOOS, err)
	}

	// Decrypt in nested path
	if err := officecrypt.DecryptFile(ctx, pkgDir, dstFile, "pw"); err != nil {
		t.Fatalf("DecryptFile failed with nested path on %s: %v", runtime.GOOS, err)
	}

	// Verify
	decrypted, err := os.ReadFile(dstFile)
	if err != nil {
		t.Fatalf("Failed to read decrypted file from nested path: %v", err)
	}

	if !bytes.Equal(plaintext, decrypted) {
		t.Errorf("Nested path encryption/decryption failed on %s", runtime.GOOS)
	}

	t.Logf("Path handling works correctly on %s", runtime.GOOS)
}

// TestCrossPlatform_ConcurrentOperations tests concurrent encryption on all platforms
func TestCrossPlatform_ConcurrentOperations(t *testing.T) {
	const numFiles = 5

	ctx := context.Background()
	baseDir := t.TempDir()
	opts := modeOptions(t, officecrypt.ModeAgile)

	// Create and encrypt multiple files concurrently
	errCh := make(chan error, numFiles)

	for i := 0; i < numFiles; i++ {
		go func(idx int) {
			plaintext := []byte(fmt.Sprintf("concurrent test data %d", idx))
			password := fmt.Sprintf("password-%d", idx)
			srcFile := filepath.Join(baseDir, fmt.Sprintf("concurrent_%d.txt", idx))
			pkgDir := filepath.Join(baseDir, fmt.Sprintf("concurrent_%d.pkg", idx))
			dstFile := filepath.Join(baseDir, fmt.Sprintf("concurrent_%d_dec.txt", idx))

			// Write
			if err := os.WriteFile(srcFile, plaintext, 0600); err != nil {
				errCh <- err
				return
			}

			// Encrypt
			if err := officecrypt.EncryptFile(ctx, srcFile, pkgDir, password, officecrypt.ModeAgile, opts...); err != nil {
				errCh <- err
				return
			}

			// Decrypt
			if err := officecrypt.DecryptFile(ctx, pkgDir, dstFile, password, officecrypt.WithChecksum(true)); err != nil {
				errCh <- err
				return
			}

			// Verify
			decrypted, err := os.ReadFile(dstFile)
			if err != nil {
				errCh <- err
				return
			}

			if !bytes.Equal(plaintext, decrypted) {
				errCh <- os.ErrInvalid
				return
			}

			errCh <- nil
		}(i)
	}

	// Collect results
	for i := 0; i < numFiles; i++ {
		if err := <-errCh; err != nil {
			t.Errorf("Concurrent operation %d failed on %s: %v", i, runtime.GOOS, err)
		}
	}

	t.Logf("Concurrent operations work correctly on %s", runtime.GOOS)
}
