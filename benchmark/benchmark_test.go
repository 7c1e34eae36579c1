/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// benchmark_test.go: Performance benchmarks for go-officecrypt
package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	officecrypt "github.com/gitrgoliveira/go-officecrypt"
	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/secure"
)

var modes = []officecrypt.EncryptionMode{
	officecrypt.ModeAgile,
	officecrypt.ModeStandard,
	officecrypt.ModeCryptoAPI,
	officecrypt.ModeBinaryRC4,
}

// BenchmarkEncryptFile_1MB benchmarks encryption of a 1MB file
func BenchmarkEncryptFile_1MB(b *testing.B) {
	benchmarkEncryptFile(b, 1*1024*1024)
}

// BenchmarkEncryptFile_10MB benchmarks encryption of a 10MB file
func BenchmarkEncryptFile_10MB(b *testing.B) {
	benchmarkEncryptFile(b, 10*1024*1024)
}

// BenchmarkEncryptFile_100MB benchmarks encryption of a 100MB file
func BenchmarkEncryptFile_100MB(b *testing.B) {
	benchmarkEncryptFile(b, 100*1024*1024)
}

// BenchmarkDecryptFile_1MB benchmarks decryption of a 1MB file
func BenchmarkDecryptFile_1MB(b *testing.B) {
	benchmarkDecryptFile(b, 1*1024*1024)
}

// BenchmarkDecryptFile_10MB benchmarks decryption of a 10MB file
func BenchmarkDecryptFile_10MB(b *testing.B) {
	benchmarkDecryptFile(b, 10*1024*1024)
}

// BenchmarkDecryptFile_100MB benchmarks decryption of a 100MB file
func BenchmarkDecryptFile_100MB(b *testing.B) {
	benchmarkDecryptFile(b, 100*1024*1024)
}

func writeSource(b *testing.B, dir string, size int64) string {
	b.Helper()
	srcFile := filepath.Join(dir, "plaintext.bin")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	if err := os.WriteFile(srcFile, data, 0600); err != nil {
		b.Fatalf("Failed to create test file: %v", err)
	}
	return srcFile
}

// benchmarkEncryptFile is a helper function for encryption benchmarks
func benchmarkEncryptFile(b *testing.B, size int64) {
	for _, mode := range modes {
		b.Run(mode.String(), func(b *testing.B) {
			tmpDir := b.TempDir()
			srcFile := writeSource(b, tmpDir, size)
			ctx := context.Background()

			// Reset timer to exclude setup time
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				pkgDir := filepath.Join(tmpDir, fmt.Sprintf("encrypted_%d.pkg", i%10))
				if err := officecrypt.EncryptFile(ctx, srcFile, pkgDir, "benchmark", mode); err != nil {
					b.Fatalf("EncryptFile failed: %v", err)
				}
			}

			// Report throughput
			b.SetBytes(size)
		})
	}
}

// benchmarkDecryptFile is a helper function for decryption benchmarks
func benchmarkDecryptFile(b *testing.B, size int64) {
	for _, mode := range modes {
		b.Run(mode.String(), func(b *testing.B) {
			tmpDir := b.TempDir()
			srcFile := writeSource(b, tmpDir, size)
			ctx := context.Background()

			// Encrypt the file once for decryption benchmarks
			pkgDir := filepath.Join(tmpDir, "encrypted.pkg")
			if err := officecrypt.EncryptFile(ctx, srcFile, pkgDir, "benchmark", mode); err != nil {
				b.Fatalf("EncryptFile failed: %v", err)
			}

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				dstFile := filepath.Join(tmpDir, fmt.Sprintf("decrypted_%d.bin", i%10))
				if err := officecrypt.DecryptFile(ctx, pkgDir, dstFile, "benchmark"); err != nil {
					b.Fatalf("DecryptFile failed: %v", err)
				}
			}

			b.SetBytes(size)
		})
	}
}

// BenchmarkConfirmPassword measures key derivation at each mode's default
// spin count.
func BenchmarkConfirmPassword(b *testing.B) {
	for _, mode := range modes {
		b.Run(mode.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				info, err := officecrypt.NewEncryptionInfo(mode)
				if err != nil {
					b.Fatalf("NewEncryptionInfo failed: %v", err)
				}
				enc := info.Encryptor()
				if err := enc.ConfirmPassword("test password for benchmarking"); err != nil {
					b.Fatalf("ConfirmPassword failed: %v", err)
				}
				enc.Destroy()
			}
		})
	}
}

// BenchmarkRandomAccess reads the last chunk of a 10MB package, which
// only decrypts that chunk.
func BenchmarkRandomAccess(b *testing.B) {
	const size = 10 * 1024 * 1024
	dir := container.NewMemDirectory()
	err := officecrypt.EncryptPackage(context.Background(), bytes.NewReader(make([]byte, size)), dir, "benchmark", officecrypt.ModeCryptoAPI)
	if err != nil {
		b.Fatalf("EncryptPackage failed: %v", err)
	}
	info, err := officecrypt.ReadEncryptionInfo(dir)
	if err != nil {
		b.Fatalf("ReadEncryptionInfo failed: %v", err)
	}
	dec := info.Decryptor()
	defer dec.Destroy()
	if ok, err := dec.VerifyPassword("benchmark"); err != nil || !ok {
		b.Fatalf("VerifyPassword failed: %v", err)
	}

	buf := make([]byte, 512)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r, err := dec.DataStream(dir)
		if err != nil {
			b.Fatalf("DataStream failed: %v", err)
		}
		if _, err := r.Seek(-512, io.SeekEnd); err != nil {
			b.Fatalf("Seek failed: %v", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			b.Fatalf("Read failed: %v", err)
		}
		_ = r.Close()
	}
}

// BenchmarkMemoryZero benchmarks secure memory operations
func BenchmarkMemoryZero(b *testing.B) {
	data := make([]byte, 4096)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		// Fill with data
		for j := range data {
			data[j] = byte(j % 256)
		}
		// Zero it
		secure.Zero(data)
	}

	b.SetBytes(4096)
}
