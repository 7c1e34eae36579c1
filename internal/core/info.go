/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// info.go: EncryptionInfo parsing, construction and mode dispatch
package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gitrgoliveira/go-officecrypt/container"
	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
)

// EncryptionInfo is the parsed descriptor of an encrypted package: the
// version pair, the flags and one header and verifier. It builds and caches
// the Decryptor and Encryptor matching its mode.
type EncryptionInfo struct {
	VersionMajor uint16
	VersionMinor uint16
	Flags        uint32
	Mode         EncryptionMode
	Header       *EncryptionHeader
	Verifier     *EncryptionVerifier

	cfg       *Config
	mu        sync.Mutex
	decryptor Decryptor
	encryptor Encryptor
}

// NewEncryptionInfo returns a descriptor for writing a new package in mode.
// Options override the mode defaults where the format allows it.
func NewEncryptionInfo(mode EncryptionMode, opts ...Option) (*EncryptionInfo, error) {
	cfg := newConfig(opts...)
	var (
		info *EncryptionInfo
		err  error
	)
	switch mode {
	case ModeAgile:
		info, err = newAgileInfo(cfg)
	case ModeStandard:
		info, err = newStandardInfo(cfg)
	case ModeCryptoAPI:
		info, err = newCryptoAPIInfo(cfg)
	case ModeBinaryRC4:
		info, err = newBinaryRC4Info(cfg)
	default:
		return nil, crypto.Unsupportedf("encryption mode %s", mode)
	}
	if err != nil {
		return nil, err
	}
	info.Mode = mode
	info.cfg = cfg
	return info, nil
}

func orCipher(alg, def crypto.CipherAlgorithm) crypto.CipherAlgorithm {
	if alg == crypto.CipherNone {
		return def
	}
	return alg
}

func orHash(alg, def crypto.HashAlgorithm) crypto.HashAlgorithm {
	if alg == crypto.HashNone {
		return def
	}
	return alg
}

func keyBitsFor(cfg *Config, alg crypto.CipherAlgorithm) (int, error) {
	bits := cfg.KeyBits
	if bits == 0 {
		bits = alg.DefaultKeyBits()
	}
	if !alg.ValidKeyBits(bits) {
		return 0, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%d bit key for %s", bits, alg)
	}
	return bits, nil
}

func newAgileInfo(cfg *Config) (*EncryptionInfo, error) {
	alg := orCipher(cfg.CipherAlgorithm, crypto.CipherAES128)
	if alg.IsStream() {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%s in an agile descriptor", alg)
	}
	hashAlg := orHash(cfg.HashAlgorithm, crypto.HashSHA1)
	if _, err := hashAlg.New(); err != nil {
		return nil, err
	}
	keyBits, err := keyBitsFor(cfg, alg)
	if err != nil {
		return nil, err
	}
	chaining := cfg.ChainingMode
	switch chaining {
	case crypto.ChainingNone:
		chaining = crypto.ChainingCBC
	case crypto.ChainingCBC, crypto.ChainingCFB:
	default:
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "chaining mode %s in an agile descriptor", chaining)
	}
	spin := cfg.SpinCount
	if spin == DefaultSpinCount {
		spin = AgileSpinCount
	}

	h := &EncryptionHeader{
		Flags:           FlagAgile,
		CipherAlgorithm: alg,
		HashAlgorithm:   hashAlg,
		KeyBits:         keyBits,
		BlockSize:       alg.BlockSize(),
		ChainingMode:    chaining,
		Provider:        alg.Provider(),
	}
	return &EncryptionInfo{
		VersionMajor: versionAgileMajor,
		VersionMinor: versionAgileMinor,
		Flags:        FlagAgile,
		Header:       h,
		Verifier:     verifierFor(h, spin),
	}, nil
}

func newStandardInfo(cfg *Config) (*EncryptionInfo, error) {
	alg := orCipher(cfg.CipherAlgorithm, crypto.CipherAES128)
	switch alg {
	case crypto.CipherAES128, crypto.CipherAES192, crypto.CipherAES256:
	default:
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%s in a standard descriptor", alg)
	}
	if hashAlg := orHash(cfg.HashAlgorithm, crypto.HashSHA1); hashAlg != crypto.HashSHA1 {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "hash %s in a standard descriptor", hashAlg)
	}
	if cfg.ChainingMode != crypto.ChainingNone && cfg.ChainingMode != crypto.ChainingECB {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "chaining mode %s in a standard descriptor", cfg.ChainingMode)
	}
	if cfg.SpinCount != DefaultSpinCount && cfg.SpinCount != StandardSpinCount {
		return nil, errors.Errorf("standard encryption uses a fixed spin count of %d", StandardSpinCount)
	}
	keyBits, err := keyBitsFor(cfg, alg)
	if err != nil {
		return nil, err
	}

	flags := FlagCryptoAPI | FlagAES
	h := &EncryptionHeader{
		Flags:           flags,
		CipherAlgorithm: alg,
		HashAlgorithm:   crypto.HashSHA1,
		KeyBits:         keyBits,
		BlockSize:       alg.BlockSize(),
		ChainingMode:    crypto.ChainingECB,
		Provider:        crypto.ProviderAES,
		CSPName:         crypto.ProviderAES.CSPName(),
	}
	return &EncryptionInfo{
		VersionMajor: versionStandardMajor,
		VersionMinor: versionStandardMinor,
		Flags:        flags,
		Header:       h,
		Verifier:     verifierFor(h, StandardSpinCount),
	}, nil
}

func newCryptoAPIInfo(cfg *Config) (*EncryptionInfo, error) {
	alg := orCipher(cfg.CipherAlgorithm, crypto.CipherRC4)
	if alg != crypto.CipherRC4 {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%s in a CryptoAPI descriptor", alg)
	}
	if hashAlg := orHash(cfg.HashAlgorithm, crypto.HashSHA1); hashAlg != crypto.HashSHA1 {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "hash %s in a CryptoAPI descriptor", hashAlg)
	}
	if cfg.SpinCount != DefaultSpinCount && cfg.SpinCount != 0 {
		return nil, errors.New("CryptoAPI encryption does not iterate the password hash")
	}
	keyBits, err := keyBitsFor(cfg, alg)
	if err != nil {
		return nil, err
	}

	h := &EncryptionHeader{
		Flags:           FlagCryptoAPI,
		CipherAlgorithm: alg,
		HashAlgorithm:   crypto.HashSHA1,
		KeyBits:         keyBits,
		Provider:        crypto.ProviderRC4,
		CSPName:         crypto.ProviderRC4.CSPName(),
	}
	return &EncryptionInfo{
		VersionMajor: versionStandardMajor,
		VersionMinor: versionStandardMinor,
		Flags:        FlagCryptoAPI,
		Header:       h,
		Verifier:     verifierFor(h, 0),
	}, nil
}

func newBinaryRC4Info(cfg *Config) (*EncryptionInfo, error) {
	if alg := orCipher(cfg.CipherAlgorithm, crypto.CipherRC4); alg != crypto.CipherRC4 {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%s in a binary RC4 descriptor", alg)
	}
	if hashAlg := orHash(cfg.HashAlgorithm, crypto.HashMD5); hashAlg != crypto.HashMD5 {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "hash %s in a binary RC4 descriptor", hashAlg)
	}
	if cfg.KeyBits != 0 && cfg.KeyBits != 40 {
		return nil, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%d bit key in a binary RC4 descriptor", cfg.KeyBits)
	}
	h := binaryRC4Header()
	return &EncryptionInfo{
		VersionMajor: versionBinaryRC4Major,
		VersionMinor: versionBinaryRC4Minor,
		Header:       h,
		Verifier:     verifierFor(h, 0),
	}, nil
}

func binaryRC4Header() *EncryptionHeader {
	return &EncryptionHeader{
		CipherAlgorithm: crypto.CipherRC4,
		HashAlgorithm:   crypto.HashMD5,
		KeyBits:         40,
		Provider:        crypto.ProviderRC4,
	}
}

// ReadEncryptionInfo parses the EncryptionInfo entry of dir.
func ReadEncryptionInfo(dir container.Directory, opts ...Option) (*EncryptionInfo, error) {
	rc, err := dir.OpenEntry(container.EncryptionInfoEntry)
	if err != nil {
		return nil, errors.Wrap(err, "open encryption info")
	}
	defer func() {
		_ = rc.Close()
	}()
	return ParseEncryptionInfo(rc, opts...)
}

// ParseEncryptionInfo parses a descriptor from r. Binary descriptors are
// read field by field, so r is left positioned after the verifier; this is
// how descriptors embedded in legacy document streams are consumed.
func ParseEncryptionInfo(r io.Reader, opts ...Option) (*EncryptionInfo, error) {
	cfg := newConfig(opts...)
	var version [4]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, crypto.Corruptf("truncated version")
	}
	info := &EncryptionInfo{
		VersionMajor: binary.LittleEndian.Uint16(version[0:]),
		VersionMinor: binary.LittleEndian.Uint16(version[2:]),
		cfg:          cfg,
	}
	major, minor := info.VersionMajor, info.VersionMinor

	var err error
	switch {
	case major == versionBinaryRC4Major && minor == versionBinaryRC4Minor:
		info.Mode = ModeBinaryRC4
		info.Header = binaryRC4Header()
		info.Verifier, err = parseBinaryRC4Verifier(r, info.Header)
	case major == versionAgileMajor && minor == versionAgileMinor:
		info.Mode = ModeAgile
		err = info.parseAgile(r)
	case (major == 3 || major == 4) && minor == 3:
		return nil, crypto.Unsupportedf("extensible encryption %d.%d", major, minor)
	case major >= 2 && major <= 4 && minor == 2:
		err = info.parseStandard(r)
	default:
		return nil, crypto.Unsupportedf("version %d.%d", major, minor)
	}
	if err != nil {
		return nil, err
	}

	cfg.Logger.WithFields(logrus.Fields{
		"version": info.version(),
		"mode":    info.Mode,
		"cipher":  info.Header.CipherAlgorithm,
		"hash":    info.Header.HashAlgorithm,
		"keyBits": info.Header.KeyBits,
	}).Debug("parsed encryption info")
	return info, nil
}

func (info *EncryptionInfo) version() string {
	return fmt.Sprintf("%d.%d", info.VersionMajor, info.VersionMinor)
}

func (info *EncryptionInfo) parseAgile(r io.Reader) error {
	flags, err := readUint32(r, "flags")
	if err != nil {
		return err
	}
	if flags != FlagAgile {
		return crypto.Corruptf("agile flags 0x%x", flags)
	}
	info.Flags = flags

	limit := int64(info.cfg.MaxRecordLength)
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return errors.Wrap(err, "read agile descriptor")
	}
	if err := info.cfg.checkLength("agile descriptor", int64(len(data))); err != nil {
		return err
	}
	info.Header, info.Verifier, err = parseAgileDescriptor(data)
	return err
}

func (info *EncryptionInfo) parseStandard(r io.Reader) error {
	flags, err := readUint32(r, "flags")
	if err != nil {
		return err
	}
	if flags&FlagExternal != 0 {
		return crypto.Unsupportedf("external encryption")
	}
	if flags&FlagCryptoAPI == 0 {
		return crypto.Corruptf("flags 0x%x without fCryptoAPI", flags)
	}
	info.Flags = flags

	h, err := parseStandardHeader(r, info.cfg)
	if err != nil {
		return err
	}
	aes := !h.CipherAlgorithm.IsStream()
	if (flags&FlagAES != 0) != aes {
		return crypto.Corruptf("flags 0x%x disagree with %s", flags, h.CipherAlgorithm)
	}
	spin := 0
	info.Mode = ModeCryptoAPI
	if aes {
		spin = StandardSpinCount
		info.Mode = ModeStandard
	}
	info.Header = h
	info.Verifier, err = parseStandardVerifier(r, h, spin)
	return err
}

// MarshalBinary serializes the descriptor in the layout of its mode.
func (info *EncryptionInfo) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, info.VersionMajor)
	_ = binary.Write(&buf, binary.LittleEndian, info.VersionMinor)

	switch info.Mode {
	case ModeBinaryRC4:
		info.Verifier.marshalBinaryRC4(&buf)
	case ModeStandard, ModeCryptoAPI:
		_ = binary.Write(&buf, binary.LittleEndian, info.Flags)
		if err := info.Header.marshalStandard(&buf); err != nil {
			return nil, err
		}
		if err := info.Verifier.marshalStandard(&buf); err != nil {
			return nil, err
		}
	case ModeAgile:
		_ = binary.Write(&buf, binary.LittleEndian, info.Flags)
		data, err := marshalAgileDescriptor(info.Header, info.Verifier)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	default:
		return nil, crypto.Unsupportedf("encryption mode %s", info.Mode)
	}
	return buf.Bytes(), nil
}

// Decryptor returns the decryptor for this descriptor, creating it on the
// first call.
func (info *EncryptionInfo) Decryptor() Decryptor {
	info.mu.Lock()
	defer info.mu.Unlock()
	if info.decryptor == nil {
		switch info.Mode {
		case ModeAgile:
			info.decryptor = newAgileDecryptor(info)
		case ModeStandard:
			info.decryptor = newStandardDecryptor(info)
		case ModeCryptoAPI:
			info.decryptor = newCryptoAPIDecryptor(info)
		case ModeBinaryRC4:
			info.decryptor = newBinaryRC4Decryptor(info)
		}
	}
	return info.decryptor
}

// Encryptor returns the encryptor for this descriptor, creating it on the
// first call.
func (info *EncryptionInfo) Encryptor() Encryptor {
	info.mu.Lock()
	defer info.mu.Unlock()
	if info.encryptor == nil {
		switch info.Mode {
		case ModeAgile:
			info.encryptor = &agileEncryptor{encryptorBase{info: info}}
		case ModeStandard:
			info.encryptor = &standardEncryptor{encryptorBase{info: info}}
		case ModeCryptoAPI:
			info.encryptor = &cryptoAPIEncryptor{encryptorBase{info: info}}
		case ModeBinaryRC4:
			info.encryptor = &binaryRC4Encryptor{encryptorBase{info: info}}
		}
	}
	return info.encryptor
}

// Clone returns a deep copy without the cached decryptor and encryptor.
func (info *EncryptionInfo) Clone() *EncryptionInfo {
	cfg := *info.cfg
	return &EncryptionInfo{
		VersionMajor: info.VersionMajor,
		VersionMinor: info.VersionMinor,
		Flags:        info.Flags,
		Mode:         info.Mode,
		Header:       info.Header.Clone(),
		Verifier:     info.Verifier.Clone(),
		cfg:          &cfg,
	}
}

// Config returns the settings the descriptor was created or parsed with.
func (info *EncryptionInfo) Config() *Config { return info.cfg }
