/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// agile_xml.go: the XML descriptor of agile EncryptionInfo
package core

import (
	"encoding/base64"
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrgoliveira/go-officecrypt/internal/crypto"
)

const (
	nsEncryption   = "http://schemas.microsoft.com/office/2006/encryption"
	nsPasswordKey  = "http://schemas.microsoft.com/office/2006/keyEncryptor/password"
	nsCertificates = "http://schemas.microsoft.com/office/2006/keyEncryptor/certificate"
	xmlProlog      = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"
)

// base64Attr is a binary attribute value.
type base64Attr []byte

func (b base64Attr) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: base64.StdEncoding.EncodeToString(b)}, nil
}

func (b *base64Attr) UnmarshalXMLAttr(attr xml.Attr) error {
	v, err := base64.StdEncoding.DecodeString(strings.TrimSpace(attr.Value))
	if err != nil {
		return crypto.Corruptf("attribute %s: %v", attr.Name.Local, err)
	}
	*b = v
	return nil
}

type xmlEncryption struct {
	XMLName       xml.Name          `xml:"http://schemas.microsoft.com/office/2006/encryption encryption"`
	KeyData       xmlKeyData        `xml:"keyData"`
	DataIntegrity *xmlDataIntegrity `xml:"dataIntegrity"`
	KeyEncryptors xmlKeyEncryptors  `xml:"keyEncryptors"`
}

type xmlKeyData struct {
	SaltSize        int        `xml:"saltSize,attr"`
	BlockSize       int        `xml:"blockSize,attr"`
	KeyBits         int        `xml:"keyBits,attr"`
	HashSize        int        `xml:"hashSize,attr"`
	CipherAlgorithm string     `xml:"cipherAlgorithm,attr"`
	CipherChaining  string     `xml:"cipherChaining,attr"`
	HashAlgorithm   string     `xml:"hashAlgorithm,attr"`
	SaltValue       base64Attr `xml:"saltValue,attr"`
}

type xmlDataIntegrity struct {
	EncryptedHmacKey   base64Attr `xml:"encryptedHmacKey,attr"`
	EncryptedHmacValue base64Attr `xml:"encryptedHmacValue,attr"`
}

type xmlKeyEncryptors struct {
	KeyEncryptor []xmlKeyEncryptor `xml:"keyEncryptor"`
}

type xmlKeyEncryptor struct {
	URI          string          `xml:"uri,attr"`
	EncryptedKey *xmlPasswordKey `xml:"http://schemas.microsoft.com/office/2006/keyEncryptor/password encryptedKey"`
}

type xmlPasswordKey struct {
	SpinCount                  int        `xml:"spinCount,attr"`
	SaltSize                   int        `xml:"saltSize,attr"`
	BlockSize                  int        `xml:"blockSize,attr"`
	KeyBits                    int        `xml:"keyBits,attr"`
	HashSize                   int        `xml:"hashSize,attr"`
	CipherAlgorithm            string     `xml:"cipherAlgorithm,attr"`
	CipherChaining             string     `xml:"cipherChaining,attr"`
	HashAlgorithm              string     `xml:"hashAlgorithm,attr"`
	SaltValue                  base64Attr `xml:"saltValue,attr"`
	EncryptedVerifierHashInput base64Attr `xml:"encryptedVerifierHashInput,attr"`
	EncryptedVerifierHashValue base64Attr `xml:"encryptedVerifierHashValue,attr"`
	EncryptedKeyValue          base64Attr `xml:"encryptedKeyValue,attr"`
}

// agileParams are the algorithm attributes shared by keyData and the
// password key encryptor.
type agileParams struct {
	cipher    crypto.CipherAlgorithm
	hash      crypto.HashAlgorithm
	chaining  crypto.ChainingMode
	keyBits   int
	blockSize int
}

func parseAgileParams(what, cipherName, chainingName, hashName string, keyBits, blockSize, hashSize, saltSize int, salt []byte) (agileParams, error) {
	var p agileParams
	var err error
	if p.cipher, err = crypto.CipherAlgorithmFromName(cipherName, keyBits); err != nil {
		return p, errors.Wrap(err, what)
	}
	if p.cipher.IsStream() {
		return p, errors.Wrapf(crypto.ErrUnsupportedAlgorithm, "%s: stream cipher %s", what, p.cipher)
	}
	if p.chaining, err = crypto.ChainingModeFromName(chainingName); err != nil {
		return p, errors.Wrap(err, what)
	}
	if p.hash, err = crypto.HashAlgorithmFromName(hashName); err != nil {
		return p, errors.Wrap(err, what)
	}
	if hashSize != p.hash.Size() {
		return p, crypto.Corruptf("%s: hash size %d for %s", what, hashSize, p.hash)
	}
	if blockSize != p.cipher.BlockSize() {
		return p, crypto.Corruptf("%s: block size %d for %s", what, blockSize, p.cipher)
	}
	if len(salt) == 0 || saltSize != len(salt) {
		return p, crypto.Corruptf("%s: salt size %d, salt has %d bytes", what, saltSize, len(salt))
	}
	p.keyBits = keyBits
	p.blockSize = blockSize
	return p, nil
}

// parseAgileDescriptor decodes the XML part of an agile EncryptionInfo.
func parseAgileDescriptor(data []byte) (*EncryptionHeader, *EncryptionVerifier, error) {
	var doc xmlEncryption
	if err := xml.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, crypto.ErrCorruptMetadata) {
			return nil, nil, err
		}
		return nil, nil, crypto.Corruptf("descriptor XML: %v", err)
	}

	kd := doc.KeyData
	p, err := parseAgileParams("keyData", kd.CipherAlgorithm, kd.CipherChaining, kd.HashAlgorithm,
		kd.KeyBits, kd.BlockSize, kd.HashSize, kd.SaltSize, kd.SaltValue)
	if err != nil {
		return nil, nil, err
	}
	h := &EncryptionHeader{
		Flags:           FlagAgile,
		CipherAlgorithm: p.cipher,
		HashAlgorithm:   p.hash,
		KeyBits:         p.keyBits,
		BlockSize:       p.blockSize,
		ChainingMode:    p.chaining,
		Provider:        p.cipher.Provider(),
		KeySalt:         []byte(kd.SaltValue),
	}
	if di := doc.DataIntegrity; di != nil {
		h.EncryptedHMACKey = di.EncryptedHmacKey
		h.EncryptedHMACValue = di.EncryptedHmacValue
	}

	var pk *xmlPasswordKey
	certificates := false
	for i := range doc.KeyEncryptors.KeyEncryptor {
		ke := &doc.KeyEncryptors.KeyEncryptor[i]
		if ke.URI == nsPasswordKey && ke.EncryptedKey != nil {
			pk = ke.EncryptedKey
			break
		}
		certificates = certificates || ke.URI == nsCertificates
	}
	if pk == nil {
		if certificates {
			return nil, nil, crypto.Unsupportedf("certificate key encryptors")
		}
		return nil, nil, crypto.Unsupportedf("no password key encryptor")
	}
	if pk.SpinCount < 0 || pk.SpinCount > MaxSpinCount {
		return nil, nil, crypto.Corruptf("spin count %d", pk.SpinCount)
	}
	vp, err := parseAgileParams("encryptedKey", pk.CipherAlgorithm, pk.CipherChaining, pk.HashAlgorithm,
		pk.KeyBits, pk.BlockSize, pk.HashSize, pk.SaltSize, pk.SaltValue)
	if err != nil {
		return nil, nil, err
	}
	if len(pk.EncryptedVerifierHashInput) == 0 || len(pk.EncryptedVerifierHashValue) == 0 || len(pk.EncryptedKeyValue) == 0 {
		return nil, nil, crypto.Corruptf("encryptedKey: missing verifier or key value")
	}
	v := &EncryptionVerifier{
		Salt:                  []byte(pk.SaltValue),
		EncryptedVerifier:     []byte(pk.EncryptedVerifierHashInput),
		EncryptedVerifierHash: []byte(pk.EncryptedVerifierHashValue),
		EncryptedKey:          []byte(pk.EncryptedKeyValue),
		SpinCount:             pk.SpinCount,
		CipherAlgorithm:       vp.cipher,
		HashAlgorithm:         vp.hash,
		ChainingMode:          vp.chaining,
		KeyBits:               vp.keyBits,
		BlockSize:             vp.blockSize,
	}
	return h, v, nil
}

// marshalAgileDescriptor renders the XML part of an agile EncryptionInfo.
func marshalAgileDescriptor(h *EncryptionHeader, v *EncryptionVerifier) ([]byte, error) {
	doc := xmlEncryption{
		KeyData: xmlKeyData{
			SaltSize:        len(h.KeySalt),
			BlockSize:       h.BlockSize,
			KeyBits:         h.KeyBits,
			HashSize:        h.HashAlgorithm.Size(),
			CipherAlgorithm: h.CipherAlgorithm.XMLName(),
			CipherChaining:  h.ChainingMode.XMLName(),
			HashAlgorithm:   h.HashAlgorithm.String(),
			SaltValue:       h.KeySalt,
		},
		DataIntegrity: &xmlDataIntegrity{
			EncryptedHmacKey:   h.EncryptedHMACKey,
			EncryptedHmacValue: h.EncryptedHMACValue,
		},
		KeyEncryptors: xmlKeyEncryptors{
			KeyEncryptor: []xmlKeyEncryptor{{
				URI: nsPasswordKey,
				EncryptedKey: &xmlPasswordKey{
					SpinCount:                  v.SpinCount,
					SaltSize:                   len(v.Salt),
					BlockSize:                  v.BlockSize,
					KeyBits:                    v.KeyBits,
					HashSize:                   v.HashAlgorithm.Size(),
					CipherAlgorithm:            v.CipherAlgorithm.XMLName(),
					CipherChaining:             v.ChainingMode.XMLName(),
					HashAlgorithm:              v.HashAlgorithm.String(),
					SaltValue:                  v.Salt,
					EncryptedVerifierHashInput: v.EncryptedVerifier,
					EncryptedVerifierHashValue: v.EncryptedVerifierHash,
					EncryptedKeyValue:          v.EncryptedKey,
				},
			}},
		},
	}
	out, err := xml.Marshal(&doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal agile descriptor")
	}
	return append([]byte(xmlProlog), out...), nil
}
