/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// modes.go: ECB and 8-bit CFB, which crypto/cipher does not provide
package crypto

import (
	"crypto/cipher"
)

type ecb struct {
	b       cipher.Block
	decrypt bool
}

func newECB(b cipher.Block, decrypt bool) cipher.BlockMode {
	return &ecb{b: b, decrypt: decrypt}
}

func (x *ecb) BlockSize() int { return x.b.BlockSize() }

func (x *ecb) CryptBlocks(dst, src []byte) {
	bs := x.b.BlockSize()
	if len(src)%bs != 0 {
		panic("crypto/ecb: input not full blocks")
	}
	if len(dst) < len(src) {
		panic("crypto/ecb: output smaller than input")
	}
	for len(src) > 0 {
		if x.decrypt {
			x.b.Decrypt(dst[:bs], src[:bs])
		} else {
			x.b.Encrypt(dst[:bs], src[:bs])
		}
		src = src[bs:]
		dst = dst[bs:]
	}
}

// cfb8 is cipher feedback with a one byte segment: every output byte costs
// one block encryption of the shift register.
type cfb8 struct {
	b       cipher.Block
	reg     []byte
	out     []byte
	decrypt bool
}

func newCFB8(b cipher.Block, iv []byte, decrypt bool) cipher.Stream {
	x := &cfb8{
		b:       b,
		reg:     make([]byte, b.BlockSize()),
		out:     make([]byte, b.BlockSize()),
		decrypt: decrypt,
	}
	copy(x.reg, iv)
	return x
}

func (x *cfb8) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("crypto/cfb8: output smaller than input")
	}
	last := len(x.reg) - 1
	for i, in := range src {
		x.b.Encrypt(x.out, x.reg)
		c := in ^ x.out[0]
		copy(x.reg, x.reg[1:])
		if x.decrypt {
			x.reg[last] = in
		} else {
			x.reg[last] = c
		}
		dst[i] = c
	}
}
