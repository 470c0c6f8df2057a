package protocol

import (
	"encoding/binary"
	"math/bits"
)

// SHA1Size is the length of a SHA-1 digest in bytes.
const SHA1Size = 20

const sha1BlockSize = 64

// Round constants, one per group of 20 rounds.
const (
	sha1K0 = 0x5A827999
	sha1K1 = 0x6ED9EBA1
	sha1K2 = 0x8F1BBCDC
	sha1K3 = 0xCA62C1D6
)

// SHA1 computes the SHA-1 digest of data (FIPS 180-4).
func SHA1(data []byte) [SHA1Size]byte {
	h := [5]uint32{0x67452301, 0xEFCDAB89, 0x98BADCFE, 0x10325476, 0xC3D2E1F0}

	msg := sha1Pad(data)
	var w [80]uint32
	for off := 0; off < len(msg); off += sha1BlockSize {
		block := msg[off : off+sha1BlockSize]
		for i := 0; i < 16; i++ {
			w[i] = binary.BigEndian.Uint32(block[i*4:])
		}
		for i := 16; i < 80; i++ {
			w[i] = bits.RotateLeft32(w[i-3]^w[i-8]^w[i-14]^w[i-16], 1)
		}

		a, b, c, d, e := h[0], h[1], h[2], h[3], h[4]
		for i := 0; i < 80; i++ {
			var f, k uint32
			switch {
			case i < 20:
				f = (b & c) | (^b & d)
				k = sha1K0
			case i < 40:
				f = b ^ c ^ d
				k = sha1K1
			case i < 60:
				f = (b & c) | (b & d) | (c & d)
				k = sha1K2
			default:
				f = b ^ c ^ d
				k = sha1K3
			}
			t := bits.RotateLeft32(a, 5) + f + e + k + w[i]
			e = d
			d = c
			c = bits.RotateLeft32(b, 30)
			b = a
			a = t
		}

		h[0] += a
		h[1] += b
		h[2] += c
		h[3] += d
		h[4] += e
	}

	var digest [SHA1Size]byte
	for i, v := range h {
		binary.BigEndian.PutUint32(digest[i*4:], v)
	}
	return digest
}

// sha1Pad appends 0x80, zero bytes up to 56 mod 64, then the message length
// in bits as a 64-bit big-endian integer.
func sha1Pad(data []byte) []byte {
	n := len(data)
	padLen := sha1BlockSize - (n+9)%sha1BlockSize
	if padLen == sha1BlockSize {
		padLen = 0
	}

	msg := make([]byte, n+1+padLen+8)
	copy(msg, data)
	msg[n] = 0x80
	binary.BigEndian.PutUint64(msg[len(msg)-8:], uint64(n)*8)
	return msg
}
