package protocol

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"testing"
)

func TestSHA1_KnownVectors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq", "84983e441c3bd26ebaae4aa1f95129e5e54670f1"},
		{"The quick brown fox jumps over the lazy dog", "2fd4e1c67a2d28fced849ee1bb76e7391b93eb12"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SHA1([]byte(tt.input))
			if hex.EncodeToString(got[:]) != tt.want {
				t.Errorf("SHA1(%q) = %x, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// Lengths around the 55/56/64 byte padding boundaries are the usual suspects.
func TestSHA1_MatchesStdlib(t *testing.T) {
	for _, n := range []int{1, 54, 55, 56, 57, 63, 64, 65, 119, 120, 128, 1000, 4097} {
		data := bytes.Repeat([]byte{byte(n)}, n)
		got := SHA1(data)
		want := sha1.Sum(data)
		if got != want {
			t.Errorf("SHA1(len=%d) = %x, want %x", n, got, want)
		}
	}
}

func TestSHA1Pad(t *testing.T) {
	for _, n := range []int{0, 55, 56, 64} {
		padded := sha1Pad(make([]byte, n))
		if len(padded)%64 != 0 {
			t.Errorf("sha1Pad(len=%d) length = %d, not a multiple of 64", n, len(padded))
		}
		if padded[n] != 0x80 {
			t.Errorf("sha1Pad(len=%d) missing 0x80 terminator", n)
		}
	}
}

func BenchmarkSHA1(b *testing.B) {
	data := []byte("dGhlIHNhbXBsZSBub25jZQ==" + WebSocketGUID)
	for i := 0; i < b.N; i++ {
		SHA1(data)
	}
}
