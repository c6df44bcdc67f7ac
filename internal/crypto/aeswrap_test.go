package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", s, err)
	}
	return b
}

// Published RFC 3394 test vectors (sections 4.1 and 4.6).
func TestUnwrapRFC3394Vectors(t *testing.T) {
	tests := []struct {
		name    string
		kek     string
		key     string
		wrapped string
	}{
		{
			name:    "128-bit key data with 128-bit KEK",
			kek:     "000102030405060708090a0b0c0d0e0f",
			key:     "00112233445566778899aabbccddeeff",
			wrapped: "1fa68b0a8112b447aef34bd8fb5a7b829d3e862371d2cfe5",
		},
		{
			name:    "256-bit key data with 256-bit KEK",
			kek:     "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
			key:     "00112233445566778899aabbccddeeff000102030405060708090a0b0c0d0e0f",
			wrapped: "28c9f404c4b810f4cbccb35cfb87f8263f5786e2d80ed326cbc7f0e71a99f43bfb988b9b7a02dd21",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kek := mustHex(t, tc.kek)
			want := mustHex(t, tc.key)
			wrapped := mustHex(t, tc.wrapped)

			got, err := Unwrap(kek, wrapped)
			if err != nil {
				t.Fatalf("Unwrap() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Unwrap() = %x, want %x", got, want)
			}

			rewrapped, err := Wrap(kek, want)
			if err != nil {
				t.Fatalf("Wrap() error = %v", err)
			}
			if !bytes.Equal(rewrapped, wrapped) {
				t.Errorf("Wrap() = %x, want %x", rewrapped, wrapped)
			}
		})
	}
}

func TestUnwrapWrongKeyFailsIntegrityCheck(t *testing.T) {
	kek := mustHex(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	wrongKek := mustHex(t, "ff0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	key := bytes.Repeat([]byte{0x42}, 32)

	wrapped, err := Wrap(kek, key)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	if _, err := Unwrap(wrongKek, wrapped); !errors.Is(err, ErrIntegrityCheckFailed) {
		t.Errorf("Unwrap() with wrong KEK: error = %v, want ErrIntegrityCheckFailed", err)
	}
}

func TestUnwrapCorruptedDataFailsIntegrityCheck(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	key := bytes.Repeat([]byte{0x22}, 32)

	wrapped, err := Wrap(kek, key)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	wrapped[12] ^= 0x01

	if _, err := Unwrap(kek, wrapped); !errors.Is(err, ErrIntegrityCheckFailed) {
		t.Errorf("Unwrap() of corrupted data: error = %v, want ErrIntegrityCheckFailed", err)
	}
}

func TestUnwrapRejectsBadLengths(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)

	for _, n := range []int{0, 8, 15, 17, 33} {
		if _, err := Unwrap(kek, make([]byte, n)); err == nil {
			t.Errorf("Unwrap() of %d bytes: expected error", n)
		}
	}
}
