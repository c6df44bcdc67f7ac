package crypto

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"
)

// wrapIV is the integrity check value of RFC 3394 AES key wrap. Unwrap
// recovers it from the ciphertext; any other value means the wrapping key
// was wrong or the data is corrupt.
var wrapIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// ErrIntegrityCheckFailed is returned by Unwrap when the recovered
// integrity block does not match, meaning the key-encryption key is wrong
// or the wrapped blob is corrupt. Callers translate it into their own
// error taxonomy with record context attached.
var ErrIntegrityCheckFailed = errors.New("aeswrap: integrity check failed")

// Unwrap recovers a key wrapped with AES key wrap (RFC 3394) under kek.
// The wrapped data must be a multiple of 8 bytes and at least 16 bytes;
// the output is 8 bytes shorter than the input.
func Unwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 16 || len(wrapped)%8 != 0 {
		return nil, fmt.Errorf("aeswrap: invalid wrapped key length %d", len(wrapped))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("aeswrap: %w", err)
	}

	n := len(wrapped)/8 - 1
	a := binary.BigEndian.Uint64(wrapped[:8])
	r := make([]byte, len(wrapped)-8)
	copy(r, wrapped[8:])

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(buf[:8], a^t)
			copy(buf[8:], r[(i-1)*8:i*8])
			block.Decrypt(buf, buf)
			a = binary.BigEndian.Uint64(buf[:8])
			copy(r[(i-1)*8:i*8], buf[8:])
		}
	}

	var iv [8]byte
	binary.BigEndian.PutUint64(iv[:], a)
	if iv != wrapIV {
		return nil, ErrIntegrityCheckFailed
	}
	return r, nil
}

// Wrap applies AES key wrap (RFC 3394) to key under kek. The key must be
// a multiple of 8 bytes and at least 16 bytes. It is the inverse of
// Unwrap and exists mainly so fixtures and round-trip tests can produce
// wrapped keys without an external tool.
func Wrap(kek, key []byte) ([]byte, error) {
	if len(key) < 16 || len(key)%8 != 0 {
		return nil, fmt.Errorf("aeswrap: invalid key length %d", len(key))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("aeswrap: %w", err)
	}

	n := len(key) / 8
	a := binary.BigEndian.Uint64(wrapIV[:])
	r := make([]byte, len(key))
	copy(r, key)

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			binary.BigEndian.PutUint64(buf[:8], a)
			copy(buf[8:], r[(i-1)*8:i*8])
			block.Encrypt(buf, buf)
			t := uint64(n*j + i)
			a = binary.BigEndian.Uint64(buf[:8]) ^ t
			copy(r[(i-1)*8:i*8], buf[8:])
		}
	}

	out := make([]byte, len(key)+8)
	binary.BigEndian.PutUint64(out[:8], a)
	copy(out[8:], r)
	return out, nil
}
