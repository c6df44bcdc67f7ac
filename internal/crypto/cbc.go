package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// DecryptCBC decrypts data with AES-CBC using an all-zero initialization
// vector, as used for the manifest database and per-file content blobs.
// A trailing partial block is ignored. The output keeps the cipher's
// block padding; callers truncate to the true plaintext length, which is
// recorded in the manifest rather than in the blob.
//
// The scheme carries no per-blob authentication: integrity comes from the
// key-wrap check on the file key, not from the ciphertext itself.
func DecryptCBC(data, key []byte) ([]byte, error) {
	if len(data) < aes.BlockSize {
		return nil, fmt.Errorf("cbc: ciphertext shorter than one block (%d bytes)", len(data))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cbc: %w", err)
	}

	if rem := len(data) % aes.BlockSize; rem != 0 {
		data = data[:len(data)-rem]
	}

	iv := make([]byte, aes.BlockSize)
	plaintext := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, data)
	return plaintext, nil
}

// EncryptCBC encrypts data with AES-CBC and an all-zero initialization
// vector. The input is zero-padded to a block boundary first. It is the
// producing half of DecryptCBC, used by fixtures and round-trip tests.
func EncryptCBC(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cbc: %w", err)
	}

	padded := data
	if rem := len(data) % aes.BlockSize; rem != 0 {
		padded = make([]byte, len(data)+aes.BlockSize-rem)
		copy(padded, data)
	}

	iv := make([]byte, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}
