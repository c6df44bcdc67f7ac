package crypto

import (
	"crypto/sha1"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// UnlockingKeySize is the length of the derived keybag unlocking key.
const UnlockingKeySize = 32

// DeriveUnlockingKey derives the symmetric key that unwraps the keybag's
// passphrase-wrapped class keys.
//
// The derivation is two chained PBKDF2 stages using the salts and
// iteration counts stored with the backup: first PBKDF2-HMAC-SHA256 over
// the passphrase with the double-protection parameters, then
// PBKDF2-HMAC-SHA1 over that intermediate key with the bag parameters.
// The second stage consumes the intermediate key, not the passphrase.
//
// A wrong passphrase still produces a well-formed key; it is detected only
// when the class key unwrap integrity checks fail downstream.
func DeriveUnlockingKey(passphrase, doubleSalt []byte, doubleIterations uint32, salt []byte, iterations uint32) []byte {
	intermediate := pbkdf2.Key(passphrase, doubleSalt, int(doubleIterations), UnlockingKeySize, sha256.New)
	return pbkdf2.Key(intermediate, salt, int(iterations), UnlockingKeySize, sha1.New)
}

// ZeroBytes overwrites a byte slice with zeros. Used to drop passphrases
// and intermediate keys once they are no longer needed.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
