package types

import "fmt"

// MalformedKeybagError reports a structurally invalid keybag blob. It is
// always fatal to session setup.
type MalformedKeybagError struct {
	Reason string
}

func (e *MalformedKeybagError) Error() string {
	return "malformed keybag: " + e.Reason
}

// InvalidPassphraseError reports that every passphrase-wrapped class key
// failed its unwrap integrity check: the supplied passphrase is wrong.
// The caller may retry with a different passphrase.
type InvalidPassphraseError struct{}

func (e *InvalidPassphraseError) Error() string {
	return "invalid passphrase: no class key could be unwrapped"
}

// ProtectionClassUnavailableError reports that the class key needed for a
// record was never unwrappable, typically because the class is wrapped
// with the device hardware key. It is fatal only to records in that class.
type ProtectionClassUnavailableError struct {
	Class ProtectionClass
}

func (e *ProtectionClassUnavailableError) Error() string {
	return fmt.Sprintf("protection class %d (%s) has no available key", uint32(e.Class), e.Class)
}

// KeyUnwrapError reports a failed integrity check while unwrapping a
// single record's file key. It indicates corruption of that record and
// does not affect other records in the session.
type KeyUnwrapError struct {
	FileID string
	Class  ProtectionClass
}

func (e *KeyUnwrapError) Error() string {
	if e.FileID == "" {
		return fmt.Sprintf("key unwrap failed for protection class %d", uint32(e.Class))
	}
	return fmt.Sprintf("key unwrap failed for file %s (class %d)", e.FileID, uint32(e.Class))
}

// CorruptContentError reports that a decrypted content blob was shorter
// than the plaintext length recorded in the manifest.
type CorruptContentError struct {
	FileID string
	Want   int64
	Got    int64
}

func (e *CorruptContentError) Error() string {
	return fmt.Sprintf("corrupt content for file %s: manifest records %d bytes, decrypted %d", e.FileID, e.Want, e.Got)
}

// NotFoundError reports a lookup for a record that is not in the backup.
type NotFoundError struct {
	Domain       string
	RelativePath string
	FileID       string
}

func (e *NotFoundError) Error() string {
	if e.FileID != "" {
		return "no file record with ID " + e.FileID
	}
	return fmt.Sprintf("no file record for %s/%s", e.Domain, e.RelativePath)
}

// InvalidArgumentError reports lookup misuse, such as an empty domain or
// relative path.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Argument, e.Reason)
}
