package types

import (
	"github.com/google/uuid"
)

// KeybagTag is a four-character code identifying one TLV record in the
// binary backup keybag.
type KeybagTag string

// Keybag attribute tags. Tags not listed here are preserved opaquely by the
// parser so newer keybag revisions still load.
const (
	KeybagTagVersion          KeybagTag = "VERS"
	KeybagTagType             KeybagTag = "TYPE"
	KeybagTagUUID             KeybagTag = "UUID"
	KeybagTagHMAC             KeybagTag = "HMCK"
	KeybagTagWrap             KeybagTag = "WRAP"
	KeybagTagSalt             KeybagTag = "SALT"
	KeybagTagIterations       KeybagTag = "ITER"
	KeybagTagDoubleSalt       KeybagTag = "DPSL"
	KeybagTagDoubleIterations KeybagTag = "DPIC"
	KeybagTagClass            KeybagTag = "CLAS"
	KeybagTagKeyType          KeybagTag = "KTYP"
	KeybagTagWrappedKey       KeybagTag = "WPKY"
	KeybagTagPublicKey        KeybagTag = "PBKY"
)

// Keybag types as stored in the TYPE attribute.
const (
	KeybagTypeSystem uint32 = 0
	KeybagTypeBackup uint32 = 1
	KeybagTypeEscrow uint32 = 2
	KeybagTypeOTA    uint32 = 3
)

// Wrap method bit flags for class key entries. A passphrase-wrapped entry
// can be recovered from the backup passphrase alone; a device-wrapped entry
// additionally requires the device hardware key and is permanently
// unavailable to this package.
const (
	WrapDevice     uint32 = 1
	WrapPassphrase uint32 = 2
)

// WrappedKeySize is the length of a class key or file key wrapped with
// AES key wrap: a 32-byte key plus the 8-byte integrity block.
const WrappedKeySize = 0x28

// ClassKeySize is the length of an unwrapped class key or file key.
const ClassKeySize = 32

// RawTag preserves a keybag TLV record the parser does not interpret.
type RawTag struct {
	Tag   KeybagTag
	Value []byte
}

// ClassKeyEntry is one protection class slot in the keybag.
//
// Key is nil until the entry has been unwrapped with a verified integrity
// check; it is never populated with an unverified guess.
type ClassKeyEntry struct {
	UUID       uuid.UUID
	Class      ProtectionClass
	WrapFlags  uint32
	KeyType    uint32
	WrappedKey []byte
	PublicKey  []byte
	Key        []byte
	Unknown    []RawTag
}

// PassphraseWrapped reports whether the entry can be unwrapped with the
// key derived from the backup passphrase.
func (e *ClassKeyEntry) PassphraseWrapped() bool {
	return e.WrapFlags&WrapPassphrase != 0
}

// Unwrapped reports whether the plaintext class key has been recovered.
func (e *ClassKeyEntry) Unwrapped() bool {
	return len(e.Key) == ClassKeySize
}

// Keybag is the parsed backup keybag: bag-wide attributes followed by one
// entry per protection class. It is parsed once per session and immutable
// afterwards, except that a successful unlock populates entry plaintext
// keys exactly once.
type Keybag struct {
	Version uint32
	Type    uint32
	UUID    uuid.UUID
	HMAC    []byte

	// Passphrase derivation parameters stored with the bag. DoubleSalt
	// and DoubleIterations drive the first derivation stage, Salt and
	// Iterations the second.
	WrapFlags        uint32
	Salt             []byte
	Iterations       uint32
	DoubleSalt       []byte
	DoubleIterations uint32

	Entries []*ClassKeyEntry
	Unknown []RawTag
}

// EntryForClass returns the class key entry for the given protection
// class, or nil when the keybag has no such entry.
func (kb *Keybag) EntryForClass(class ProtectionClass) *ClassKeyEntry {
	for _, e := range kb.Entries {
		if e.Class == class {
			return e
		}
	}
	return nil
}
