package keybag

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-mobilesync/internal/crypto"
	"github.com/deploymenttheory/go-mobilesync/internal/interfaces"
	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

// manager owns a parsed keybag and its unwrapped class keys. After a
// successful Unlock the key set never changes, so the manager can be
// shared read-only across any number of concurrent decrypt calls.
type manager struct {
	bag *types.Keybag
	log *logrus.Entry
}

// Ensure manager implements the ClassKeyProvider interface
var _ interfaces.ClassKeyProvider = (*manager)(nil)

// Unlock derives the unlocking key from the passphrase using the bag's
// own derivation parameters and eagerly unwraps every passphrase-wrapped
// class entry. Device-wrapped entries are left unpopulated and reported
// as unavailable later, not treated as errors here.
//
// If no passphrase-wrapped entry unwraps successfully the passphrase is
// wrong and Unlock fails with InvalidPassphraseError. The passphrase
// slice is zeroed before returning.
func Unlock(bag *types.Keybag, passphrase []byte, log *logrus.Entry) (interfaces.ClassKeyProvider, error) {
	defer crypto.ZeroBytes(passphrase)

	if len(bag.Salt) == 0 || len(bag.DoubleSalt) == 0 {
		return nil, &types.MalformedKeybagError{Reason: "missing key-derivation salts"}
	}

	unlockingKey := crypto.DeriveUnlockingKey(passphrase, bag.DoubleSalt, bag.DoubleIterations, bag.Salt, bag.Iterations)
	defer crypto.ZeroBytes(unlockingKey)

	attempted, unwrapped := 0, 0
	for _, entry := range bag.Entries {
		if !entry.PassphraseWrapped() || len(entry.WrappedKey) == 0 {
			continue
		}
		attempted++
		key, err := crypto.Unwrap(unlockingKey, entry.WrappedKey)
		if err != nil {
			if errors.Is(err, crypto.ErrIntegrityCheckFailed) {
				log.WithField("class", entry.Class).Debug("class key unwrap failed integrity check")
				continue
			}
			return nil, &types.MalformedKeybagError{Reason: "class " + entry.Class.String() + ": " + err.Error()}
		}
		entry.Key = key
		unwrapped++
	}

	if attempted == 0 {
		return nil, &types.MalformedKeybagError{Reason: "no passphrase-wrapped class keys"}
	}
	if unwrapped == 0 {
		return nil, &types.InvalidPassphraseError{}
	}

	log.WithFields(logrus.Fields{
		"uuid":      bag.UUID,
		"unwrapped": unwrapped,
		"total":     len(bag.Entries),
	}).Debug("keybag unlocked")

	return &manager{bag: bag, log: log}, nil
}

// BackupUUID returns the keybag's backup identifier.
func (m *manager) BackupUUID() uuid.UUID {
	return m.bag.UUID
}

// Available reports whether a plaintext key is held for the class.
func (m *manager) Available(class types.ProtectionClass) bool {
	entry := m.bag.EntryForClass(class)
	return entry != nil && entry.Unwrapped()
}

// AvailableClasses lists every class with an unwrapped key, ordered by
// class number.
func (m *manager) AvailableClasses() []types.ProtectionClass {
	var classes []types.ProtectionClass
	for _, entry := range m.bag.Entries {
		if entry.Unwrapped() {
			classes = append(classes, entry.Class)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// UnwrapKeyForClass unwraps a key that was wrapped under the given
// protection class's key. A class without an unwrapped key (device-only,
// or absent from the bag) yields ProtectionClassUnavailableError; an
// integrity failure yields KeyUnwrapError scoped to the wrapped blob.
func (m *manager) UnwrapKeyForClass(class types.ProtectionClass, wrapped []byte) ([]byte, error) {
	entry := m.bag.EntryForClass(class)
	if entry == nil || !entry.Unwrapped() {
		return nil, &types.ProtectionClassUnavailableError{Class: class}
	}
	key, err := crypto.Unwrap(entry.Key, wrapped)
	if err != nil {
		if errors.Is(err, crypto.ErrIntegrityCheckFailed) {
			return nil, &types.KeyUnwrapError{Class: class}
		}
		return nil, err
	}
	return key, nil
}
