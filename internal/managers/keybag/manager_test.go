package keybag

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-mobilesync/internal/crypto"
	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// buildTestBag wraps the given class keys under a key derived from
// passphrase, using deliberately small iteration counts to keep the
// test fast.
func buildTestBag(t *testing.T, passphrase string, classKeys map[types.ProtectionClass][]byte) *types.Keybag {
	t.Helper()

	bag := &types.Keybag{
		Version:          4,
		Type:             types.KeybagTypeBackup,
		UUID:             uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		WrapFlags:        types.WrapPassphrase,
		Salt:             bytes.Repeat([]byte{0x5a}, 20),
		Iterations:       7,
		DoubleSalt:       bytes.Repeat([]byte{0xa5}, 20),
		DoubleIterations: 11,
	}

	unlockingKey := crypto.DeriveUnlockingKey([]byte(passphrase), bag.DoubleSalt, bag.DoubleIterations, bag.Salt, bag.Iterations)
	for class, key := range classKeys {
		wrapped, err := crypto.Wrap(unlockingKey, key)
		require.NoError(t, err)
		bag.Entries = append(bag.Entries, &types.ClassKeyEntry{
			Class:      class,
			WrapFlags:  types.WrapPassphrase,
			KeyType:    0,
			WrappedKey: wrapped,
		})
	}
	return bag
}

func TestUnlock(t *testing.T) {
	classKeys := map[types.ProtectionClass][]byte{
		types.ProtectionClassComplete: bytes.Repeat([]byte{0x01}, types.ClassKeySize),
		types.ProtectionClassNone:     bytes.Repeat([]byte{0x04}, types.ClassKeySize),
	}
	bag := buildTestBag(t, "hunter2", classKeys)

	provider, err := Unlock(bag, []byte("hunter2"), testLogger())
	require.NoError(t, err)

	assert.Equal(t, bag.UUID, provider.BackupUUID())
	assert.True(t, provider.Available(types.ProtectionClassComplete))
	assert.True(t, provider.Available(types.ProtectionClassNone))
	assert.False(t, provider.Available(types.ProtectionClassWhenUnlocked))
	assert.Equal(t,
		[]types.ProtectionClass{types.ProtectionClassComplete, types.ProtectionClassNone},
		provider.AvailableClasses())
}

func TestUnlockZeroesPassphrase(t *testing.T) {
	bag := buildTestBag(t, "secret", map[types.ProtectionClass][]byte{
		types.ProtectionClassNone: bytes.Repeat([]byte{0x04}, types.ClassKeySize),
	})

	passphrase := []byte("secret")
	_, err := Unlock(bag, passphrase, testLogger())
	require.NoError(t, err)
	assert.Equal(t, make([]byte, len(passphrase)), passphrase)
}

func TestUnlockWrongPassphrase(t *testing.T) {
	bag := buildTestBag(t, "correct", map[types.ProtectionClass][]byte{
		types.ProtectionClassComplete: bytes.Repeat([]byte{0x01}, types.ClassKeySize),
	})

	_, err := Unlock(bag, []byte("incorrect"), testLogger())
	var invalid *types.InvalidPassphraseError
	require.ErrorAs(t, err, &invalid)
}

func TestUnlockSkipsDeviceWrappedEntries(t *testing.T) {
	bag := buildTestBag(t, "pass", map[types.ProtectionClass][]byte{
		types.ProtectionClassNone: bytes.Repeat([]byte{0x04}, types.ClassKeySize),
	})
	bag.Entries = append(bag.Entries, &types.ClassKeyEntry{
		Class:      types.ProtectionClassWhenUnlocked,
		WrapFlags:  types.WrapDevice,
		WrappedKey: bytes.Repeat([]byte{0xee}, types.WrappedKeySize),
	})

	provider, err := Unlock(bag, []byte("pass"), testLogger())
	require.NoError(t, err)
	assert.True(t, provider.Available(types.ProtectionClassNone))
	assert.False(t, provider.Available(types.ProtectionClassWhenUnlocked))
}

func TestUnlockNoPassphraseWrappedEntries(t *testing.T) {
	bag := buildTestBag(t, "pass", map[types.ProtectionClass][]byte{
		types.ProtectionClassNone: bytes.Repeat([]byte{0x04}, types.ClassKeySize),
	})
	for _, entry := range bag.Entries {
		entry.WrapFlags = types.WrapDevice
	}

	_, err := Unlock(bag, []byte("pass"), testLogger())
	var malformed *types.MalformedKeybagError
	require.ErrorAs(t, err, &malformed)
}

func TestUnlockMissingSalts(t *testing.T) {
	bag := buildTestBag(t, "pass", map[types.ProtectionClass][]byte{
		types.ProtectionClassNone: bytes.Repeat([]byte{0x04}, types.ClassKeySize),
	})
	bag.DoubleSalt = nil

	_, err := Unlock(bag, []byte("pass"), testLogger())
	var malformed *types.MalformedKeybagError
	require.ErrorAs(t, err, &malformed)
}

func TestUnwrapKeyForClass(t *testing.T) {
	classKey := bytes.Repeat([]byte{0x01}, types.ClassKeySize)
	bag := buildTestBag(t, "pass", map[types.ProtectionClass][]byte{
		types.ProtectionClassComplete: classKey,
	})

	provider, err := Unlock(bag, []byte("pass"), testLogger())
	require.NoError(t, err)

	fileKey := bytes.Repeat([]byte{0x7f}, 32)
	wrapped, err := crypto.Wrap(classKey, fileKey)
	require.NoError(t, err)

	got, err := provider.UnwrapKeyForClass(types.ProtectionClassComplete, wrapped)
	require.NoError(t, err)
	assert.Equal(t, fileKey, got)
}

func TestUnwrapKeyForClassUnavailable(t *testing.T) {
	bag := buildTestBag(t, "pass", map[types.ProtectionClass][]byte{
		types.ProtectionClassComplete: bytes.Repeat([]byte{0x01}, types.ClassKeySize),
	})

	provider, err := Unlock(bag, []byte("pass"), testLogger())
	require.NoError(t, err)

	_, err = provider.UnwrapKeyForClass(types.ProtectionClassWhenUnlocked, bytes.Repeat([]byte{0x00}, types.WrappedKeySize))
	var unavailable *types.ProtectionClassUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, types.ProtectionClassWhenUnlocked, unavailable.Class)
}

func TestUnwrapKeyForClassCorruptWrappedKey(t *testing.T) {
	bag := buildTestBag(t, "pass", map[types.ProtectionClass][]byte{
		types.ProtectionClassComplete: bytes.Repeat([]byte{0x01}, types.ClassKeySize),
	})

	provider, err := Unlock(bag, []byte("pass"), testLogger())
	require.NoError(t, err)

	_, err = provider.UnwrapKeyForClass(types.ProtectionClassComplete, bytes.Repeat([]byte{0xcc}, types.WrappedKeySize))
	var unwrapErr *types.KeyUnwrapError
	require.ErrorAs(t, err, &unwrapErr)
}
