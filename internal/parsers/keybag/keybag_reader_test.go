package keybag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

func appendTag(buf []byte, tag string, value []byte) []byte {
	buf = append(buf, tag...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func appendTagU32(buf []byte, tag string, value uint32) []byte {
	return appendTag(buf, tag, binary.BigEndian.AppendUint32(nil, value))
}

type testEntry struct {
	uuid       uuid.UUID
	class      uint32
	wrapFlags  uint32
	keyType    uint32
	wrappedKey []byte
	extra      map[string][]byte
}

type testBag struct {
	uuid    uuid.UUID
	salt    []byte
	iter    uint32
	dpsl    []byte
	dpic    uint32
	extra   map[string][]byte
	entries []testEntry
}

func buildKeybag(bag testBag) []byte {
	var buf []byte
	buf = appendTagU32(buf, "VERS", 4)
	buf = appendTagU32(buf, "TYPE", types.KeybagTypeBackup)
	buf = appendTag(buf, "UUID", bag.uuid[:])
	buf = appendTag(buf, "HMCK", bytes.Repeat([]byte{0x33}, 40))
	buf = appendTagU32(buf, "WRAP", types.WrapPassphrase)
	buf = appendTag(buf, "SALT", bag.salt)
	buf = appendTagU32(buf, "ITER", bag.iter)
	buf = appendTag(buf, "DPSL", bag.dpsl)
	buf = appendTagU32(buf, "DPIC", bag.dpic)
	for tag, value := range bag.extra {
		buf = appendTag(buf, tag, value)
	}
	for _, e := range bag.entries {
		buf = appendTag(buf, "UUID", e.uuid[:])
		buf = appendTagU32(buf, "CLAS", e.class)
		buf = appendTagU32(buf, "WRAP", e.wrapFlags)
		buf = appendTagU32(buf, "KTYP", e.keyType)
		if e.wrappedKey != nil {
			buf = appendTag(buf, "WPKY", e.wrappedKey)
		}
		for tag, value := range e.extra {
			buf = appendTag(buf, tag, value)
		}
	}
	return buf
}

func defaultTestBag() testBag {
	return testBag{
		uuid: uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		salt: bytes.Repeat([]byte{0x01}, 20),
		iter: 10000,
		dpsl: bytes.Repeat([]byte{0x02}, 20),
		dpic: 10,
		entries: []testEntry{
			{
				uuid:       uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"),
				class:      uint32(types.ProtectionClassComplete),
				wrapFlags:  types.WrapPassphrase,
				wrappedKey: bytes.Repeat([]byte{0x10}, types.WrappedKeySize),
			},
			{
				uuid:       uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeee2"),
				class:      uint32(types.ProtectionClassNone),
				wrapFlags:  types.WrapPassphrase,
				wrappedKey: bytes.Repeat([]byte{0x20}, types.WrappedKeySize),
			},
		},
	}
}

func TestParseFields(t *testing.T) {
	bag := defaultTestBag()
	kb, err := Parse(buildKeybag(bag))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if kb.Version != 4 {
		t.Errorf("Version = %d, want 4", kb.Version)
	}
	if kb.Type != types.KeybagTypeBackup {
		t.Errorf("Type = %d, want %d", kb.Type, types.KeybagTypeBackup)
	}
	if kb.UUID != bag.uuid {
		t.Errorf("UUID = %s, want %s", kb.UUID, bag.uuid)
	}
	if !bytes.Equal(kb.Salt, bag.salt) {
		t.Errorf("Salt = %x, want %x", kb.Salt, bag.salt)
	}
	if kb.Iterations != bag.iter {
		t.Errorf("Iterations = %d, want %d", kb.Iterations, bag.iter)
	}
	if !bytes.Equal(kb.DoubleSalt, bag.dpsl) {
		t.Errorf("DoubleSalt = %x, want %x", kb.DoubleSalt, bag.dpsl)
	}
	if kb.DoubleIterations != bag.dpic {
		t.Errorf("DoubleIterations = %d, want %d", kb.DoubleIterations, bag.dpic)
	}

	if len(kb.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(kb.Entries))
	}
	first := kb.Entries[0]
	if first.Class != types.ProtectionClassComplete {
		t.Errorf("Entries[0].Class = %d, want %d", first.Class, types.ProtectionClassComplete)
	}
	if !first.PassphraseWrapped() {
		t.Error("Entries[0] should be passphrase wrapped")
	}
	if len(first.WrappedKey) != types.WrappedKeySize {
		t.Errorf("Entries[0].WrappedKey length = %d, want %d", len(first.WrappedKey), types.WrappedKeySize)
	}
	if first.Unwrapped() {
		t.Error("freshly parsed entry must not hold a plaintext key")
	}

	if entry := kb.EntryForClass(types.ProtectionClassNone); entry == nil {
		t.Error("EntryForClass(4) = nil, want entry")
	}
	if entry := kb.EntryForClass(types.ProtectionClassCompleteUnlessOpen); entry != nil {
		t.Error("EntryForClass(2) should be nil")
	}
}

func TestParseUnknownTagsPreserved(t *testing.T) {
	bag := defaultTestBag()
	bag.extra = map[string][]byte{"GRCE": {0, 0, 0, 0}}
	bag.entries[0].extra = map[string][]byte{"XTRA": {0xAA, 0xBB}}

	kb, err := Parse(buildKeybag(bag))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(kb.Unknown) != 1 || kb.Unknown[0].Tag != "GRCE" {
		t.Errorf("bag Unknown = %v, want one GRCE tag", kb.Unknown)
	}
	entry := kb.Entries[0]
	if len(entry.Unknown) != 1 || entry.Unknown[0].Tag != "XTRA" {
		t.Errorf("entry Unknown = %v, want one XTRA tag", entry.Unknown)
	}
	if !bytes.Equal(entry.Unknown[0].Value, []byte{0xAA, 0xBB}) {
		t.Errorf("entry Unknown value = %x", entry.Unknown[0].Value)
	}
}

func TestParseMalformed(t *testing.T) {
	valid := buildKeybag(defaultTestBag())

	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", nil},
		{"truncated header", valid[:5]},
		{"length overruns buffer", valid[:len(valid)-4]},
		{"missing bag UUID", func() []byte {
			var buf []byte
			buf = appendTagU32(buf, "VERS", 4)
			buf = appendTagU32(buf, "TYPE", types.KeybagTypeBackup)
			return buf
		}()},
		{"no class entries", func() []byte {
			var buf []byte
			buf = appendTagU32(buf, "VERS", 4)
			buf = appendTag(buf, "UUID", make([]byte, 16))
			return buf
		}()},
		{"entries without wrapped keys", func() []byte {
			bag := defaultTestBag()
			bag.entries[0].wrappedKey = nil
			bag.entries[1].wrappedKey = nil
			return buildKeybag(bag)
		}()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			var malformed *types.MalformedKeybagError
			if !errors.As(err, &malformed) {
				t.Errorf("Parse() error = %v, want MalformedKeybagError", err)
			}
		})
	}
}
