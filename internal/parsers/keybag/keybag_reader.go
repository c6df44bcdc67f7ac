package keybag

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

// tlvHeaderSize is the fixed prefix of every keybag record: a four-byte
// ASCII tag followed by a four-byte big-endian value length.
const tlvHeaderSize = 8

// Parse decodes the flat TLV sequence of a backup keybag blob.
//
// The blob opens with bag-wide attributes; the second UUID tag starts the
// per-class entries, each introduced by its own UUID tag. Tags this parser
// does not interpret are preserved opaquely so newer bag revisions still
// load. A length that overruns the buffer, or a bag missing its UUID or
// any class key, yields a MalformedKeybagError.
func Parse(data []byte) (*types.Keybag, error) {
	kb := &types.Keybag{}
	var entry *types.ClassKeyEntry
	sawBagUUID := false

	pos := 0
	for pos < len(data) {
		if pos+tlvHeaderSize > len(data) {
			return nil, &types.MalformedKeybagError{Reason: "truncated record header"}
		}
		tag := types.KeybagTag(data[pos : pos+4])
		length := int(binary.BigEndian.Uint32(data[pos+4 : pos+tlvHeaderSize]))
		pos += tlvHeaderSize
		if length < 0 || pos+length > len(data) {
			return nil, &types.MalformedKeybagError{Reason: "record length overruns buffer"}
		}
		value := data[pos : pos+length]
		pos += length

		if tag == types.KeybagTagUUID {
			if !sawBagUUID {
				id, err := uuid.FromBytes(value)
				if err != nil {
					return nil, &types.MalformedKeybagError{Reason: "bag UUID is not 16 bytes"}
				}
				kb.UUID = id
				sawBagUUID = true
				continue
			}
			id, err := uuid.FromBytes(value)
			if err != nil {
				return nil, &types.MalformedKeybagError{Reason: "class key UUID is not 16 bytes"}
			}
			entry = &types.ClassKeyEntry{UUID: id}
			kb.Entries = append(kb.Entries, entry)
			continue
		}

		if entry == nil {
			parseBagAttribute(kb, tag, value)
		} else {
			parseEntryAttribute(entry, tag, value)
		}
	}

	if !sawBagUUID {
		return nil, &types.MalformedKeybagError{Reason: "missing bag UUID"}
	}
	if err := validateEntries(kb); err != nil {
		return nil, err
	}
	return kb, nil
}

func parseBagAttribute(kb *types.Keybag, tag types.KeybagTag, value []byte) {
	switch tag {
	case types.KeybagTagVersion:
		kb.Version = u32(value)
	case types.KeybagTagType:
		kb.Type = u32(value)
	case types.KeybagTagHMAC:
		kb.HMAC = clone(value)
	case types.KeybagTagWrap:
		kb.WrapFlags = u32(value)
	case types.KeybagTagSalt:
		kb.Salt = clone(value)
	case types.KeybagTagIterations:
		kb.Iterations = u32(value)
	case types.KeybagTagDoubleSalt:
		kb.DoubleSalt = clone(value)
	case types.KeybagTagDoubleIterations:
		kb.DoubleIterations = u32(value)
	default:
		kb.Unknown = append(kb.Unknown, types.RawTag{Tag: tag, Value: clone(value)})
	}
}

func parseEntryAttribute(entry *types.ClassKeyEntry, tag types.KeybagTag, value []byte) {
	switch tag {
	case types.KeybagTagClass:
		entry.Class = types.ProtectionClass(u32(value))
	case types.KeybagTagWrap:
		entry.WrapFlags = u32(value)
	case types.KeybagTagKeyType:
		entry.KeyType = u32(value)
	case types.KeybagTagWrappedKey:
		entry.WrappedKey = clone(value)
	case types.KeybagTagPublicKey:
		entry.PublicKey = clone(value)
	default:
		entry.Unknown = append(entry.Unknown, types.RawTag{Tag: tag, Value: clone(value)})
	}
}

func validateEntries(kb *types.Keybag) error {
	if len(kb.Entries) == 0 {
		return &types.MalformedKeybagError{Reason: "no class key entries"}
	}
	withKey := 0
	for _, e := range kb.Entries {
		if len(e.WrappedKey) > 0 {
			withKey++
		}
	}
	if withKey == 0 {
		return &types.MalformedKeybagError{Reason: "no class entry carries a wrapped key"}
	}
	return nil
}

func u32(value []byte) uint32 {
	if len(value) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(value)
}

func clone(value []byte) []byte {
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
