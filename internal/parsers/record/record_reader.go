package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"howett.net/plist"

	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

// keyedArchive is the outer shell of an NSKeyedArchiver binary plist. The
// object graph is flattened into Objects; Top holds the index of the root.
type keyedArchive struct {
	Archiver string               `plist:"$archiver"`
	Objects  []interface{}        `plist:"$objects"`
	Top      map[string]plist.UID `plist:"$top"`
	Version  int                  `plist:"$version"`
}

// classPrefixSize is the little-endian protection class prepended to the
// wrapped file key inside the archive's EncryptionKey data.
const classPrefixSize = 4

// Parse decodes a manifest row's archived file metadata into a FileRecord.
// Identity fields (fileID, domain, relativePath, flags) come from the row
// itself, which is authoritative; the archive supplies everything else.
func Parse(data []byte, fileID, domain, relativePath string, flags int64) (*types.FileRecord, error) {
	var archive keyedArchive
	if _, err := plist.Unmarshal(data, &archive); err != nil {
		return nil, fmt.Errorf("file record %s: %w", fileID, err)
	}
	if archive.Archiver != "NSKeyedArchiver" {
		return nil, fmt.Errorf("file record %s: unexpected archiver %q", fileID, archive.Archiver)
	}

	root, err := archive.object(archive.Top["root"])
	if err != nil {
		return nil, fmt.Errorf("file record %s: %w", fileID, err)
	}
	fields, ok := root.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("file record %s: root object is %T, want dictionary", fileID, root)
	}

	rec := &types.FileRecord{
		FileID:          fileID,
		Domain:          domain,
		RelativePath:    relativePath,
		Flags:           types.RecordFlags(flags),
		ProtectionClass: types.ProtectionClass(asUint64(fields["ProtectionClass"])),
		Size:            int64(asUint64(fields["Size"])),
		Mode:            uint32(asUint64(fields["Mode"])),
		UserID:          uint32(asUint64(fields["UserID"])),
		GroupID:         uint32(asUint64(fields["GroupID"])),
		Inode:           asUint64(fields["InodeNumber"]),
	}
	if sec := asUint64(fields["LastModified"]); sec != 0 {
		rec.ModifiedAt = time.Unix(int64(sec), 0).UTC()
	}
	if sec := asUint64(fields["Birth"]); sec != 0 {
		rec.CreatedAt = time.Unix(int64(sec), 0).UTC()
	}

	if uid, ok := fields["EncryptionKey"].(plist.UID); ok {
		keyData, err := archive.object(uid)
		if err != nil {
			return nil, fmt.Errorf("file record %s: encryption key: %w", fileID, err)
		}
		wrapped, err := wrappedKeyBytes(keyData)
		if err != nil {
			return nil, fmt.Errorf("file record %s: encryption key: %w", fileID, err)
		}
		// The key blob leads with the protection class; prefer it when the
		// dictionary field is absent, and keep the key bytes that follow.
		if rec.ProtectionClass == 0 {
			rec.ProtectionClass = types.ProtectionClass(binary.LittleEndian.Uint32(wrapped[:classPrefixSize]))
		}
		rec.WrappedFileKey = wrapped[classPrefixSize:]
	}

	if uid, ok := fields["Target"].(plist.UID); ok {
		target, err := archive.object(uid)
		if err != nil {
			return nil, fmt.Errorf("file record %s: link target: %w", fileID, err)
		}
		if s, ok := target.(string); ok {
			rec.LinkTarget = s
		}
	}

	return rec, nil
}

// object resolves a UID reference into the flattened object table.
func (a *keyedArchive) object(uid plist.UID) (interface{}, error) {
	idx := int(uid)
	if idx <= 0 || idx >= len(a.Objects) {
		return nil, fmt.Errorf("archive reference %d out of range (%d objects)", idx, len(a.Objects))
	}
	return a.Objects[idx], nil
}

// wrappedKeyBytes extracts the raw key material from an archived NSMutableData
// object. Depending on archive vintage the data arrives as a bare byte slice
// or as a dictionary with an NS.data entry.
func wrappedKeyBytes(obj interface{}) ([]byte, error) {
	var raw []byte
	switch v := obj.(type) {
	case []byte:
		raw = v
	case map[string]interface{}:
		data, ok := v["NS.data"].([]byte)
		if !ok {
			return nil, fmt.Errorf("NS.data missing from archived data object")
		}
		raw = data
	default:
		return nil, fmt.Errorf("archived data object is %T", obj)
	}
	if len(raw) != classPrefixSize+types.WrappedKeySize {
		return nil, fmt.Errorf("wrapped key is %d bytes, want %d", len(raw), classPrefixSize+types.WrappedKeySize)
	}
	return bytes.Clone(raw), nil
}

// asUint64 normalizes the integer representations the plist decoder may
// produce for untyped dictionary values.
func asUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case int:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case float64:
		return uint64(n)
	default:
		return 0
	}
}
