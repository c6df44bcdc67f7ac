package types

import "time"

// RecordFlags describes what kind of entry a file record is.
type RecordFlags int64

const (
	RecordFlagFile      RecordFlags = 1
	RecordFlagDirectory RecordFlags = 2
	RecordFlagSymlink   RecordFlags = 4
)

// FileRecord is one backed-up item as listed in the manifest database.
//
// FileID is the content identifier computed from Domain and RelativePath;
// it doubles as the on-disk name of the encrypted content blob. Many
// records reference the same protection class, whose key in the keybag
// unwraps WrappedFileKey.
type FileRecord struct {
	FileID       string
	Domain       string
	RelativePath string
	Flags        RecordFlags

	ProtectionClass ProtectionClass
	// WrappedFileKey is the per-file AES key wrapped under the record's
	// class key. Empty for records stored without encryption (directories
	// and some empty files).
	WrappedFileKey []byte

	// Size is the true plaintext length in bytes. The stored blob is
	// padded to a cipher block boundary, so this is authoritative.
	Size int64

	Mode       uint32
	UserID     uint32
	GroupID    uint32
	Inode      uint64
	ModifiedAt time.Time
	CreatedAt  time.Time

	// LinkTarget is populated for symlink records.
	LinkTarget string
}

// IsRegularFile reports whether the record describes a regular file with
// content stored in the backup.
func (r *FileRecord) IsRegularFile() bool {
	return r.Flags == RecordFlagFile
}

// Encrypted reports whether the record carries a wrapped per-file key.
func (r *FileRecord) Encrypted() bool {
	return len(r.WrappedFileKey) > 0
}
