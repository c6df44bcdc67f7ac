package interfaces

import (
	"github.com/google/uuid"

	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

// BlobStorage provides content blobs by their content identifier. The
// session treats storage as an external collaborator so the decryption
// pipeline can be exercised against any byte-array-by-key source.
type BlobStorage interface {
	// Read returns the raw (still encrypted) bytes stored under fileID.
	Read(fileID string) ([]byte, error)

	// Exists reports whether a blob is present for fileID.
	Exists(fileID string) bool
}

// BackupSource is a backup directory: blob storage plus the two fixed
// metadata files read during session setup.
type BackupSource interface {
	BlobStorage

	// Info returns the backup's manifest metadata (keybag blob, wrapped
	// manifest key, device lockdown data).
	Info() (*types.ManifestInfo, error)

	// ManifestDatabase returns the encrypted manifest database bytes.
	ManifestDatabase() ([]byte, error)

	// Path returns the backup directory location for diagnostics.
	Path() string
}

// ClassKeyProvider exposes the unwrapped protection-class keys of an
// unlocked keybag. Implementations are immutable after unlock and safe
// for concurrent readers.
type ClassKeyProvider interface {
	// BackupUUID returns the keybag's backup identifier.
	BackupUUID() uuid.UUID

	// Available reports whether a plaintext key is held for the class.
	Available(class types.ProtectionClass) bool

	// AvailableClasses lists every class with an unwrapped key.
	AvailableClasses() []types.ProtectionClass

	// UnwrapKeyForClass unwraps a key (for example a record's file key)
	// that was wrapped under the given class key.
	UnwrapKeyForClass(class types.ProtectionClass, wrapped []byte) ([]byte, error)
}

// ManifestStore indexes the decrypted manifest database. Lookups are total:
// an absent entry yields a false second return, never an error.
type ManifestStore interface {
	// ByID returns the record stored under the given content identifier.
	ByID(fileID string) (*types.FileRecord, bool)

	// ByPath computes the content identifier for (domain, relativePath)
	// and looks it up. Empty arguments yield an InvalidArgumentError.
	ByPath(domain, relativePath string) (*types.FileRecord, bool, error)

	// ByRelativePath returns the first regular-file record matching the
	// relative path in any domain.
	ByRelativePath(relativePath string) (*types.FileRecord, bool, error)

	// Matching returns regular-file records whose relative path matches
	// an SQL LIKE pattern, ordered by domain then relative path.
	Matching(pattern string) ([]*types.FileRecord, error)

	// InDomain returns all records belonging to a domain.
	InDomain(domain string) ([]*types.FileRecord, error)

	// All returns every record, ordered by domain then relative path.
	All() []*types.FileRecord

	// Count returns the number of indexed records.
	Count() int

	// TopDirectories summarizes how many records fall under each
	// top-level directory of each domain.
	TopDirectories() ([]types.DirectoryStat, error)

	// SaveTo writes the decrypted manifest database to path.
	SaveTo(path string) error

	// Close releases the store's temporary resources.
	Close() error
}

// FileDecryptor turns a manifest record into plaintext content bytes.
type FileDecryptor interface {
	// Decrypt unwraps the record's file key and decrypts its content
	// blob, truncated to the record's true size. Directory, symlink and
	// empty-file records decrypt to zero bytes without a storage read.
	Decrypt(record *types.FileRecord) ([]byte, error)
}
