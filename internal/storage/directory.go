package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"howett.net/plist"

	"github.com/deploymenttheory/go-mobilesync/internal/interfaces"
	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

// Fixed metadata file names inside a backup directory.
const (
	ManifestInfoName     = "Manifest.plist"
	ManifestDatabaseName = "Manifest.db"
)

// directorySource reads a backup laid out as a directory tree: two
// metadata files at the root and content blobs sharded into 256
// two-hex-digit subdirectories by the leading byte of their identifier.
type directorySource struct {
	dir string

	infoOnce sync.Once
	info     *types.ManifestInfo
	infoErr  error
}

// Ensure directorySource implements the BackupSource interface
var _ interfaces.BackupSource = (*directorySource)(nil)

// NewDirectorySource opens a backup directory. It fails fast when the
// directory or its manifest metadata file is missing so callers get a
// usable error before any cryptographic work starts.
func NewDirectorySource(dir string) (interfaces.BackupSource, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening backup directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("opening backup directory: %s is not a directory", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestInfoName)); err != nil {
		return nil, fmt.Errorf("backup directory %s has no %s: %w", dir, ManifestInfoName, err)
	}
	return &directorySource{dir: dir}, nil
}

// blobPath maps a content identifier to its on-disk location.
func (s *directorySource) blobPath(fileID string) (string, error) {
	if len(fileID) < 2 {
		return "", &types.InvalidArgumentError{Argument: "fileID", Reason: "shorter than the two-character shard prefix"}
	}
	return filepath.Join(s.dir, strings.ToLower(fileID[:2]), fileID), nil
}

// Read returns the raw stored bytes for a content identifier.
func (s *directorySource) Read(fileID string) ([]byte, error) {
	path, err := s.blobPath(fileID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &types.NotFoundError{FileID: fileID}
	}
	if err != nil {
		return nil, fmt.Errorf("reading content blob %s: %w", fileID, err)
	}
	return data, nil
}

// Exists reports whether a content blob is present for the identifier.
func (s *directorySource) Exists(fileID string) bool {
	path, err := s.blobPath(fileID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Info parses and caches the backup's manifest metadata.
func (s *directorySource) Info() (*types.ManifestInfo, error) {
	s.infoOnce.Do(func() {
		data, err := os.ReadFile(filepath.Join(s.dir, ManifestInfoName))
		if err != nil {
			s.infoErr = fmt.Errorf("reading %s: %w", ManifestInfoName, err)
			return
		}
		var info types.ManifestInfo
		if _, err := plist.Unmarshal(data, &info); err != nil {
			s.infoErr = fmt.Errorf("parsing %s: %w", ManifestInfoName, err)
			return
		}
		s.info = &info
	})
	return s.info, s.infoErr
}

// ManifestDatabase returns the encrypted manifest database bytes.
func (s *directorySource) ManifestDatabase() ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestDatabaseName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ManifestDatabaseName, err)
	}
	return data, nil
}

// Path returns the backup directory location.
func (s *directorySource) Path() string {
	return s.dir
}
