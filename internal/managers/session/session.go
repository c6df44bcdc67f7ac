package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-mobilesync/internal/crypto"
	"github.com/deploymenttheory/go-mobilesync/internal/interfaces"
	keybagmanager "github.com/deploymenttheory/go-mobilesync/internal/managers/keybag"
	"github.com/deploymenttheory/go-mobilesync/internal/manifest"
	keybagparser "github.com/deploymenttheory/go-mobilesync/internal/parsers/keybag"
	"github.com/deploymenttheory/go-mobilesync/internal/storage"
	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

// Backup is an opened but still locked backup: metadata and keybag are
// parsed, no key material has been derived yet.
type Backup struct {
	source interfaces.BackupSource
	info   *types.ManifestInfo
	bag    *types.Keybag
	log    *logrus.Entry
}

// Open reads a backup directory's metadata and parses its keybag.
func Open(dir string, log *logrus.Entry) (*Backup, error) {
	source, err := storage.NewDirectorySource(dir)
	if err != nil {
		return nil, err
	}
	return OpenSource(source, log)
}

// OpenSource opens a backup served by an arbitrary source.
func OpenSource(source interfaces.BackupSource, log *logrus.Entry) (*Backup, error) {
	info, err := source.Info()
	if err != nil {
		return nil, err
	}
	if !info.IsEncrypted {
		return nil, fmt.Errorf("backup at %s is not encrypted", source.Path())
	}
	bag, err := keybagparser.Parse(info.BackupKeyBag)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"path":    source.Path(),
		"uuid":    bag.UUID,
		"classes": len(bag.Entries),
	}).Debug("backup opened")
	return &Backup{source: source, info: info, bag: bag, log: log}, nil
}

// Info returns the backup's manifest metadata.
func (b *Backup) Info() *types.ManifestInfo {
	return b.info
}

// Unlock derives keys from the passphrase, decrypts the manifest database
// and returns a ready session. The passphrase slice is zeroed. A wrong
// passphrase fails with InvalidPassphraseError and the backup stays usable
// for another attempt.
func (b *Backup) Unlock(passphrase []byte) (*Session, error) {
	keys, err := keybagmanager.Unlock(b.bag, passphrase, b.log)
	if err != nil {
		return nil, err
	}
	store, err := manifest.Open(b.source, keys, b.log)
	if err != nil {
		return nil, err
	}
	b.log.WithField("records", store.Count()).Info("backup unlocked")
	return &Session{source: b.source, keys: keys, store: store, log: b.log}, nil
}

// Session is an unlocked backup. Its key material and manifest index are
// immutable, so all methods are safe for concurrent use.
type Session struct {
	source interfaces.BackupSource
	keys   interfaces.ClassKeyProvider
	store  interfaces.ManifestStore
	log    *logrus.Entry
}

// Ensure Session implements the FileDecryptor interface
var _ interfaces.FileDecryptor = (*Session)(nil)

// Manifest exposes the manifest index for listing and lookups.
func (s *Session) Manifest() interfaces.ManifestStore {
	return s.store
}

// Keys exposes the unlocked class keys.
func (s *Session) Keys() interfaces.ClassKeyProvider {
	return s.keys
}

// Source exposes the underlying backup source.
func (s *Session) Source() interfaces.BackupSource {
	return s.source
}

// File decrypts the record stored for (domain, relativePath).
func (s *Session) File(domain, relativePath string) ([]byte, error) {
	rec, ok, err := s.store.ByPath(domain, relativePath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.NotFoundError{Domain: domain, RelativePath: relativePath}
	}
	return s.Decrypt(rec)
}

// FileByID decrypts the record stored under a content identifier.
func (s *Session) FileByID(fileID string) ([]byte, error) {
	rec, ok := s.store.ByID(fileID)
	if !ok {
		return nil, &types.NotFoundError{FileID: fileID}
	}
	return s.Decrypt(rec)
}

// Decrypt turns a manifest record into plaintext. Directories, symlinks
// and empty files yield zero bytes without touching storage. Unencrypted
// records pass their blob through. The result is always truncated to the
// manifest-recorded size; a blob decrypting to fewer bytes than that is
// reported as corrupt.
func (s *Session) Decrypt(rec *types.FileRecord) ([]byte, error) {
	if !rec.IsRegularFile() || rec.Size == 0 {
		return []byte{}, nil
	}

	blob, err := s.source.Read(rec.FileID)
	if err != nil {
		return nil, err
	}

	var plain []byte
	if rec.Encrypted() {
		fileKey, err := s.keys.UnwrapKeyForClass(rec.ProtectionClass, rec.WrappedFileKey)
		if err != nil {
			var unwrapErr *types.KeyUnwrapError
			if errors.As(err, &unwrapErr) {
				return nil, &types.KeyUnwrapError{FileID: rec.FileID, Class: rec.ProtectionClass}
			}
			return nil, err
		}
		plain, err = crypto.DecryptCBC(blob, fileKey)
		crypto.ZeroBytes(fileKey)
		if err != nil {
			return nil, fmt.Errorf("decrypting content of %s: %w", rec.FileID, err)
		}
	} else {
		plain = blob
	}

	if int64(len(plain)) < rec.Size {
		return nil, &types.CorruptContentError{FileID: rec.FileID, Want: rec.Size, Got: int64(len(plain))}
	}
	return plain[:rec.Size], nil
}

// ExtractFile decrypts one record and writes it to destPath, creating
// parent directories as needed.
func (s *Session) ExtractFile(domain, relativePath, destPath string) error {
	rec, ok, err := s.store.ByPath(domain, relativePath)
	if err != nil {
		return err
	}
	if !ok {
		return &types.NotFoundError{Domain: domain, RelativePath: relativePath}
	}
	_, err = s.writeRecord(rec, destPath)
	return err
}

// ExtractResult reports the outcome of one record in a batch extraction.
type ExtractResult struct {
	Record *types.FileRecord
	// Path is where the plaintext was written; empty when Err is set or
	// the record carries no content.
	Path string
	Err  error
}

// ExtractMatching decrypts every regular file whose relative path matches
// an SQL LIKE pattern into outDir, preserving domain and path structure.
// Per-file failures are reported in the results, never aborting siblings.
func (s *Session) ExtractMatching(ctx context.Context, pattern, outDir string) ([]ExtractResult, error) {
	records, err := s.store.Matching(pattern)
	if err != nil {
		return nil, err
	}
	return s.extractBatch(ctx, records, outDir), nil
}

// ExtractAll decrypts every regular file in the backup into outDir.
func (s *Session) ExtractAll(ctx context.Context, outDir string) ([]ExtractResult, error) {
	var records []*types.FileRecord
	for _, rec := range s.store.All() {
		if rec.IsRegularFile() {
			records = append(records, rec)
		}
	}
	return s.extractBatch(ctx, records, outDir), nil
}

// SaveManifest writes the decrypted manifest database to path.
func (s *Session) SaveManifest(path string) error {
	return s.store.SaveTo(path)
}

// Close releases the session's manifest resources.
func (s *Session) Close() error {
	return s.store.Close()
}

// extractBatch fans records out to a CPU-bounded worker pool. Each worker
// only reads shared immutable state, so no locking is needed beyond the
// channels.
func (s *Session) extractBatch(ctx context.Context, records []*types.FileRecord, outDir string) []ExtractResult {
	if len(records) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(records) {
		workers = len(records)
	}

	jobs := make(chan *types.FileRecord)
	results := make(chan ExtractResult, len(records))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				path, err := s.writeRecord(rec, s.destPath(outDir, rec))
				results <- ExtractResult{Record: rec, Path: path, Err: err}
			}
		}()
	}

	fed := 0
feed:
	for _, rec := range records {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- rec:
			fed++
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]ExtractResult, 0, len(records))
	for res := range results {
		if res.Err != nil {
			s.log.WithField("fileID", res.Record.FileID).WithError(res.Err).Warn("extraction failed")
		}
		out = append(out, res)
	}
	// Records never fed because the context ended still get a result.
	for _, rec := range records[fed:] {
		out = append(out, ExtractResult{Record: rec, Err: ctx.Err()})
	}
	return out
}

// destPath maps a record into the output tree.
func (s *Session) destPath(outDir string, rec *types.FileRecord) string {
	return filepath.Join(outDir, sanitizeSegment(rec.Domain), sanitizePath(rec.RelativePath))
}

// writeRecord decrypts one record and writes it to destPath.
func (s *Session) writeRecord(rec *types.FileRecord, destPath string) (string, error) {
	plain, err := s.Decrypt(rec)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return "", fmt.Errorf("extracting %s: %w", rec.FileID, err)
	}
	if err := os.WriteFile(destPath, plain, 0o600); err != nil {
		return "", fmt.Errorf("extracting %s: %w", rec.FileID, err)
	}
	return destPath, nil
}

// invalidPathChars are characters that cannot appear in file names on
// common filesystems. Backup relative paths may contain them.
const invalidPathChars = `<>:"\|?*`

// sanitizeSegment rewrites one path segment so it is writable anywhere.
func sanitizeSegment(segment string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidPathChars, r) || r < 0x20 {
			return '_'
		}
		return r
	}, segment)
}

// sanitizePath sanitizes each segment of a slash-separated relative path.
func sanitizePath(relativePath string) string {
	segments := strings.Split(relativePath, "/")
	for i, seg := range segments {
		segments[i] = sanitizeSegment(seg)
	}
	return filepath.Join(segments...)
}
