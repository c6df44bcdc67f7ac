package manifest

import (
	"bytes"
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-mobilesync/internal/crypto"
	"github.com/deploymenttheory/go-mobilesync/internal/interfaces"
	"github.com/deploymenttheory/go-mobilesync/internal/parsers/record"
	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

// sqliteHeader is the 16-byte magic every sqlite database file starts with.
// Seeing it after decryption proves the manifest key was correct.
var sqliteHeader = []byte("SQLite format 3\x00")

// manifestKeyPrefixSize is the little-endian protection class prepended to
// the wrapped manifest database key.
const manifestKeyPrefixSize = 4

// store indexes the decrypted manifest database. All records are loaded
// eagerly at open time; the decrypted database is kept on disk as a
// temporary file for pattern queries and SaveTo until Close.
type store struct {
	db      *sql.DB
	dbPath  string
	byID    map[string]*types.FileRecord
	ordered []*types.FileRecord
	log     *logrus.Entry
}

// Ensure store implements the ManifestStore interface
var _ interfaces.ManifestStore = (*store)(nil)

// ComputeFileID returns the content identifier for a (domain, relativePath)
// pair: the hex SHA-1 of the two joined with a dash.
func ComputeFileID(domain, relativePath string) string {
	sum := sha1.Sum([]byte(domain + "-" + relativePath))
	return hex.EncodeToString(sum[:])
}

// Open decrypts the manifest database with the key recovered from the
// backup metadata and loads every file record into memory. This is the
// bootstrap path: the manifest's own key lives next to, not inside, the
// record table it protects.
func Open(source interfaces.BackupSource, keys interfaces.ClassKeyProvider, log *logrus.Entry) (interfaces.ManifestStore, error) {
	info, err := source.Info()
	if err != nil {
		return nil, err
	}
	if len(info.ManifestKey) <= manifestKeyPrefixSize {
		return nil, fmt.Errorf("manifest key metadata is %d bytes, too short to hold a wrapped key", len(info.ManifestKey))
	}
	class := types.ProtectionClass(binary.LittleEndian.Uint32(info.ManifestKey[:manifestKeyPrefixSize]))
	manifestKey, err := keys.UnwrapKeyForClass(class, info.ManifestKey[manifestKeyPrefixSize:])
	if err != nil {
		return nil, fmt.Errorf("unwrapping manifest database key: %w", err)
	}
	defer crypto.ZeroBytes(manifestKey)

	encrypted, err := source.ManifestDatabase()
	if err != nil {
		return nil, err
	}
	plain, err := crypto.DecryptCBC(encrypted, manifestKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting manifest database: %w", err)
	}
	if !bytes.HasPrefix(plain, sqliteHeader) {
		return nil, fmt.Errorf("decrypted manifest database is not a sqlite database")
	}

	tmp, err := os.CreateTemp("", "mobilesync-manifest-*.db")
	if err != nil {
		return nil, fmt.Errorf("materializing manifest database: %w", err)
	}
	dbPath := tmp.Name()
	if _, err := tmp.Write(plain); err != nil {
		tmp.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("materializing manifest database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(dbPath)
		return nil, fmt.Errorf("materializing manifest database: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		os.Remove(dbPath)
		return nil, fmt.Errorf("opening manifest database: %w", err)
	}

	s := &store{
		db:     db,
		dbPath: dbPath,
		byID:   make(map[string]*types.FileRecord),
		log:    log,
	}
	if err := s.loadRecords(); err != nil {
		s.Close()
		return nil, err
	}
	log.WithField("records", len(s.byID)).Debug("manifest database indexed")
	return s, nil
}

// loadRecords reads every row of the Files table and decodes its archived
// metadata. Rows whose metadata fails to decode are skipped with a warning
// so one damaged record cannot take the whole index down.
func (s *store) loadRecords() error {
	rows, err := s.db.Query(`SELECT fileID, domain, relativePath, flags, file FROM Files`)
	if err != nil {
		return fmt.Errorf("querying file records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fileID, domain, relativePath string
			flags                        int64
			blob                         []byte
		)
		if err := rows.Scan(&fileID, &domain, &relativePath, &flags, &blob); err != nil {
			return fmt.Errorf("scanning file record: %w", err)
		}
		rec, err := record.Parse(blob, fileID, domain, relativePath, flags)
		if err != nil {
			s.log.WithField("fileID", fileID).WithError(err).Warn("skipping undecodable file record")
			continue
		}
		s.byID[fileID] = rec
		s.ordered = append(s.ordered, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading file records: %w", err)
	}

	sort.Slice(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i], s.ordered[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		return a.RelativePath < b.RelativePath
	})
	return nil
}

func (s *store) ByID(fileID string) (*types.FileRecord, bool) {
	rec, ok := s.byID[fileID]
	return rec, ok
}

func (s *store) ByPath(domain, relativePath string) (*types.FileRecord, bool, error) {
	if domain == "" {
		return nil, false, &types.InvalidArgumentError{Argument: "domain", Reason: "must not be empty"}
	}
	if relativePath == "" {
		return nil, false, &types.InvalidArgumentError{Argument: "relativePath", Reason: "must not be empty"}
	}
	rec, ok := s.byID[ComputeFileID(domain, relativePath)]
	return rec, ok, nil
}

func (s *store) ByRelativePath(relativePath string) (*types.FileRecord, bool, error) {
	if relativePath == "" {
		return nil, false, &types.InvalidArgumentError{Argument: "relativePath", Reason: "must not be empty"}
	}
	for _, rec := range s.ordered {
		if rec.RelativePath == relativePath && rec.IsRegularFile() {
			return rec, true, nil
		}
	}
	return nil, false, nil
}

// Matching runs an SQL LIKE query over regular-file relative paths. The
// underscore and percent wildcards pass straight through to sqlite.
func (s *store) Matching(pattern string) ([]*types.FileRecord, error) {
	if pattern == "" {
		return nil, &types.InvalidArgumentError{Argument: "pattern", Reason: "must not be empty"}
	}
	rows, err := s.db.Query(
		`SELECT fileID FROM Files WHERE relativePath LIKE ? AND flags = ? ORDER BY domain, relativePath`,
		pattern, int64(types.RecordFlagFile))
	if err != nil {
		return nil, fmt.Errorf("matching %q: %w", pattern, err)
	}
	defer rows.Close()

	var matched []*types.FileRecord
	for rows.Next() {
		var fileID string
		if err := rows.Scan(&fileID); err != nil {
			return nil, fmt.Errorf("matching %q: %w", pattern, err)
		}
		if rec, ok := s.byID[fileID]; ok {
			matched = append(matched, rec)
		}
	}
	return matched, rows.Err()
}

func (s *store) InDomain(domain string) ([]*types.FileRecord, error) {
	if domain == "" {
		return nil, &types.InvalidArgumentError{Argument: "domain", Reason: "must not be empty"}
	}
	var records []*types.FileRecord
	for _, rec := range s.ordered {
		if rec.Domain == domain {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *store) All() []*types.FileRecord {
	out := make([]*types.FileRecord, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s *store) Count() int {
	return len(s.byID)
}

// TopDirectories groups record counts by domain and leading path segment.
func (s *store) TopDirectories() ([]types.DirectoryStat, error) {
	rows, err := s.db.Query(`
		SELECT domain,
		       CASE WHEN instr(relativePath, '/') = 0 THEN ''
		            ELSE substr(relativePath, 1, instr(relativePath, '/') - 1)
		       END AS top,
		       COUNT(*)
		FROM Files
		GROUP BY domain, top
		ORDER BY domain, top`)
	if err != nil {
		return nil, fmt.Errorf("summarizing top directories: %w", err)
	}
	defer rows.Close()

	var stats []types.DirectoryStat
	for rows.Next() {
		var stat types.DirectoryStat
		if err := rows.Scan(&stat.Domain, &stat.Directory, &stat.Count); err != nil {
			return nil, fmt.Errorf("summarizing top directories: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// SaveTo writes the decrypted manifest database to path.
func (s *store) SaveTo(path string) error {
	data, err := os.ReadFile(s.dbPath)
	if err != nil {
		return fmt.Errorf("saving manifest database: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("saving manifest database: %w", err)
	}
	return nil
}

// Close releases the database handle and removes the temporary plaintext
// copy of the manifest.
func (s *store) Close() error {
	err := s.db.Close()
	if rmErr := os.Remove(s.dbPath); err == nil {
		err = rmErr
	}
	return err
}
