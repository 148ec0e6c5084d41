// Package storage implements content-addressed file storage for uploaded
// structure files and computation artifacts. Files are stored under a
// per-user area (or a shared guest area) with names that encode the content
// hash: "{hash}_{original_name}". Identity is the hash of the raw bytes, so
// re-uploading identical content never duplicates storage.
//
// Layout under the data root:
//
//	<root>/user/<user_id>/files/<hash>_<name>
//	<root>/user/<user_id>/computations/<computation_id>/charges/...
//	<root>/guest/files/<hash>_<name>
//	<root>/guest/computations/<computation_id>/charges/...
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when no stored file matches a requested hash.
var ErrNotFound = errors.New("file not found in storage")

// Hash returns the hex-encoded SHA-256 digest of data. Identical bytes
// always yield an identical hash regardless of filename.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodeName builds the stored filename for a hash and display name.
func EncodeName(hash, name string) string {
	return hash + "_" + name
}

// ParseName splits a stored filename into (hash, original name). Filenames
// without the separator yield an empty hash.
func ParseName(stored string) (hash, name string) {
	i := strings.Index(stored, "_")
	if i < 0 {
		return "", stored
	}
	return stored[:i], stored[i+1:]
}

// StoredFile describes a file present in a storage area.
type StoredFile struct {
	Hash string
	Name string
	Path string
	Size int64
}

// Store provides file operations rooted at a single data directory. Methods
// are safe for concurrent use; the filesystem is the synchronization point.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: data directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: dir}, nil
}

// Root returns the data root directory.
func (s *Store) Root() string { return s.root }

// userArea resolves the per-user (or guest) area under the root.
func (s *Store) userArea(userID string) string {
	if userID == "" {
		return filepath.Join(s.root, "guest")
	}
	return filepath.Join(s.root, "user", userID)
}

// FilesDir returns the file storage directory of a user (or the guest area).
func (s *Store) FilesDir(userID string) string {
	return filepath.Join(s.userArea(userID), "files")
}

// ComputationDir returns the directory holding a computation's artifacts.
func (s *Store) ComputationDir(userID, computationID string) string {
	return filepath.Join(s.userArea(userID), "computations", computationID)
}

// ChargesDir returns the directory holding a computation's charge outputs.
func (s *Store) ChargesDir(userID, computationID string) string {
	return filepath.Join(s.ComputationDir(userID, computationID), "charges")
}

// Save writes data to the owner's file area under the content-hash naming
// convention and returns the stored file description. Saving bytes that are
// already present is a no-op returning the existing entry.
func (s *Store) Save(userID, name string, data []byte) (StoredFile, error) {
	dir := s.FilesDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, err
	}

	hash := Hash(data)
	path := filepath.Join(dir, EncodeName(hash, name))

	if fi, err := os.Stat(path); err == nil {
		return StoredFile{Hash: hash, Name: name, Path: path, Size: fi.Size()}, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return StoredFile{}, err
	}
	return StoredFile{Hash: hash, Name: name, Path: path, Size: int64(len(data))}, nil
}

// Resolve locates the stored file with the given content hash in the owner's
// area. It fails with ErrNotFound when no stored name encodes the hash.
func (s *Store) Resolve(userID, hash string) (StoredFile, error) {
	files, err := s.List(userID)
	if err != nil {
		return StoredFile{}, err
	}
	for _, f := range files {
		if f.Hash == hash {
			return f, nil
		}
	}
	return StoredFile{}, fmt.Errorf("%w: %s", ErrNotFound, hash)
}

// List returns all files stored in the owner's area. A missing area is an
// empty listing, not an error.
func (s *Store) List(userID string) ([]StoredFile, error) {
	dir := s.FilesDir(userID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		hash, name := ParseName(e.Name())
		if hash == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, StoredFile{
			Hash: hash,
			Name: name,
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return out, nil
}

// Delete removes the stored file with the given hash from the owner's area.
// Deleting an absent file is a no-op.
func (s *Store) Delete(userID, hash string) error {
	f, err := s.Resolve(userID, hash)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(f.Path)
}

// RemoveComputation deletes a computation's artifact directory. Removing a
// non-existent computation is a no-op.
func (s *Store) RemoveComputation(userID, computationID string) error {
	return os.RemoveAll(s.ComputationDir(userID, computationID))
}

// UsedSpace sums the sizes of all files in the owner's file area.
func (s *Store) UsedSpace(userID string) (int64, error) {
	files, err := s.List(userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, nil
}

// FreeGuestSpace evicts the oldest guest files until at least need bytes are
// available within the given quota. Guests share one area, so eviction keeps
// the anonymous tier usable without manual cleanup.
func (s *Store) FreeGuestSpace(need, quota int64) error {
	files, err := s.List("")
	if err != nil {
		return err
	}

	type aged struct {
		StoredFile
		mod int64
	}
	stat := make([]aged, 0, len(files))
	var used int64
	for _, f := range files {
		fi, err := os.Stat(f.Path)
		if err != nil {
			continue
		}
		used += f.Size
		stat = append(stat, aged{StoredFile: f, mod: fi.ModTime().UnixNano()})
	}
	sort.Slice(stat, func(i, j int) bool { return stat[i].mod < stat[j].mod })

	for _, f := range stat {
		if quota-used >= need {
			break
		}
		if err := os.Remove(f.Path); err != nil {
			return err
		}
		used -= f.Size
	}
	return nil
}
