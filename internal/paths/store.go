package paths

import (
	"os"
	"path/filepath"
)

// DBFileName is the name of the store file inside the data directory.
const DBFileName = "tag_all.db"

// SyncConfigFileName is persisted beside the store file. Its presence makes
// the store open as a cloud replica.
const SyncConfigFileName = "sync_config.json"

// StoreFiles names the database file and every file derived from it.
type StoreFiles struct {
	DB string
}

// NewStoreFiles returns the file set of a store at dbPath.
func NewStoreFiles(dbPath string) StoreFiles {
	return StoreFiles{DB: dbPath}
}

// ForDataDir returns the file set of the default store in dataDir.
func ForDataDir(dataDir string) StoreFiles {
	return NewStoreFiles(filepath.Join(dataDir, DBFileName))
}

// Dir returns the directory holding the store.
func (f StoreFiles) Dir() string { return filepath.Dir(f.DB) }

// SyncConfig returns the path of the persisted sync config.
func (f StoreFiles) SyncConfig() string {
	return filepath.Join(f.Dir(), SyncConfigFileName)
}

// Backup returns the path of the JSON export written before a migration.
func (f StoreFiles) Backup() string { return f.DB + ".backup.json" }

// SafetyCopy returns the path of the raw copy of the store file taken before
// any destructive migration step.
func (f StoreFiles) SafetyCopy() string { return f.DB + ".safety_backup" }

// Quarantine returns the path a broken store file is moved to, tagged with
// suffix.
func (f StoreFiles) Quarantine(suffix string) string {
	return f.DB + ".quarantine-" + suffix
}

// Journal returns the sqlite side files of the store.
func (f StoreFiles) Journal() []string {
	return []string{f.DB + "-wal", f.DB + "-shm", f.DB + "-journal"}
}

// ReplicaMeta returns the metadata an embedded replica keeps beside the
// store file. The last entry is a directory.
func (f StoreFiles) ReplicaMeta() []string {
	return []string{
		f.DB + "-info",
		f.DB + "-client_wal_index",
		f.DB + "-sync",
	}
}

// RemoveAll deletes the store file with its journal and replica metadata.
// Missing files are ignored.
func (f StoreFiles) RemoveAll() error {
	for _, p := range append(append([]string{f.DB}, f.Journal()...), f.ReplicaMeta()...) {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether the store file is present.
func (f StoreFiles) Exists() bool {
	_, err := os.Stat(f.DB)
	return err == nil
}
