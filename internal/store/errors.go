package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure. Both engines report the sqlite message text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// wrap converts a storage error into a domain error.
func wrap(op string, err error) error {
	if isUniqueViolation(err) {
		return types.Conflict(op, err)
	}
	return types.Internal(op, err)
}

// ErrLocalState marks a replica open that failed on the local files rather
// than on the connection to the cloud. Only such failures are cured by
// quarantining the files.
var ErrLocalState = errors.New("local replica state unusable")

func localStateErr(err error) error {
	return fmt.Errorf("%w: %w", ErrLocalState, err)
}

var sqliteHeader = []byte("SQLite format 3\x00")

// checkDBFile rejects a store file that exists but is not a database. A
// missing or empty file is a new database.
func checkDBFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(sqliteHeader))
	n, err := io.ReadFull(f, head)
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		return nil
	case err != nil && !errors.Is(err, io.ErrUnexpectedEOF):
		return err
	case !bytes.Equal(head[:n], sqliteHeader):
		return fmt.Errorf("%s is not a database file", path)
	}
	return nil
}
