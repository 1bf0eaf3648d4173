// Package tagall exposes the store to programs that embed it without the
// CLI. The returned store is the same one the CLI uses: local until a sync
// config is saved beside it, an embedded replica afterwards.
//
// Example:
//
//	s, err := tagall.Open(ctx, dataDir, nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	it, err := s.Items.Create(ctx, types.NewItem{Text: "water plants", WorkspaceID: types.WorkspaceTodos})
package tagall

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/internal/store"
)

// Version is the release version.
const Version = "v0.1.0"

// Store is an opened tagall database with its repositories.
type Store = store.Store

// Open opens or creates the store in dataDir. A nil logger uses
// slog.Default.
func Open(ctx context.Context, dataDir string, logger *slog.Logger) (*Store, error) {
	return store.Open(ctx, paths.ForDataDir(dataDir), store.Options{Logger: logger})
}
