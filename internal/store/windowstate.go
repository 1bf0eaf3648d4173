package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// WindowStateRepo persists the single window placement row.
type WindowStateRepo struct {
	g *Guard
}

func loadWindowStateTx(ctx context.Context, q queryer) (*types.WindowState, error) {
	var ws types.WindowState
	err := q.QueryRowContext(ctx,
		`SELECT width, height, x, y, pinned FROM window_state WHERE id = 1`).
		Scan(&ws.Width, &ws.Height, &ws.X, &ws.Y, &ws.Pinned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Internal("loading window state", err)
	}
	return &ws, nil
}

func saveWindowStateTx(ctx context.Context, q queryer, ws types.WindowState) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO window_state (id, width, height, x, y, pinned) VALUES (1, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET width = excluded.width, height = excluded.height,
             x = excluded.x, y = excluded.y, pinned = excluded.pinned`,
		ws.Width, ws.Height, ws.X, ws.Y, boolInt(ws.Pinned))
	return types.Internal("saving window state", err)
}

// Load returns the saved window state, or nil when none was saved.
func (r *WindowStateRepo) Load(ctx context.Context) (*types.WindowState, error) {
	var ws *types.WindowState
	err := r.g.Do(ctx, func(c *Conn) error {
		var err error
		ws, err = loadWindowStateTx(ctx, c.DB)
		return err
	})
	return ws, err
}

// Save stores ws, replacing any previous state.
func (r *WindowStateRepo) Save(ctx context.Context, ws types.WindowState) error {
	if ws.Width <= 0 || ws.Height <= 0 {
		return types.InvalidInput("window size %.0fx%.0f must be positive", ws.Width, ws.Height)
	}
	return r.g.Do(ctx, func(c *Conn) error {
		return saveWindowStateTx(ctx, c.DB, ws)
	})
}
