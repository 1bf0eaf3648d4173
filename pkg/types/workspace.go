package types

// Fixed workspaces are seeded by the schema and can be neither renamed nor
// deleted.
const (
	WorkspaceTodos     int64 = 1
	WorkspaceFiles     int64 = 2
	WorkspaceOthers    int64 = 3
	WorkspaceBookmarks int64 = 4
)

// FixedWorkspaces maps each fixed workspace id to its seeded name.
var FixedWorkspaces = map[int64]string{
	WorkspaceTodos:     "todos",
	WorkspaceFiles:     "files",
	WorkspaceOthers:    "others",
	WorkspaceBookmarks: "bookmarks",
}

// IsFixedWorkspace reports whether id names a fixed workspace.
func IsFixedWorkspace(id int64) bool {
	_, ok := FixedWorkspaces[id]
	return ok
}

// Workspace is an isolated space of items.
type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// WorkspaceDir is a directory mounted into a workspace.
type WorkspaceDir struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	Path        string `json:"path"`
	Collapsed   bool   `json:"collapsed"`
}

// WindowState is the persisted main window placement.
type WindowState struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Pinned bool    `json:"pinned"`
}

// DefaultWindowState is used when nothing has been saved yet.
func DefaultWindowState() WindowState {
	return WindowState{Width: 800, Height: 600, X: 100, Y: 100}
}
