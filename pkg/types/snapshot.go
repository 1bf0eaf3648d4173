package types

import "time"

// Snapshot is the full data set of a store, captured before a backend
// switch and replayed into the new backend. Ids are those of the source
// store; restoring rebinds them.
type Snapshot struct {
	TakenAt       time.Time      `json:"taken_at"`
	Workspaces    []Workspace    `json:"workspaces"`
	WorkspaceDirs []WorkspaceDir `json:"workspace_dirs"`
	Tags          []Tag          `json:"tags"`
	TagEdges      []TagEdge      `json:"tag_edges"`
	Items         []Item         `json:"items"`
	ItemTags      []ItemTag      `json:"item_tags"`
	WindowState   *WindowState   `json:"window_state,omitempty"`
}

// Counts summarizes the snapshot for logging.
func (s *Snapshot) Counts() (items, tags, workspaces int) {
	return len(s.Items), len(s.Tags), len(s.Workspaces)
}
