package types

import "time"

// ItemType determines how an item behaves.
type ItemType string

// Item types.
const (
	ItemDaily     ItemType = "daily"     // recurring, reset by ResetCompleted
	ItemOnce      ItemType = "once"      // disposed of when completed
	ItemCountdown ItemType = "countdown" // progresses toward TargetCount
	ItemDocument  ItemType = "document"  // note, no checkbox
	ItemLabel     ItemType = "label"
)

// ParseItemType maps a stored or user-supplied string to an ItemType.
// Unknown values fall back to ItemDaily.
func ParseItemType(s string) ItemType {
	switch ItemType(s) {
	case ItemOnce, ItemCountdown, ItemDocument, ItemLabel:
		return ItemType(s)
	default:
		return ItemDaily
	}
}

// Item is a node in the per-workspace item tree.
type Item struct {
	ID           int64     `json:"id"`
	Text         string    `json:"text"`
	Completed    bool      `json:"completed"`
	Type         ItemType  `json:"item_type"`
	Memo         *string   `json:"memo,omitempty"`
	TargetCount  *int      `json:"target_count,omitempty"`
	CurrentCount int       `json:"current_count"`
	ParentID     *int64    `json:"parent_id,omitempty"`
	Position     int       `json:"position"`
	Collapsed    bool      `json:"collapsed"`
	WorkspaceID  int64     `json:"workspace_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// File-linking fields, maintained by callers that attach items to
	// paths on disk.
	URL           *string `json:"url,omitempty"`
	Summary       *string `json:"summary,omitempty"`
	ContentHash   *string `json:"content_hash,omitempty"`
	QuickHash     *string `json:"quick_hash,omitempty"`
	LastKnownPath *string `json:"last_known_path,omitempty"`
	IsDir         bool    `json:"is_dir"`
}

// IsRoot reports whether the item has no parent.
func (i *Item) IsRoot() bool { return i.ParentID == nil }

// DisposeOnComplete reports whether completing the item deletes it.
func (i *Item) DisposeOnComplete() bool {
	return i.Completed && i.Type == ItemOnce
}

// NewItem holds the caller-supplied fields of an item to create. A nil
// Position appends the item after its last sibling; otherwise the item is
// inserted at Position and later siblings shift down.
type NewItem struct {
	Text        string
	Type        ItemType
	Memo        *string
	TargetCount *int
	ParentID    *int64
	WorkspaceID int64
	Position    *int
}
