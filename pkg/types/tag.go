package types

// Tag labels items. Position is the tag's place in the root ordering and is
// only meaningful while the tag has no parent edge.
type Tag struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Color    *string `json:"color,omitempty"`
	Position int     `json:"position"`
}

// TagEdge links a child tag under a parent tag. Position orders the edge
// among the children of ParentID only.
type TagEdge struct {
	ChildID  int64 `json:"child_tag_id"`
	ParentID int64 `json:"parent_tag_id"`
	Position int   `json:"position"`
}

// ItemTag attaches a tag to an item.
type ItemTag struct {
	ItemID int64 `json:"item_id"`
	TagID  int64 `json:"tag_id"`
}
