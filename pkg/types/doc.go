// Package types defines the entities, sync configuration, and error kinds
// shared by the tagall store, the migration saga, and the CLI.
//
// Items form a single-parent tree ordered by position within each
// (parent, workspace) pair. Tags form a multi-parent DAG: every tag-tag edge
// carries its own position among the children of its parent, and tags with
// no parent edge additionally carry a global root position.
package types
