package types

import "strings"

// Backend modes. A store runs in local mode unless a sync config is
// persisted beside it, in which case it opens as an embedded replica of the
// configured cloud database.
const (
	ModeLocal   = "local"
	ModeReplica = "replica"
)

// SyncConfig holds the connection parameters of the cloud database. It is
// persisted as {"url": ..., "token": ...}.
type SyncConfig struct {
	URL   string `json:"url" yaml:"url"`
	Token string `json:"token" yaml:"token"`
}

// Validate checks that both fields are present.
func (c *SyncConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrSyncURLEmpty
	}
	if strings.TrimSpace(c.Token) == "" {
		return ErrSyncTokenEmpty
	}
	return nil
}

// Redacted returns a copy safe for logs and CLI output.
func (c SyncConfig) Redacted() SyncConfig {
	if len(c.Token) > 4 {
		c.Token = c.Token[:4] + strings.Repeat("*", 8)
	} else if c.Token != "" {
		c.Token = "****"
	}
	return c
}
