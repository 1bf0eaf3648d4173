// Command tagall manages items, tags and workspaces in a local or
// cloud-synced store.
package main

import "github.com/mesh-intelligence/tagall/internal/cli"

func main() {
	cli.Execute()
}
