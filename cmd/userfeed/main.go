// Command userfeed browses a paged user listing through the page cache.
//
// Usage:
//
//	userfeed browse --pages 3 --favorite <id>
//	userfeed serve --addr :8080
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
