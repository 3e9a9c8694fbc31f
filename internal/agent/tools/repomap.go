package tools

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// repoMapMaxDepth and repoMapMaxEntries bound the snapshot the system
// prompt embeds (§4.7.3 step 2) so it stays a small map, not a full listing.
const (
	repoMapMaxDepth   = 2
	repoMapMaxEntries = 200
)

// RepoMap renders a small top-of-tree snapshot of root for the system
// prompt: same shape as list_files but capped in size and silent on error
// (a missing or unreadable root just yields an empty map rather than
// failing the iteration).
func RepoMap(root string) string {
	var lines []string
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if len(lines) >= repoMapMaxEntries {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if len(lines) >= repoMapMaxEntries {
				return
			}
			if e.IsDir() && skippable(e.Name()) {
				continue
			}
			abs := filepath.Join(dir, e.Name())
			rel := rootRelative(root, abs)
			if e.IsDir() {
				lines = append(lines, rel+"/")
				if depth < repoMapMaxDepth {
					walk(abs, depth+1)
				}
				continue
			}
			lines = append(lines, rel)
		}
	}
	walk(root, 0)
	return strings.Join(lines, "\n")
}
