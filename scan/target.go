package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MatchesSuffixes reports whether a target is applicable under a
// file-suffix restriction: an empty suffix list matches everything; a
// file target matches on its own suffix; a directory target matches if
// any file under it does.
func MatchesSuffixes(target string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}

	info, err := os.Stat(target)
	if err != nil {
		// Image references and other non-path targets have no files
		// to inspect; leave the decision to the tool itself.
		return true
	}

	if !info.IsDir() {
		return suffixMatch(target, suffixes)
	}

	found := false
	filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && suffixMatch(path, suffixes) {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func suffixMatch(path string, suffixes []string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, s := range suffixes {
		if strings.HasSuffix(base, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
