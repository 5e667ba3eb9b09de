package watcher

import (
	"path/filepath"
	"strings"
)

// matcher decides which base names inside a watched directory are sources.
type matcher struct {
	include []string
	exclude []string
}

func newMatcher(include, exclude []string) (matcher, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return matcher{}, err
		}
	}
	return matcher{include: include, exclude: exclude}, nil
}

// ignored reports names that are never sources: hidden files and the
// backup and swap files editors leave next to the real one.
func (m matcher) ignored(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return true
	}
	for _, p := range m.exclude {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// source reports whether name is picked up by a directory watch.
func (m matcher) source(name string) bool {
	if m.ignored(name) {
		return false
	}
	lower := strings.ToLower(name)
	for _, p := range m.include {
		if ok, _ := filepath.Match(p, lower); ok {
			return true
		}
	}
	return false
}
