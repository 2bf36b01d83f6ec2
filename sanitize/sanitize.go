package sanitize

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxLength is the length bound applied when callers pass a non-positive limit.
const DefaultMaxLength = 100

const fallbackName = "untitled"

var (
	reservedChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	separatorRuns = regexp.MustCompile(`[_\s\p{Z}\x{85}]+`)
)

// Sanitize maps an arbitrary string to a name that is safe to use as a single
// path component. The result is never empty and holds at most maxLength runes.
func Sanitize(name string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	name = reservedChars.ReplaceAllString(name, "_")
	name = controlChars.ReplaceAllString(name, "")
	name = separatorRuns.ReplaceAllString(name, "_")

	if runes := []rune(name); len(runes) > maxLength {
		name = string(runes[:maxLength])
	}
	name = strings.TrimRight(name, ". ")

	if name == "" {
		return fallbackName
	}
	return name
}

// UniquePath returns base unchanged when exists reports it free, otherwise the
// first free variant with _1, _2, ... inserted before the extension.
func UniquePath(base string, exists func(string) bool) string {
	if exists == nil {
		exists = FileExists
	}
	if !exists(base) {
		return base
	}

	dir, file := filepath.Split(base)
	ext := filepath.Ext(file)
	if ext == file {
		ext = ""
	}
	stem := strings.TrimSuffix(file, ext)

	for counter := 1; ; counter++ {
		candidate := dir + stem + "_" + strconv.Itoa(counter) + ext
		if !exists(candidate) {
			return candidate
		}
	}
}

// FileExists reports whether path exists on the local filesystem.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
