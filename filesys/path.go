package filesys

import (
	"strings"
)

// Paths are '/'-separated; a trailing slash is tolerated. Relative paths
// are resolved against the calling thread's current directory.

// getName returns the trailing component of a path.
func getName(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// getParent returns the path up to and including the last '/'.
func getParent(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[:i+1]
	}
	return "/"
}

// checkRoot makes a path absolute by prefixing the current thread's
// directory when needed.
func (fs *FileSystem) checkRoot(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	cur := fs.k.Current().Path()
	if !strings.HasSuffix(cur, "/") {
		cur += "/"
	}
	return cur + path
}
