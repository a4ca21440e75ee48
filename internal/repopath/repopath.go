// Package repopath validates the relative file paths that end up in a commit.
// The same rules guard the CLI before a request is built and the HTTP service
// before any GitHub call, so a path accepted on one side is accepted on the other.
package repopath

import (
	"regexp"
	"strings"
)

var safeSegment = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// RepoPath is a validated, slash-separated path relative to the repository root.
// The zero value is not a valid path.
type RepoPath struct {
	segments []string
}

func (p RepoPath) String() string {
	return strings.Join(p.segments, "/")
}

// Segments returns a copy of the path components.
func (p RepoPath) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

func (p RepoPath) IsZero() bool {
	return len(p.segments) == 0
}

func hasForbidden(s string) bool {
	return strings.HasPrefix(s, "/") ||
		strings.Contains(s, "..") ||
		strings.Contains(s, `\`) ||
		strings.Contains(s, "\x00")
}

func validSegment(seg string) bool {
	return seg != "." && safeSegment.MatchString(seg)
}

func fromSegments(parts []string) (RepoPath, bool) {
	var segs []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !validSegment(p) {
			return RepoPath{}, false
		}
		segs = append(segs, p)
	}
	if len(segs) == 0 {
		return RepoPath{}, false
	}
	return RepoPath{segments: segs}, true
}

// Parse checks a path as received from a client. Empty segments are ignored but
// no other rewriting happens.
func Parse(path string) (RepoPath, bool) {
	if path == "" || hasForbidden(path) {
		return RepoPath{}, false
	}
	return fromSegments(strings.Split(path, "/"))
}

// NormalizeDirectory trims the input, collapses repeated separators and strips a
// leading "./" before validating every segment.
func NormalizeDirectory(input string) (RepoPath, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return RepoPath{}, false
	}
	if strings.Contains(s, `\`) || strings.Contains(s, "\x00") {
		return RepoPath{}, false
	}
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	s = strings.TrimPrefix(s, "./")
	if s == "" || hasForbidden(s) {
		return RepoPath{}, false
	}
	return fromSegments(strings.Split(s, "/"))
}

// BuildFilePath joins a directory and a bare file name.
func BuildFilePath(directory, fileName string) (RepoPath, bool) {
	if fileName == "" || strings.ContainsAny(fileName, `/\`) || strings.Contains(fileName, "..") {
		return RepoPath{}, false
	}
	if !validSegment(fileName) {
		return RepoPath{}, false
	}
	dir, ok := NormalizeDirectory(directory)
	if !ok {
		return RepoPath{}, false
	}
	return dir.Join(fileName)
}

// Join appends a single segment.
func (p RepoPath) Join(segment string) (RepoPath, bool) {
	if p.IsZero() || !validSegment(segment) {
		return RepoPath{}, false
	}
	segs := make([]string, 0, len(p.segments)+1)
	segs = append(segs, p.segments...)
	return RepoPath{segments: append(segs, segment)}, true
}
