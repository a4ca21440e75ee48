package sandbox

import (
	"sort"
	"sync"
)

// snapshot is what the manager last wrote into the runtime, path to contents.
type snapshot struct {
	mu    sync.RWMutex
	files map[string]string
}

func newSnapshot() *snapshot {
	return &snapshot{files: make(map[string]string)}
}

// Reset replaces the snapshot with files (nil clears it).
func (s *snapshot) Reset(files map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]string, len(files))
	for p, c := range files {
		s.files[p] = c
	}
}

func (s *snapshot) Upsert(path, contents string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = contents
}

// Changed returns the sorted paths of files whose contents differ from the
// snapshot, including paths the snapshot has never seen.
func (s *snapshot) Changed(files map[string]string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var changed []string
	for p, c := range files {
		if old, ok := s.files[p]; !ok || old != c {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}

func (s *snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
