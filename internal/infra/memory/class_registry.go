package memory

import (
	"context"
	"sort"
	"sync"
)

// ClassRegistry is a static student -> classes mapping.
type ClassRegistry struct {
	mu      sync.RWMutex
	classes map[string]map[string]struct{}
}

func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: make(map[string]map[string]struct{})}
}

// Enroll adds studentIDs to classID.
func (r *ClassRegistry) Enroll(classID string, studentIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range studentIDs {
		set, ok := r.classes[id]
		if !ok {
			set = make(map[string]struct{})
			r.classes[id] = set
		}
		set[classID] = struct{}{}
	}
}

func (r *ClassRegistry) ClassesOf(_ context.Context, studentID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classes[studentID]))
	for classID := range r.classes[studentID] {
		out = append(out, classID)
	}
	sort.Strings(out)
	return out, nil
}

func (r *ClassRegistry) EnrollStudents(_ context.Context, classID string, studentIDs []string) error {
	r.Enroll(classID, studentIDs...)
	return nil
}
