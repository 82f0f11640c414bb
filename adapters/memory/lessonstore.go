// Package memory provides in-memory implementations of the store ports.
// They back tests and single-process deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// Errors returned by the in-memory stores.
var (
	ErrNotFound  = ports.ErrNotFound
	ErrDuplicate = ports.ErrDuplicate
)

const civilLayout = "2006-01-02"

// civil reduces a lesson date to its calendar day for range comparisons.
func civil(t time.Time) string {
	return t.Format(civilLayout)
}

// LessonStore is an in-memory implementation of ports.LessonStore.
type LessonStore struct {
	mu        sync.RWMutex
	lessons   map[string]lesson.Lesson // by ID
	byStudent map[string][]string      // student ID -> lesson IDs
}

// NewLessonStore creates a new in-memory lesson store.
func NewLessonStore() *LessonStore {
	return &LessonStore{
		lessons:   make(map[string]lesson.Lesson),
		byStudent: make(map[string][]string),
	}
}

// Create stores a new lesson.
func (s *LessonStore) Create(ctx context.Context, l lesson.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lessons[l.ID]; exists {
		return ErrDuplicate
	}
	s.lessons[l.ID] = l
	s.byStudent[l.StudentID] = append(s.byStudent[l.StudentID], l.ID)
	return nil
}

// Get retrieves a lesson by ID.
func (s *LessonStore) Get(ctx context.Context, id string) (lesson.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lessons[id]
	if !ok {
		return lesson.Lesson{}, ErrNotFound
	}
	return l, nil
}

// Update replaces a stored lesson. The student cannot change.
func (s *LessonStore) Update(ctx context.Context, l lesson.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.lessons[l.ID]
	if !ok {
		return ErrNotFound
	}
	l.StudentID = old.StudentID
	l.CreatedAt = old.CreatedAt
	s.lessons[l.ID] = l
	return nil
}

// ListByStudent returns lessons dated within [from, to], ordered by date then ID.
func (s *LessonStore) ListByStudent(ctx context.Context, studentID string, from, to time.Time) ([]lesson.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := civil(from), civil(to)
	var out []lesson.Lesson
	for _, id := range s.byStudent[studentID] {
		l := s.lessons[id]
		if d := civil(l.Date); d >= lo && d <= hi {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len returns the number of stored lessons.
func (s *LessonStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lessons)
}

// Ensure interface compliance.
var _ ports.LessonStore = (*LessonStore)(nil)
