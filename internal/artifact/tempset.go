package artifact

import (
	"errors"
	"sync"
)

// TempSet collects the release functions of the temporary resources acquired
// during one resolution pass so they can be released together on every exit
// path, success and failure alike.
type TempSet struct {
	mu       sync.Mutex
	releases []func() error
	released bool
}

// NewTempSet creates an empty temporary-resource set.
func NewTempSet() *TempSet {
	return &TempSet{}
}

// Add records one acquired temporary resource.
func (s *TempSet) Add(release func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releases = append(s.releases, release)
}

// Len returns the number of held resources still pending release.
func (s *TempSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return 0
	}
	return len(s.releases)
}

// ReleaseAll releases every held resource exactly once. Subsequent calls are
// no-ops. Release errors are aggregated rather than short-circuiting, so one
// failing resource never leaks the rest.
func (s *TempSet) ReleaseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for _, release := range s.releases {
		if err := release(); err != nil {
			errs = append(errs, err)
		}
	}
	s.releases = nil

	return errors.Join(errs...)
}
