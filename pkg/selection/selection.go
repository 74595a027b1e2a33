// Package selection holds the externally observable selection token and the
// pure resolver that maps it onto a dataset.
package selection

import (
	"sync"

	"github.com/1F47E/geo-media-map/pkg/models"
)

// Param is the address query parameter carrying the token
const Param = "mediaPointId"

// Token is the id of the selected media point. None means no selection.
type Token string

// None is the empty token
const None Token = ""

// IsNone reports whether the token selects nothing
func (t Token) IsNone() bool {
	return t == None
}

// Store keeps the token outside the map view. Subscribers are called after
// every change, possibly from another goroutine.
type Store interface {
	Read() Token
	Write(t Token)
	Subscribe(fn func(Token)) (cancel func())
}

// Resolve returns the point whose id equals the token. A token naming an id
// absent from points resolves to nothing.
func Resolve(points []models.MediaPoint, t Token) (*models.MediaPoint, bool) {
	if t.IsNone() {
		return nil, false
	}
	for i := range points {
		if points[i].ID == string(t) {
			return &points[i], true
		}
	}
	return nil, false
}

// subscribers is the fan-out shared by the store implementations
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Token)
}

func (s *subscribers) add(fn func(Token)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Token))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(t Token) {
	s.mu.Lock()
	fns := make([]func(Token), 0, len(s.fns))
	for i := 0; i < s.next; i++ {
		if fn, ok := s.fns[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
