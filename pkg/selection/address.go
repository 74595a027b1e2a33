package selection

import (
	"fmt"
	"net/url"
	"sync"
)

// AddressStore keeps the token in the query string of an address, the way a
// browser location does. Write replaces the current entry; Navigate pushes a
// new one that Back can undo.
type AddressStore struct {
	mu      sync.Mutex
	current *url.URL
	history []*url.URL
	subs    subscribers
}

// NewAddressStore parses the initial address
func NewAddressStore(raw string) (*AddressStore, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address: %w", err)
	}
	return &AddressStore{current: u}, nil
}

func tokenOf(u *url.URL) Token {
	return Token(u.Query().Get(Param))
}

func withToken(u *url.URL, t Token) *url.URL {
	next := *u
	q := next.Query()
	if t.IsNone() {
		q.Del(Param)
	} else {
		q.Set(Param, string(t))
	}
	next.RawQuery = q.Encode()
	return &next
}

func (s *AddressStore) Read() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tokenOf(s.current)
}

// Write replaces the address without adding a history entry
func (s *AddressStore) Write(t Token) {
	s.mu.Lock()
	prev := tokenOf(s.current)
	s.current = withToken(s.current, t)
	s.mu.Unlock()

	if prev != t {
		s.subs.notify(t)
	}
}

// Navigate pushes a new address, as following a shared link does
func (s *AddressStore) Navigate(raw string) error {
	u, err := s.resolve(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := tokenOf(s.current)
	s.history = append(s.history, s.current)
	s.current = u
	next := tokenOf(u)
	s.mu.Unlock()

	if prev != next {
		s.subs.notify(next)
	}
	return nil
}

func (s *AddressStore) resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.ResolveReference(ref), nil
}

// Back restores the previous history entry. It reports false when there is
// none.
func (s *AddressStore) Back() bool {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return false
	}
	prev := tokenOf(s.current)
	s.current = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	next := tokenOf(s.current)
	s.mu.Unlock()

	if prev != next {
		s.subs.notify(next)
	}
	return true
}

// Len returns the number of history entries behind the current one
func (s *AddressStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// String returns the current address
func (s *AddressStore) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.String()
}

func (s *AddressStore) Subscribe(fn func(Token)) func() {
	return s.subs.add(fn)
}

// Subscribers returns the number of live subscriptions
func (s *AddressStore) Subscribers() int {
	return s.subs.count()
}

// Link returns the address that selects id, relative to base
func Link(base string, t Token) string {
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{}
	}
	return withToken(u, t).String()
}
