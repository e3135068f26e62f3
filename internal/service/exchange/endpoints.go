package exchange

import (
	"strings"
	"sync"
)

// Endpoints is a round-robin list of base URLs: the primary first, then its mirrors.
type Endpoints struct {
	mu   sync.Mutex
	urls []string
	idx  int
}

// NewEndpoints builds the rotation list, dropping blanks, trailing slashes and duplicates.
func NewEndpoints(primary string, mirrors ...string) *Endpoints {
	seen := make(map[string]struct{}, len(mirrors)+1)
	urls := make([]string, 0, len(mirrors)+1)
	for _, u := range append([]string{primary}, mirrors...) {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return &Endpoints{urls: urls}
}

// Current returns the base URL requests should use now.
func (e *Endpoints) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.urls) == 0 {
		return ""
	}
	return e.urls[e.idx]
}

// Rotate advances to the next base URL, wrapping around, and returns it.
func (e *Endpoints) Rotate() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.urls) == 0 {
		return ""
	}
	e.idx = (e.idx + 1) % len(e.urls)
	return e.urls[e.idx]
}

func (e *Endpoints) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.urls)
}
