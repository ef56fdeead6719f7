package chathub

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps each participant to its single active live channel.
// Reads never wait on a writer for longer than the map update itself.
type Registry struct {
	mu        sync.RWMutex
	clients   map[string]Client
	listeners []func()
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

// OnChange adds a callback invoked after every Register and every Unregister
// that removed an entry. Callbacks run outside the registry lock.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Register binds userID to c, replacing any previous channel for userID.
// The replaced channel is no longer addressed but is not closed here.
func (r *Registry) Register(userID string, c Client) {
	r.mu.Lock()
	r.clients[userID] = c
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners)
}

// Unregister removes userID only while c is still its registered channel, so a
// late close from a replaced connection cannot evict the newer one.
func (r *Registry) Unregister(userID string, c Client) bool {
	r.mu.Lock()
	current, ok := r.clients[userID]
	if !ok || current != c {
		r.mu.Unlock()
		return false
	}
	delete(r.clients, userID)
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners)
	return true
}

func (r *Registry) Lookup(userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// Snapshot returns the sorted set of identities currently registered.
func (r *Registry) Snapshot() []string {
	online, _ := r.view()
	return online
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// view returns the online identities and their channels from one consistent read.
func (r *Registry) view() ([]string, []Client) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := lo.Keys(r.clients)
	sort.Strings(online)
	return online, lo.Values(r.clients)
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
