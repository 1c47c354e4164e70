package provider

import (
	"github.com/alphadose/haxmap"
	"github.com/ankitkumar1302/mobilemodels/api"
)

// Registry holds the Session for each provider identifier. A provider that is
// enabled in a room but has no registered session degrades to an error answer
// instead of blocking the turn.
type Registry struct {
	sessions *haxmap.Map[string, Session]
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: haxmap.New[string, Session](),
	}
}

// Register binds a session to a provider, replacing any previous binding.
func (r *Registry) Register(p api.Provider, s Session) {
	r.sessions.Set(string(p), s)
}

// Lookup returns the session registered for p.
func (r *Registry) Lookup(p api.Provider) (Session, bool) {
	return r.sessions.Get(string(p))
}

// Deregister removes the binding for p.
func (r *Registry) Deregister(p api.Provider) {
	r.sessions.Del(string(p))
}

// Registered reports the providers that currently have a session, in
// declaration order.
func (r *Registry) Registered() []api.Provider {
	var result []api.Provider
	for _, p := range api.Providers() {
		if _, ok := r.sessions.Get(string(p)); ok {
			result = append(result, p)
		}
	}
	return result
}
