package session

import "github.com/workbench/internal/identity"

// state is the facade's cached view of who is signed in
type state struct {
	user *identity.User
}

func (s state) authenticated() bool {
	return s.user != nil
}

// reduce computes the state following a provider event. Every event replaces
// the cached user wholesale with the user of the pushed session; the event
// name does not matter.
func reduce(_ state, _ identity.Event, session *identity.Session) state {
	return state{user: identity.SessionUser(session)}
}
