package session

import "sort"

// Store holds sessions keyed by id. It is not safe for concurrent use; the
// Engine loop is its only owner.
type Store struct {
	sessions map[string]Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]Session)}
}

func (s *Store) Get(id string) (Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) Put(sess Session) {
	s.sessions[sess.ID] = sess
}

// Remove deletes id and reports whether it was present.
func (s *Store) Remove(id string) bool {
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *Store) Len() int { return len(s.sessions) }

// All returns a copy of every session ordered by id.
func (s *Store) All() []Session {
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
