package domain

import "sort"

// UserID is an opaque, comparable user identity supplied by the caller.
type UserID string

// IDSet is an unordered collection of unique user ids. It is stored sorted so
// that encoded documents are stable across writes.
type IDSet []UserID

// NewIDSet builds a set from ids, dropping duplicates.
func NewIDSet(ids ...UserID) IDSet {
	var s IDSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) search(id UserID) (int, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i, i < len(s) && s[i] == id
}

// Add inserts id and reports whether the set changed.
func (s *IDSet) Add(id UserID) bool {
	i, ok := s.search(id)
	if ok {
		return false
	}
	*s = append(*s, "")
	copy((*s)[i+1:], (*s)[i:])
	(*s)[i] = id
	return true
}

// Remove deletes id and reports whether the set changed.
func (s *IDSet) Remove(id UserID) bool {
	i, ok := s.search(id)
	if !ok {
		return false
	}
	*s = append((*s)[:i], (*s)[i+1:]...)
	return true
}

// Contains reports membership.
func (s IDSet) Contains(id UserID) bool {
	_, ok := s.search(id)
	return ok
}

// Len returns the number of members.
func (s IDSet) Len() int { return len(s) }

// IDs returns a copy of the members in sorted order.
func (s IDSet) IDs() []UserID {
	return append([]UserID(nil), s...)
}

// normalize repairs sets decoded from documents written by other tools.
func (s IDSet) normalize() IDSet {
	if sort.SliceIsSorted(s, func(i, j int) bool { return s[i] < s[j] }) {
		dup := false
		for i := 1; i < len(s); i++ {
			if s[i] == s[i-1] {
				dup = true
				break
			}
		}
		if !dup {
			return s
		}
	}
	return NewIDSet(s...)
}
