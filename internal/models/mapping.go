package models

// SubjectOwnerMap maps normalized subject keys to raw owner labels. Keys are
// unique and remember the order in which they were first inserted. A map is
// immutable once built; use SubjectOwnerMapBuilder to create one.
type SubjectOwnerMap struct {
	keys   []string
	owners map[string]string
}

// SubjectOwnerEntry is a single key/owner pair
type SubjectOwnerEntry struct {
	Subject string `json:"subject"`
	Owner   string `json:"owner"`
}

// Lookup returns the owner for a normalized key
func (m *SubjectOwnerMap) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	owner, ok := m.owners[key]
	return owner, ok
}

// Len returns the number of subjects
func (m *SubjectOwnerMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// IsEmpty reports whether the map holds no subjects
func (m *SubjectOwnerMap) IsEmpty() bool {
	return m.Len() == 0
}

// Keys returns a copy of the keys in first-insertion order
func (m *SubjectOwnerMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns all pairs in first-insertion order
func (m *SubjectOwnerMap) Entries() []SubjectOwnerEntry {
	if m == nil {
		return nil
	}
	out := make([]SubjectOwnerEntry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, SubjectOwnerEntry{Subject: k, Owner: m.owners[k]})
	}
	return out
}

// SubjectOwnerMapBuilder accumulates pairs with last-write-wins semantics.
type SubjectOwnerMapBuilder struct {
	keys   []string
	owners map[string]string
}

// NewSubjectOwnerMapBuilder returns an empty builder
func NewSubjectOwnerMapBuilder() *SubjectOwnerMapBuilder {
	return &SubjectOwnerMapBuilder{owners: make(map[string]string)}
}

// Set stores owner under key. An existing key keeps its position and gets the
// new owner; previous is the replaced owner when existed is true.
func (b *SubjectOwnerMapBuilder) Set(key, owner string) (previous string, existed bool) {
	previous, existed = b.owners[key]
	if !existed {
		b.keys = append(b.keys, key)
	}
	b.owners[key] = owner
	return previous, existed
}

// Len returns the number of keys collected so far
func (b *SubjectOwnerMapBuilder) Len() int {
	return len(b.keys)
}

// Build returns an immutable snapshot of the collected pairs
func (b *SubjectOwnerMapBuilder) Build() *SubjectOwnerMap {
	keys := make([]string, len(b.keys))
	copy(keys, b.keys)
	owners := make(map[string]string, len(b.owners))
	for k, v := range b.owners {
		owners[k] = v
	}
	return &SubjectOwnerMap{keys: keys, owners: owners}
}
