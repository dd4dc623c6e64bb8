package modules

// Set is an ordered collection of GRUB module names with set semantics.
// Insertion order is preserved from first add; adding a name that is
// already present is a no-op and never reorders it.
type Set struct {
	names []string
	seen  map[string]bool
}

// NewSet returns an empty module set.
func NewSet() *Set {
	return &Set{seen: make(map[string]bool)}
}

// Add inserts a module name, ignoring duplicates.
func (s *Set) Add(name string) {
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.names = append(s.names, name)
}

// AddAll inserts each name in order.
func (s *Set) AddAll(names []string) {
	for _, n := range names {
		s.Add(n)
	}
}

// Contains reports whether the set holds the given name.
func (s *Set) Contains(name string) bool {
	return s.seen[name]
}

// Len returns the number of distinct modules.
func (s *Set) Len() int {
	return len(s.names)
}

// List returns the module names in insertion order. The returned slice
// is a copy; mutating it does not affect the set.
func (s *Set) List() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
