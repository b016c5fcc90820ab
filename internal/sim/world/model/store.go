package model

type Resource string

const Energy Resource = "energy"

// Store is a resource ledger. Capacity keys are the allow-listed kinds. Add does not enforce
// capacity; callers check Free before crediting.
type Store struct {
	Used     map[Resource]int
	Capacity map[Resource]int
}

func NewStore(caps map[Resource]int) *Store {
	s := &Store{Used: map[Resource]int{}, Capacity: map[Resource]int{}}
	for k, v := range caps {
		s.Capacity[k] = v
	}
	return s
}

func EnergyStore(capacity int) *Store {
	return NewStore(map[Resource]int{Energy: capacity})
}

func (s *Store) UsedOf(kind Resource) int {
	if s == nil {
		return 0
	}
	return s.Used[kind]
}

func (s *Store) UsedTotal() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, v := range s.Used {
		n += v
	}
	return n
}

// CapacityOf is 0 for kinds outside the allow-list.
func (s *Store) CapacityOf(kind Resource) int {
	if s == nil {
		return 0
	}
	return s.Capacity[kind]
}

func (s *Store) CapacityTotal() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, v := range s.Capacity {
		n += v
	}
	return n
}

func (s *Store) Free(kind Resource) int {
	return s.CapacityOf(kind) - s.UsedOf(kind)
}

func (s *Store) Allowed(kind Resource) bool {
	if s == nil {
		return false
	}
	_, ok := s.Capacity[kind]
	return ok
}

func (s *Store) Add(kind Resource, n int) {
	if n <= 0 {
		return
	}
	s.Used[kind] += n
}

// Remove takes up to n and returns the amount actually removed.
func (s *Store) Remove(kind Resource, n int) int {
	have := s.Used[kind]
	if n > have {
		n = have
	}
	if n <= 0 {
		return 0
	}
	if have-n == 0 {
		delete(s.Used, kind)
	} else {
		s.Used[kind] = have - n
	}
	return n
}

// Contents is a copy of the non-zero amounts.
func (s *Store) Contents() map[Resource]int {
	out := map[Resource]int{}
	if s == nil {
		return out
	}
	for k, v := range s.Used {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}
