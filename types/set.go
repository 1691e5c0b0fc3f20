package types

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mitchellh/hashstructure"
)

// Set is an insertion-ordered set keyed by the structural hash of its elements
type Set[T any] struct {
	hash    map[uint64]int
	storage []T
}

func NewSet[T any](values ...T) *Set[T] {
	set := &Set[T]{
		hash: make(map[uint64]int),
	}
	set.Insert(values...)

	return set
}

func (st *Set[T]) getHash(elem T) uint64 {
	hash, err := hashstructure.Hash(elem, nil)
	if err != nil {
		// unhashable values fall back to their printed form
		hash, _ = hashstructure.Hash(fmt.Sprintf("%#v", elem), nil)
	}

	return hash
}

func (st *Set[T]) init() {
	if st.hash == nil {
		st.hash = make(map[uint64]int)
	}
}

func (st *Set[T]) Insert(values ...T) {
	st.init()
	for _, elem := range values {
		hash := st.getHash(elem)
		if _, found := st.hash[hash]; found {
			continue
		}
		st.hash[hash] = len(st.storage)
		st.storage = append(st.storage, elem)
	}
}

func (st *Set[T]) Exists(elem T) bool {
	if st == nil || st.hash == nil {
		return false
	}
	_, found := st.hash[st.getHash(elem)]

	return found
}

func (st *Set[T]) Remove(elem T) {
	if st == nil || st.hash == nil {
		return
	}
	hash := st.getHash(elem)
	idx, found := st.hash[hash]
	if !found {
		return
	}

	st.storage = append(st.storage[:idx], st.storage[idx+1:]...)
	delete(st.hash, hash)
	for key, pos := range st.hash {
		if pos > idx {
			st.hash[key] = pos - 1
		}
	}
}

func (st *Set[T]) Len() int {
	if st == nil {
		return 0
	}

	return len(st.storage)
}

// Array returns the elements in insertion order
func (st *Set[T]) Array() []T {
	if st == nil {
		return nil
	}
	out := make([]T, len(st.storage))
	copy(out, st.storage)

	return out
}

func (st *Set[T]) String() string {
	return fmt.Sprintf("%v", st.Array())
}

func (st *Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(st.Array())
}

func (st *Set[T]) UnmarshalJSON(data []byte) error {
	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	st.hash = make(map[uint64]int)
	st.storage = nil
	st.Insert(values...)

	return nil
}
