package chart

import (
	"sync"

	"github.com/StudioSol/set"
)

// Registry : 차트에 올라가 있는 지표 id 목록 (등록 순서 유지).
// 같은 id 를 두 번 Register/Unregister 해도 결과는 한 번과 같다
type Registry struct {
	mu  sync.Mutex
	ids *set.LinkedHashSetString
}

func NewRegistry() *Registry {
	return &Registry{ids: set.NewLinkedHashSetString()}
}

// Register : 새로 등록되면 true
func (r *Registry) Register(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids.InArray(id) {
		return false
	}
	r.ids.Add(id)
	return true
}

// Unregister : 실제로 지워졌으면 true
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ids.InArray(id) {
		return false
	}
	r.ids.Remove(id)
	return true
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids.InArray(id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids.Length()
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idsLocked()
}

func (r *Registry) idsLocked() []string {
	out := make([]string, 0, r.ids.Length())
	for id := range r.ids.Iter() {
		out = append(out, id)
	}
	return out
}

// Sync : ids 에 없는 것은 빼고 새로 생긴 것은 뒤에 붙인다
func (r *Registry) Sync(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, id := range r.idsLocked() {
		if _, ok := want[id]; !ok {
			r.ids.Remove(id)
		}
	}
	for _, id := range ids {
		if !r.ids.InArray(id) {
			r.ids.Add(id)
		}
	}
}
