package dispatch

import (
	"hash/fnv"
	"sync"
)

const holdStripes = 64

// holds serializes commit-then-publish per entity. Keys share stripes, so a
// caller must never hold two keys at once.
type holds struct {
	stripes [holdStripes]sync.Mutex
}

func (h *holds) lock(entity, id string) *sync.Mutex {
	f := fnv.New32a()
	f.Write([]byte(entity))
	f.Write([]byte{0})
	f.Write([]byte(id))
	return &h.stripes[f.Sum32()%holdStripes]
}

// Hold locks one entity until the returned func is called. Every writer of
// that entity takes it around its commit and the matching publish, so events
// leave in commit order and the last one delivered carries the committed
// state.
func (r *Router) Hold(entity, id string) (release func()) {
	mu := r.holds.lock(entity, id)
	mu.Lock()
	return mu.Unlock
}
