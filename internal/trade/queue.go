package trade

import "container/heap"

type expiry struct {
	at    int64 // unix ms
	id    string
	index int // position in the heap, -1 once removed
}

// expiryHeap is a min-heap of deadlines ordered by (at, id).
type expiryHeap []*expiry

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].id < h[j].id
}

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*expiry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// expiryQueue holds one deadline per live trade id.
type expiryQueue struct {
	heap expiryHeap
	byID map[string]*expiry
}

func (q *expiryQueue) Len() int { return len(q.heap) }

func (q *expiryQueue) push(at int64, id string) {
	if q.byID == nil {
		q.byID = make(map[string]*expiry)
	}
	if old, ok := q.byID[id]; ok {
		heap.Remove(&q.heap, old.index)
	}
	e := &expiry{at: at, id: id}
	heap.Push(&q.heap, e)
	q.byID[id] = e
}

// remove drops the deadline of id, reporting whether one was queued.
func (q *expiryQueue) remove(id string) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, e.index)
	delete(q.byID, id)
	return true
}

// popDue removes and returns the earliest entry if it is due at now.
func (q *expiryQueue) popDue(now int64) (expiry, bool) {
	if len(q.heap) == 0 || q.heap[0].at > now {
		return expiry{}, false
	}
	e := heap.Pop(&q.heap).(*expiry)
	delete(q.byID, e.id)
	return *e, true
}

func (q *expiryQueue) peek() (expiry, bool) {
	if len(q.heap) == 0 {
		return expiry{}, false
	}
	return *q.heap[0], true
}
