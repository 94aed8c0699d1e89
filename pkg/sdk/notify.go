package sdk

import "sync"

// notifier fans values out to subscribers in the order they were enqueued.
// Values are enqueued while the producer holds its own lock and delivered by
// drain after that lock is released, so a subscriber may call back into the
// producer. A drain that finds another drain in progress returns at once;
// the active drain delivers the remaining values.
type notifier[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	subs     []subscription[T]
	queue    []T
	draining bool
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

func (n *notifier[T]) subscribe(fn func(T)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, s := range n.subs {
				if s.id == id {
					n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (n *notifier[T]) enqueue(v T) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.subs) == 0 {
		return
	}
	n.queue = append(n.queue, v)
}

func (n *notifier[T]) drain() {
	n.mu.Lock()
	if n.draining {
		n.mu.Unlock()
		return
	}
	n.draining = true
	for len(n.queue) > 0 {
		v := n.queue[0]
		n.queue = n.queue[1:]
		subs := append([]subscription[T](nil), n.subs...)
		n.mu.Unlock()
		for _, s := range subs {
			s.fn(v)
		}
		n.mu.Lock()
	}
	n.draining = false
	n.mu.Unlock()
}
