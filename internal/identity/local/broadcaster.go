package local

import (
	"sync"

	"github.com/workbench/internal/identity"
)

type notification struct {
	event   identity.Event
	session *identity.Session
}

// subscriber delivers notifications in order on its own goroutine so that
// callbacks may call back into the provider.
type subscriber struct {
	fn identity.StateChangeFunc

	mu     sync.Mutex
	queue  []notification
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscriber(fn identity.StateChangeFunc) *subscriber {
	s := &subscriber{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) enqueue(n notification) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			n := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.fn(n.event, n.session)
		}
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// broadcaster fans auth-state changes out to subscribers
type broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]*subscriber)}
}

func (b *broadcaster) subscribe(fn identity.StateChangeFunc) (uint64, *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := newSubscriber(fn)
	b.subs[b.nextID] = s
	return b.nextID, s
}

func (b *broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	s, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		s.stop()
	}
}

func (b *broadcaster) publish(event identity.Event, session *identity.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		s.enqueue(notification{event: event, session: session})
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

type subscription struct {
	b  *broadcaster
	id uint64
}

func (s subscription) Unsubscribe() {
	s.b.unsubscribe(s.id)
}
