package cache

import (
	"context"
	"sync"

	"squizy/internal/model"
)

// feed is an unbounded, ordered snapshot queue for one subscriber.
// push never blocks so publishers can call it while holding their own locks.
type feed struct {
	mu    sync.Mutex
	queue []model.Update
	wake  chan struct{}
}

func newFeed() *feed {
	return &feed{wake: make(chan struct{}, 1)}
}

func (f *feed) push(u model.Update) {
	f.mu.Lock()
	f.queue = append(f.queue, u)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *feed) pop() (model.Update, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return model.Update{}, false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u, true
}

// pump forwards queued snapshots to out until ctx is done, then closes out
func (f *feed) pump(ctx context.Context, out chan<- model.Update) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}
		for {
			u, ok := f.pop()
			if !ok {
				break
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}
}
