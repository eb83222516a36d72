package events

import (
	"context"
	"sync"

	"rewardchain/core/types"
)

const (
	defaultFeedHistory = 256
	feedBuffer         = 32
)

// Published is a committed event tagged with a feed sequence number and the
// hash of the transaction that produced it.
type Published struct {
	Sequence uint64      `json:"sequence"`
	TxHash   string      `json:"txHash"`
	Event    types.Event `json:"event"`
}

// Feed fans committed events out to subscribers and keeps a bounded history so
// reconnecting clients can resume from a cursor. Slow subscribers drop events
// rather than block publishers.
type Feed struct {
	mu      sync.Mutex
	subs    map[uint64]chan Published
	nextID  uint64
	seq     uint64
	history []Published
	limit   int
}

// NewFeed creates a feed retaining up to limit events (a default is used when
// limit is not positive).
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = defaultFeedHistory
	}
	return &Feed{subs: make(map[uint64]chan Published), limit: limit}
}

// Publish assigns sequence numbers to the events and delivers them.
func (f *Feed) Publish(txHash string, evts []types.Event) {
	if f == nil || len(evts) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, evt := range evts {
		f.seq++
		entry := Published{Sequence: f.seq, TxHash: txHash, Event: evt.Clone()}
		f.history = append(f.history, entry)
		if len(f.history) > f.limit {
			f.history = f.history[len(f.history)-f.limit:]
		}
		for _, ch := range f.subs {
			select {
			case ch <- entry:
			default:
			}
		}
	}
}

// Subscribe registers a subscriber. The returned backlog contains retained
// events with a sequence greater than since. The cancel function is idempotent
// and is also invoked when ctx is done.
func (f *Feed) Subscribe(ctx context.Context, since uint64) (<-chan Published, func(), []Published) {
	updates := make(chan Published, feedBuffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = updates
	backlog := make([]Published, 0, len(f.history))
	for _, entry := range f.history {
		if entry.Sequence > since {
			backlog = append(backlog, Published{Sequence: entry.Sequence, TxHash: entry.TxHash, Event: entry.Event.Clone()})
		}
	}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
			f.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Sequence returns the last assigned sequence number.
func (f *Feed) Sequence() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}
