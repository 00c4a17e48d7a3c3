package local

import (
	"context"
	"sync"
	"sync/atomic"
)

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

type subscription struct {
	ch       chan *LocalMessage
	channels []string
	once     sync.Once
	stop     func() bool
}

// LocalPubSub is an in-process fan-out pub/sub. A subscriber whose buffer
// is full misses the message; Dropped counts those misses.
type LocalPubSub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	bufSize int
	dropped atomic.Int64
}

// NewPubSub creates a LocalPubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subs:    make(map[string]map[*subscription]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers message to every current subscriber of channel without
// blocking.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	// held across the sends so unsubscribe cannot close a channel mid-send.
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for s := range ps.subs[channel] {
		select {
		case s.ch <- msg:
		default:
			ps.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe returns a channel receiving messages of channels. The
// subscription ends when the returned cancel is called or ctx is done,
// whichever comes first; the channel is then closed.
func (ps *LocalPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sub := &subscription{
		ch:       make(chan *LocalMessage, ps.bufSize),
		channels: append([]string(nil), channels...),
	}

	ps.mu.Lock()
	for _, c := range sub.channels {
		set, ok := ps.subs[c]
		if !ok {
			set = make(map[*subscription]struct{})
			ps.subs[c] = set
		}
		set[sub] = struct{}{}
	}
	ps.mu.Unlock()

	sub.stop = context.AfterFunc(ctx, func() { ps.unsubscribe(sub) })
	cancel := func() {
		sub.stop()
		ps.unsubscribe(sub)
	}
	return sub.ch, cancel, nil
}

func (ps *LocalPubSub) unsubscribe(sub *subscription) {
	sub.once.Do(func() {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		for _, c := range sub.channels {
			set := ps.subs[c]
			delete(set, sub)
			if len(set) == 0 {
				delete(ps.subs, c)
			}
		}
		close(sub.ch)
	})
}

// Subscribers returns the number of live subscriptions on channel.
func (ps *LocalPubSub) Subscribers(channel string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[channel])
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (ps *LocalPubSub) Dropped() int64 {
	return ps.dropped.Load()
}
