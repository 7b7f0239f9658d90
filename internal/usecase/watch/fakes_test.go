package watch

import (
	"context"
	"errors"
	"iter"
	"sync"

	"tg-wordcount-bot/internal/domain"
)

type stubWalker struct {
	mu      sync.Mutex
	history map[domain.ChannelID][]domain.Message
	failAt  map[domain.ChannelID]int
	failErr error
	calls   int
	gate    chan struct{}
	started chan struct{}
}

func newStubWalker() *stubWalker {
	return &stubWalker{
		history: make(map[domain.ChannelID][]domain.Message),
		failAt:  make(map[domain.ChannelID]int),
	}
}

func (w *stubWalker) add(msgs ...domain.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		w.history[m.Channel] = append(w.history[m.Channel], m)
	}
}

func (w *stubWalker) History(ctx context.Context, _ domain.CommunityID, channel domain.ChannelID) iter.Seq2[domain.Message, error] {
	w.mu.Lock()
	w.calls++
	msgs := append([]domain.Message(nil), w.history[channel]...)
	failAt, fail := w.failAt[channel]
	failErr := w.failErr
	gate, started := w.gate, w.started
	w.mu.Unlock()
	return func(yield func(domain.Message, error) bool) {
		if started != nil {
			started <- struct{}{}
		}
		if gate != nil {
			<-gate
		}
		for i, m := range msgs {
			if fail && i == failAt {
				yield(domain.Message{}, failErr)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(domain.Message{}, err)
				return
			}
			if !yield(m, nil) {
				return
			}
		}
		if fail && failAt >= len(msgs) {
			yield(domain.Message{}, failErr)
		}
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.WatchEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.WatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.WatchEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.WatchEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errPlatform = errors.New("platform unavailable")

func msg(id int64, channel int64, author int64, text string) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(id),
		Community: 1,
		Channel:   domain.ChannelID(channel),
		Author:    domain.User{ID: domain.UserID(author), Username: "user" + string(rune('a'+author%26))},
		Text:      text,
	}
}
