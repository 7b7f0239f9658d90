package watch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

// ErrUnknownCommunity возвращается для сообщества, которое бот ещё не наблюдал.
var ErrUnknownCommunity = errors.New("сообщество не найдено")

// Options задаёт поведение сервиса наблюдения.
type Options struct {
	// SelfID задаёт идентификатор самого бота; его сообщения не учитываются.
	SelfID domain.UserID
	// Prefix задаёт префикс вызова команд; такие сообщения не учитываются.
	Prefix string
	// DefaultWords добавляются в каждую новую сессию.
	DefaultWords []string
	// ScanConcurrency ограничивает параллельный обход каналов одним проходом.
	ScanConcurrency int
}

// Service владеет сессиями всех сообществ и запускает сканирование истории в фоне.
type Service struct {
	sessions *xsync.MapOf[domain.CommunityID, *Session]
	scanner  *Scanner
	events   domain.EventPublisher
	log      zerolog.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewService создаёт сервис. events может быть nil.
func NewService(walker domain.HistoryWalker, events domain.EventPublisher, log zerolog.Logger, opts Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sessions: xsync.NewMapOf[domain.CommunityID, *Session](),
		scanner:  NewScanner(walker, log.With().Str("component", "scanner").Logger(), opts.ScanConcurrency),
		events:   events,
		log:      log,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Observe создаёт сессию сообщества при первом наблюдении и запускает полный проход сканера.
// Повторный вызов дополняет список каналов и не сбрасывает состояние.
func (s *Service) Observe(community domain.CommunityID, channels []domain.Channel) *Session {
	session, loaded := s.sessions.LoadOrCompute(community, func() *Session {
		created := newSession(community, channels, s.opts.SelfID, s.opts.Prefix)
		for _, w := range s.opts.DefaultWords {
			if word := NormalizeWord(w); word != "" && created.registry.Add(word) {
				metrics.WatchWords.Inc()
			}
		}
		return created
	})
	if loaded {
		session.mergeChannels(channels)
	} else {
		metrics.Communities.Inc()
		s.log.Info().Int64("community", int64(community)).Int("channels", len(channels)).Msg("watch: новое сообщество")
	}
	s.StartScan(session)
	return session
}

// Session возвращает сессию сообщества.
func (s *Service) Session(community domain.CommunityID) (*Session, bool) {
	return s.sessions.Load(community)
}

// Sessions возвращает все сессии, отсортированные по идентификатору.
func (s *Service) Sessions() []*Session {
	out := make([]*Session, 0, s.sessions.Size())
	s.sessions.Range(func(_ domain.CommunityID, session *Session) bool {
		out = append(out, session)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].community < out[j].community })
	return out
}

// HandleMessage учитывает живое сообщение. Сообщения неизвестных сообществ игнорируются.
func (s *Service) HandleMessage(msg domain.Message) {
	session, ok := s.sessions.Load(msg.Community)
	if !ok {
		s.log.Debug().Int64("community", int64(msg.Community)).Msg("watch: сообщение из неизвестного сообщества")
		return
	}
	session.Index(msg)
}

// AddWord регистрирует слово и запускает досчёт по истории. false, если слово уже отслеживается.
func (s *Service) AddWord(ctx context.Context, community domain.CommunityID, word string) (bool, error) {
	session, ok := s.sessions.Load(community)
	if !ok {
		return false, ErrUnknownCommunity
	}
	if !session.registry.Add(word) {
		return false, nil
	}
	metrics.WatchWords.Inc()
	s.publish(ctx, domain.WatchEvent{Type: domain.WatchEventWordAdded, Community: community, Words: []string{word}})
	s.StartScan(session)
	return true, nil
}

// RemoveWord удаляет слово из реестра; накопленные счётчики остаются в Ledger.
func (s *Service) RemoveWord(ctx context.Context, community domain.CommunityID, word string) (bool, error) {
	session, ok := s.sessions.Load(community)
	if !ok {
		return false, ErrUnknownCommunity
	}
	if !session.registry.Remove(word) {
		return false, nil
	}
	metrics.WatchWords.Dec()
	s.publish(ctx, domain.WatchEvent{Type: domain.WatchEventWordRemoved, Community: community, Words: []string{word}})
	return true, nil
}

// StartScan запускает проход сканера в фоне, не блокируя обработку живых сообщений.
// После Close новые проходы не запускаются.
func (s *Service) StartScan(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report, err := s.scanner.Scan(s.ctx, session)
		if len(report.Words) == 0 {
			return
		}
		event := domain.WatchEvent{
			Type:      domain.WatchEventScanCompleted,
			Community: session.community,
			Words:     report.Words,
			ScanID:    report.ID,
			Messages:  report.Messages,
		}
		if err != nil {
			event.Type = domain.WatchEventScanStalled
			event.Error = err.Error()
		}
		s.publish(s.ctx, event)
	}()
}

// Wait дожидается завершения всех запущенных проходов.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close отменяет незавершённые проходы и дожидается их остановки.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Service) publish(ctx context.Context, event domain.WatchEvent) {
	if s.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.log.Error().Err(err).Str("event", string(event.Type)).Msg("watch: не удалось опубликовать событие")
	}
}
