package watch

import (
	"strings"
	"sync"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

// Session хранит состояние наблюдения за одним сообществом.
type Session struct {
	community domain.CommunityID
	selfID    domain.UserID
	prefix    string

	mu       sync.RWMutex
	channels []domain.Channel

	registry *Registry
	ledger   *Ledger
	members  *Directory
}

func newSession(community domain.CommunityID, channels []domain.Channel, selfID domain.UserID, prefix string) *Session {
	return &Session{
		community: community,
		selfID:    selfID,
		prefix:    prefix,
		channels:  append([]domain.Channel(nil), channels...),
		registry:  NewRegistry(),
		ledger:    NewLedger(),
		members:   NewDirectory(),
	}
}

// Community возвращает идентификатор сообщества.
func (s *Session) Community() domain.CommunityID { return s.community }

// Registry возвращает реестр слов сессии.
func (s *Session) Registry() *Registry { return s.registry }

// Ledger возвращает журнал вхождений сессии.
func (s *Session) Ledger() *Ledger { return s.ledger }

// Members возвращает справочник авторов сессии.
func (s *Session) Members() *Directory { return s.members }

// Channels возвращает текущий список текстовых каналов.
func (s *Session) Channels() []domain.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Channel(nil), s.channels...)
}

// mergeChannels добавляет каналы, которых ещё нет в сессии.
func (s *Session) mergeChannels(channels []domain.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[domain.ChannelID]int, len(s.channels))
	for i, ch := range s.channels {
		known[ch.ID] = i
	}
	for _, ch := range channels {
		if i, ok := known[ch.ID]; ok {
			if ch.Title != "" {
				s.channels[i].Title = ch.Title
			}
			continue
		}
		known[ch.ID] = len(s.channels)
		s.channels = append(s.channels, ch)
	}
}

// Ignored сообщает, что сообщение не участвует в подсчёте:
// его написал сам бот или это вызов команды.
func (s *Session) Ignored(msg domain.Message) bool {
	if s.selfID != 0 && msg.Author.ID == s.selfID {
		return true
	}
	return s.prefix != "" && strings.HasPrefix(msg.Text, s.prefix)
}

// Index учитывает живое сообщение для всех текущих слов реестра.
// Слова в состоянии сканирования не исключаются: от двойного учёта защищает Ledger.
func (s *Session) Index(msg domain.Message) int {
	if s.Ignored(msg) {
		return 0
	}
	s.members.Remember(msg.Author)
	recorded := s.countInto(msg, s.registry.Words())
	metrics.MessagesIndexed.WithLabelValues(metrics.SourceLive).Inc()
	return recorded
}

// countInto считает вхождения words в сообщении и пишет их в Ledger.
func (s *Session) countInto(msg domain.Message, words []string) int {
	if len(words) == 0 {
		return 0
	}
	key := KeyOf(msg)
	recorded := 0
	for word, n := range CountOccurrences(Normalize(msg.Text), words) {
		if s.ledger.Record(msg.Author.ID, word, key, n) {
			recorded++
			metrics.OccurrencesRecorded.Add(float64(n))
			continue
		}
		metrics.DuplicateOccurrences.Inc()
	}
	return recorded
}
