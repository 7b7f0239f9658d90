package domain

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrHistoryUnavailable возвращается, когда историю канала нельзя прочитать вообще
// (например, нет MTProto-сессии или канал не найден среди диалогов аккаунта).
var ErrHistoryUnavailable = errors.New("история канала недоступна")

// HistoryWalker выдаёт историю канала от старых сообщений к новым.
// Последовательность ленивая и одноразовая: прерванный обход не продолжается.
type HistoryWalker interface {
	History(ctx context.Context, community CommunityID, channel ChannelID) iter.Seq2[Message, error]
}

// AccessResolver определяет уровень доступа пользователя в сообществе.
type AccessResolver interface {
	AccessLevel(ctx context.Context, community CommunityID, user UserID) (AccessLevel, error)
}

// EventPublisher публикует события наблюдения за словами во внешнюю шину.
type EventPublisher interface {
	Publish(ctx context.Context, event WatchEvent) error
}

// AuditRepo сохраняет журнал административных команд.
type AuditRepo interface {
	RecordCommand(ctx context.Context, entry CommandAudit) error
}

// Deduper гарантирует однократную обработку апдейта платформы.
type Deduper interface {
	Once(key string, ttl time.Duration, fn func() error) error
}
