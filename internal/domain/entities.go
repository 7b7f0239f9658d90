package domain

import (
	"fmt"
	"time"
)

// CommunityID идентифицирует сообщество (группу Telegram).
type CommunityID int64

// ChannelID идентифицирует текстовый канал внутри сообщества.
type ChannelID int64

// UserID идентифицирует пользователя платформы.
type UserID int64

// MessageID идентифицирует сообщение внутри канала.
type MessageID int64

// User описывает автора сообщения или инициатора команды.
type User struct {
	ID          UserID
	Username    string
	DisplayName string
	IsBot       bool
}

// Name возвращает имя для ответов бота.
func (u User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != "":
		return "@" + u.Username
	case u.ID != 0:
		return fmt.Sprintf("user %d", u.ID)
	default:
		return "unknown user"
	}
}

// Channel описывает текстовый канал сообщества.
type Channel struct {
	ID    ChannelID
	Title string
}

// Message представляет сообщение, живое или из истории канала.
type Message struct {
	ID        MessageID
	Community CommunityID
	Channel   ChannelID
	Author    User
	Text      string
	SentAt    time.Time
}

// ScanState описывает этап сканирования истории для слова.
type ScanState int

const (
	// ScanNeeded: слово добавлено, история ещё не просканирована.
	ScanNeeded ScanState = iota
	// ScanRunning: слово захвачено проходом сканера.
	ScanRunning
	// ScanComplete: история просканирована для слова.
	ScanComplete
)

func (s ScanState) String() string {
	switch s {
	case ScanNeeded:
		return "needs_scan"
	case ScanRunning:
		return "scanning"
	case ScanComplete:
		return "scan_complete"
	default:
		return "unknown"
	}
}

// WatchWord описывает снимок записи реестра слов.
type WatchWord struct {
	Word         string
	State        ScanState
	FirstScanned *time.Time
	LastScanned  *time.Time
}
