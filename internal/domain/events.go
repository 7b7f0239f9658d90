package domain

import "time"

// WatchEventType описывает тип события наблюдения.
type WatchEventType string

const (
	// WatchEventWordAdded фиксирует добавление слова в реестр.
	WatchEventWordAdded WatchEventType = "word_added"
	// WatchEventWordRemoved фиксирует удаление слова из реестра.
	WatchEventWordRemoved WatchEventType = "word_removed"
	// WatchEventScanCompleted фиксирует завершение прохода сканера.
	WatchEventScanCompleted WatchEventType = "scan_completed"
	// WatchEventScanStalled фиксирует проход, прерванный ошибкой.
	WatchEventScanStalled WatchEventType = "scan_stalled"
)

// WatchEvent уходит во внешнюю шину событий.
type WatchEvent struct {
	Type       WatchEventType `json:"type"`
	Community  CommunityID    `json:"community_id"`
	Words      []string       `json:"words,omitempty"`
	ScanID     string         `json:"scan_id,omitempty"`
	Messages   int            `json:"messages,omitempty"`
	Error      string         `json:"error,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// CommandAudit описывает запись журнала команд.
type CommandAudit struct {
	Community  CommunityID
	User       UserID
	Command    string
	Args       []string
	Outcome    string
	OccurredAt time.Time
}
