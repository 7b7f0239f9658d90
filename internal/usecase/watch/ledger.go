package watch

import (
	"sync"

	"tg-wordcount-bot/internal/domain"
)

// MessageKey однозначно определяет сообщение внутри сообщества.
type MessageKey struct {
	Channel domain.ChannelID
	Message domain.MessageID
}

// KeyOf возвращает ключ сообщения.
func KeyOf(msg domain.Message) MessageKey {
	return MessageKey{Channel: msg.Channel, Message: msg.ID}
}

type occurrenceRecord struct {
	counted map[MessageKey]struct{}
	count   int
}

// Ledger хранит количество вхождений слов по пользователям.
// Одно сообщение учитывается в паре (пользователь, слово) не более одного раза.
type Ledger struct {
	mu      sync.Mutex
	records map[domain.UserID]map[string]*occurrenceRecord
}

// NewLedger создаёт пустой журнал.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[domain.UserID]map[string]*occurrenceRecord)}
}

// Record учитывает n вхождений слова, если сообщение ещё не учтено для пары.
func (l *Ledger) Record(user domain.UserID, word string, key MessageKey, n int) bool {
	if n <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	byWord, ok := l.records[user]
	if !ok {
		byWord = make(map[string]*occurrenceRecord)
		l.records[user] = byWord
	}
	rec, ok := byWord[word]
	if !ok {
		rec = &occurrenceRecord{counted: make(map[MessageKey]struct{})}
		byWord[word] = rec
	}
	if _, seen := rec.counted[key]; seen {
		return false
	}
	rec.counted[key] = struct{}{}
	rec.count += n
	return true
}

// Count возвращает накопленное количество или 0.
func (l *Ledger) Count(user domain.UserID, word string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[user][word]; ok {
		return rec.count
	}
	return 0
}

// Totals возвращает все ненулевые счётчики пользователя.
func (l *Ledger) Totals(user domain.UserID) map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.records[user]))
	for word, rec := range l.records[user] {
		out[word] = rec.count
	}
	return out
}
