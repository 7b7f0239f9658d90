package watch

import (
	"strings"
	"sync"

	"tg-wordcount-bot/internal/domain"
)

// Directory запоминает авторов сообщений, чтобы находить пользователя по @username.
type Directory struct {
	mu         sync.RWMutex
	byID       map[domain.UserID]domain.User
	byUsername map[string]domain.UserID
}

// NewDirectory создаёт пустой справочник.
func NewDirectory() *Directory {
	return &Directory{
		byID:       make(map[domain.UserID]domain.User),
		byUsername: make(map[string]domain.UserID),
	}
}

// Remember сохраняет или обновляет пользователя.
func (d *Directory) Remember(u domain.User) {
	if u.ID == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.byID[u.ID]; ok {
		if u.Username == "" {
			u.Username = prev.Username
		}
		if u.DisplayName == "" {
			u.DisplayName = prev.DisplayName
		}
		if prev.Username != "" && !strings.EqualFold(prev.Username, u.Username) {
			delete(d.byUsername, strings.ToLower(prev.Username))
		}
	}
	d.byID[u.ID] = u
	if u.Username != "" {
		d.byUsername[strings.ToLower(u.Username)] = u.ID
	}
}

// ByUsername ищет пользователя по имени без учёта регистра, с @ или без.
func (d *Directory) ByUsername(username string) (domain.User, bool) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if key == "" {
		return domain.User{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byUsername[key]
	if !ok {
		return domain.User{}, false
	}
	return d.byID[id], true
}

// ByID возвращает пользователя по идентификатору.
func (d *Directory) ByID(id domain.UserID) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	return u, ok
}
