package telegram

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-wordcount-bot/internal/domain"
)

// ParsedCommand описывает вызов команды, выделенный из текста сообщения.
type ParsedCommand struct {
	Name     string
	Args     []string
	Mentions []domain.User
}

// ParseCommand разбирает "<prefix> <name> args...". Без имени команды возвращается help.
// text_mention заменяются на токены id:<id>, упомянутые пользователи попадают в Mentions.
func ParseCommand(prefix string, msg *tgbotapi.Message) (ParsedCommand, bool) {
	if prefix == "" || msg == nil {
		return ParsedCommand{}, false
	}
	text, mentions := RewriteTextMentions(msg.Text, msg.Entities)
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != prefix {
		return ParsedCommand{}, false
	}
	cmd := ParsedCommand{Name: "help", Mentions: mentions}
	if len(fields) > 1 {
		cmd.Name = strings.ToLower(fields[1])
		cmd.Args = fields[2:]
	}
	return cmd, true
}

// RewriteTextMentions заменяет упоминания без username на id:<id>.
// Смещения сущностей Telegram считаются в UTF-16.
func RewriteTextMentions(text string, entities []tgbotapi.MessageEntity) (string, []domain.User) {
	var spans []tgbotapi.MessageEntity
	for _, e := range entities {
		if e.Type == "text_mention" && e.User != nil {
			spans = append(spans, e)
		}
	}
	if len(spans) == 0 {
		return text, nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Offset > spans[j].Offset })

	units := utf16.Encode([]rune(text))
	mentions := make([]domain.User, 0, len(spans))
	for _, e := range spans {
		end := e.Offset + e.Length
		if e.Offset < 0 || end > len(units) {
			continue
		}
		token := utf16.Encode([]rune(fmt.Sprintf("id:%d", e.User.ID)))
		rest := append([]uint16(nil), units[end:]...)
		units = append(append(units[:e.Offset], token...), rest...)
		mentions = append(mentions, UserFrom(e.User))
	}
	return string(utf16.Decode(units)), mentions
}

// UserFrom переводит пользователя Bot API в доменного.
func UserFrom(u *tgbotapi.User) domain.User {
	if u == nil {
		return domain.User{}
	}
	return domain.User{
		ID:          domain.UserID(u.ID),
		Username:    u.UserName,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		IsBot:       u.IsBot,
	}
}
