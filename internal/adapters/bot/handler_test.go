package bot

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/usecase/commands"
	"tg-wordcount-bot/internal/usecase/watch"
)

const (
	chatID  int64 = -1001
	rootID  int64 = 7
	aliceID int64 = 5
)

type noHistory struct{}

func (noHistory) History(context.Context, domain.CommunityID, domain.ChannelID) iter.Seq2[domain.Message, error] {
	return func(func(domain.Message, error) bool) {}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, s.err
}

type memoryDeduper struct {
	seen map[string]bool
}

func (d *memoryDeduper) Once(key string, _ time.Duration, fn func() error) error {
	if d.seen[key] {
		return nil
	}
	d.seen[key] = true
	return fn()
}

type fixture struct {
	svc    *watch.Service
	sender *recordingSender
	h      *Handler
}

func newFixture(t *testing.T, dedup domain.Deduper) *fixture {
	t.Helper()
	svc := watch.NewService(noHistory{}, nil, zerolog.Nop(), watch.Options{SelfID: 999, Prefix: "!wcb"})
	t.Cleanup(svc.Close)
	dispatcher := commands.NewDispatcher(svc, nil, nil, zerolog.Nop(), commands.Config{Prefix: "!wcb", RootUserID: domain.UserID(rootID)})
	sender := &recordingSender{}
	return &fixture{svc: svc, sender: sender, h: NewHandler(sender, zerolog.Nop(), svc, dispatcher, dedup, time.Hour)}
}

func groupMessage(updateID, msgID int, from int64, username, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: msgID,
			From:      &tgbotapi.User{ID: from, UserName: username},
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "supergroup", Title: "Chat"},
			Text:      text,
		},
	}
}

func (f *fixture) send(t *testing.T, upd tgbotapi.Update) {
	t.Helper()
	f.h.HandleUpdate(context.Background(), upd)
	f.svc.Wait()
}

func (f *fixture) lastReply(t *testing.T) string {
	t.Helper()
	if len(f.sender.sent) == 0 {
		t.Fatal("бот ничего не ответил")
	}
	return f.sender.sent[len(f.sender.sent)-1].Text
}

func TestHandlerCountsLiveMessages(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, groupMessage(1, 10, rootID, "root", "!wcb add Foo"))
	if got := f.lastReply(t); got != "Adding watch word foo" {
		t.Fatalf("неожиданный ответ: %q", got)
	}
	if f.sender.sent[0].ReplyToMessageID != 10 {
		t.Fatalf("ответ должен ссылаться на команду, получили %d", f.sender.sent[0].ReplyToMessageID)
	}

	f.send(t, groupMessage(2, 11, aliceID, "alice", "foo and F O O"))
	f.send(t, groupMessage(3, 12, aliceID, "alice", "!wcb count foo @alice"))
	if got := f.lastReply(t); got != "@alice has said foo 2 times!" {
		t.Fatalf("неожиданный ответ: %q", got)
	}
}

func TestHandlerRejectsWithoutPermission(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, groupMessage(1, 10, aliceID, "alice", "!wcb add foo"))
	if got := f.lastReply(t); got != "Error: user does not have permission to execute command" {
		t.Fatalf("неожиданный ответ: %q", got)
	}
	session, ok := f.svc.Session(domain.CommunityID(chatID))
	if !ok {
		t.Fatal("первое сообщение группы должно создать сессию")
	}
	if session.Registry().Has("foo") {
		t.Fatal("слово не должно добавиться")
	}
}

func TestHandlerIgnoresPrivateChats(t *testing.T) {
	f := newFixture(t, nil)
	upd := groupMessage(1, 10, aliceID, "alice", "!wcb help")
	upd.Message.Chat = &tgbotapi.Chat{ID: aliceID, Type: "private"}
	f.send(t, upd)
	if len(f.sender.sent) != 0 {
		t.Fatal("личные сообщения не обрабатываются")
	}
	if len(f.svc.Sessions()) != 0 {
		t.Fatal("личный чат не является сообществом")
	}
}

func TestHandlerDeduplicatesUpdates(t *testing.T) {
	f := newFixture(t, &memoryDeduper{seen: map[string]bool{}})
	upd := groupMessage(42, 10, aliceID, "alice", "!wcb about")
	f.send(t, upd)
	f.send(t, upd)
	if len(f.sender.sent) != 1 {
		t.Fatalf("ожидали один ответ, получили %d", len(f.sender.sent))
	}
}

func TestHandlerMembership(t *testing.T) {
	f := newFixture(t, nil)
	joined := tgbotapi.Update{UpdateID: 1, MyChatMember: &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: chatID, Type: "group", Title: "Chat"},
		NewChatMember: tgbotapi.ChatMember{Status: "member"},
	}}
	f.send(t, joined)
	session, ok := f.svc.Session(domain.CommunityID(chatID))
	if !ok {
		t.Fatal("добавление бота должно создать сессию")
	}
	if chans := session.Channels(); len(chans) != 1 || chans[0].Title != "Chat" {
		t.Fatalf("неожиданные каналы: %+v", chans)
	}

	other := tgbotapi.Update{UpdateID: 2, MyChatMember: &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -2002, Type: "supergroup"},
		NewChatMember: tgbotapi.ChatMember{Status: "kicked"},
	}}
	f.send(t, other)
	if _, ok := f.svc.Session(-2002); ok {
		t.Fatal("удаление бота не создаёт сессию")
	}
}

func TestHandlerSendFailureIsCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.sender.err = errors.New("flood wait")
	f.send(t, groupMessage(1, 10, aliceID, "alice", "!wcb about"))
	if len(f.sender.sent) != 1 {
		t.Fatalf("ожидали одну попытку отправки, получили %d", len(f.sender.sent))
	}
}

type stubMembers struct {
	member tgbotapi.ChatMember
	err    error
}

func (s stubMembers) GetChatMember(tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return s.member, s.err
}

func TestChatAccess(t *testing.T) {
	tests := []struct {
		name    string
		members stubMembers
		want    domain.AccessLevel
		wantErr bool
	}{
		{name: "creator", members: stubMembers{member: tgbotapi.ChatMember{Status: "creator"}}, want: domain.AccessServerManager},
		{name: "admin with info rights", members: stubMembers{member: tgbotapi.ChatMember{Status: "administrator", CanChangeInfo: true}}, want: domain.AccessServerManager},
		{name: "admin without info rights", members: stubMembers{member: tgbotapi.ChatMember{Status: "administrator"}}, want: domain.AccessNone},
		{name: "member", members: stubMembers{member: tgbotapi.ChatMember{Status: "member"}}, want: domain.AccessNone},
		{name: "api error", members: stubMembers{err: errors.New("boom")}, want: domain.AccessNone, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewChatAccess(tt.members).AccessLevel(context.Background(), -1, 5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ошибка %v, ожидали ошибку: %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("уровень %v, ожидали %v", got, tt.want)
			}
		})
	}
}

func TestChatAccessIsMember(t *testing.T) {
	tests := []struct {
		name    string
		members stubMembers
		want    bool
		wantErr bool
	}{
		{name: "member", members: stubMembers{member: tgbotapi.ChatMember{Status: "member"}}, want: true},
		{name: "creator", members: stubMembers{member: tgbotapi.ChatMember{Status: "creator"}}, want: true},
		{name: "left", members: stubMembers{member: tgbotapi.ChatMember{Status: "left"}}},
		{name: "kicked", members: stubMembers{member: tgbotapi.ChatMember{Status: "kicked"}}},
		{name: "restricted member", members: stubMembers{member: tgbotapi.ChatMember{Status: "restricted", IsMember: true}}, want: true},
		{name: "restricted outsider", members: stubMembers{member: tgbotapi.ChatMember{Status: "restricted"}}},
		{name: "api error", members: stubMembers{err: errors.New("boom")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewChatAccess(tt.members).IsMember(context.Background(), -1, 5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ошибка %v, ожидали ошибку: %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("участник %v, ожидали %v", got, tt.want)
			}
		})
	}
}
