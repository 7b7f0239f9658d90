package commands

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/usecase/watch"
)

const community domain.CommunityID = -100123

type staticWalker struct {
	history []domain.Message
}

func (w staticWalker) History(_ context.Context, _ domain.CommunityID, channel domain.ChannelID) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		for _, m := range w.history {
			if m.Channel != channel {
				continue
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}

type stubAccess struct {
	err error
}

func (s stubAccess) AccessLevel(context.Context, domain.CommunityID, domain.UserID) (domain.AccessLevel, error) {
	return domain.AccessNone, s.err
}

type managerAccess struct {
	managers map[domain.UserID]bool
}

func (m managerAccess) AccessLevel(_ context.Context, _ domain.CommunityID, user domain.UserID) (domain.AccessLevel, error) {
	if m.managers[user] {
		return domain.AccessServerManager, nil
	}
	return domain.AccessNone, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.CommandAudit
}

func (a *recordingAudit) RecordCommand(_ context.Context, entry domain.CommandAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

var (
	alice   = domain.User{ID: 5, Username: "alice"}
	manager = domain.User{ID: 6, Username: "boss"}
	root    = domain.User{ID: 7, Username: "root"}
)

func aliceHistory() []domain.Message {
	var out []domain.Message
	for i, text := range []string{"foo", "so much foo", "FOO"} {
		out = append(out, domain.Message{ID: domain.MessageID(i + 1), Community: community, Channel: 1, Author: alice, Text: text})
	}
	return out
}

type fixture struct {
	svc   *watch.Service
	d     *Dispatcher
	audit *recordingAudit
}

func newFixture(t *testing.T, access domain.AccessResolver) *fixture {
	t.Helper()
	svc := watch.NewService(staticWalker{history: aliceHistory()}, nil, zerolog.Nop(), watch.Options{SelfID: 999, Prefix: "!wcb"})
	t.Cleanup(svc.Close)
	svc.Observe(community, []domain.Channel{{ID: 1}})
	svc.Wait()
	audit := &recordingAudit{}
	d := NewDispatcher(svc, access, audit, zerolog.Nop(), Config{Prefix: "!wcb", RootUserID: root.ID})
	return &fixture{svc: svc, d: d, audit: audit}
}

func (f *fixture) run(t *testing.T, user domain.User, name string, args ...string) (string, error) {
	t.Helper()
	reply, err := f.d.Handle(context.Background(), Request{Community: community, Name: name, Args: args, Requester: user})
	f.svc.Wait()
	return reply, err
}

func TestCountUnknownWord(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.run(t, alice, "count", "foo", "@alice")
	if !errors.Is(err, ErrUnknownWord) {
		t.Fatalf("ожидали ErrUnknownWord, получили %v", err)
	}
	if !strings.Contains(ReplyFor(err), "not indexing") {
		t.Fatalf("неожиданный ответ: %q", ReplyFor(err))
	}
}

func TestAddThenCount(t *testing.T) {
	f := newFixture(t, managerAccess{managers: map[domain.UserID]bool{manager.ID: true}})
	reply, err := f.run(t, manager, "add", "FOO")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if reply != "Adding watch word foo" {
		t.Fatalf("неожиданный ответ: %q", reply)
	}
	reply, err = f.run(t, alice, "count", "foo", "@Alice")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if reply != "@alice has said foo 3 times!" {
		t.Fatalf("неожиданный ответ: %q", reply)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Outcome != "ok" {
		t.Fatalf("ожидали запись аудита, получили %+v", f.audit.entries)
	}
}

func TestCountByNumericIDAndMention(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, root, "add", "foo")

	reply, err := f.run(t, alice, "count", "foo", "id:5")
	if err != nil || reply != "@alice has said foo 3 times!" {
		t.Fatalf("неожиданный результат: %q, %v", reply, err)
	}

	mentioned := domain.User{ID: 42, DisplayName: "Quiet Person"}
	reply, err = f.d.Handle(context.Background(), Request{
		Community: community, Name: "count", Args: []string{"foo", "id:42"}, Requester: alice, Mentions: []domain.User{mentioned},
	})
	if err != nil || reply != "Quiet Person has said foo 0 times!" {
		t.Fatalf("неожиданный результат: %q, %v", reply, err)
	}

	if _, err := f.run(t, alice, "count", "foo", "@nobody"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("ожидали ErrUnknownUser, получили %v", err)
	}
}

func TestAddRequiresManager(t *testing.T) {
	f := newFixture(t, managerAccess{})
	_, err := f.run(t, alice, "add", "foo")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("ожидали ErrPermissionDenied, получили %v", err)
	}
	session, _ := f.svc.Session(community)
	if session.Registry().Has("foo") {
		t.Fatal("отказ в доступе не должен менять реестр")
	}
	if got := session.Ledger().Count(alice.ID, "foo"); got != 0 {
		t.Fatalf("отказ в доступе не должен менять журнал, получили %d", got)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Outcome != "denied" {
		t.Fatalf("ожидали аудит отказа, получили %+v", f.audit.entries)
	}
}

func TestRootBypassesPlatformRoles(t *testing.T) {
	f := newFixture(t, stubAccess{})
	if _, err := f.run(t, root, "add", "foo"); err != nil {
		t.Fatalf("root должен иметь доступ: %v", err)
	}
}

func TestAccessLookupFailure(t *testing.T) {
	f := newFixture(t, stubAccess{err: errors.New("telegram down")})
	_, err := f.run(t, alice, "add", "foo")
	if err == nil {
		t.Fatal("ожидали ошибку")
	}
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		t.Fatalf("внутренняя ошибка не должна нести ответ: %v", err)
	}
	if !strings.HasPrefix(ReplyFor(err), "Error:") {
		t.Fatalf("неожиданный ответ: %q", ReplyFor(err))
	}
}

func TestAddDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, root, "add", "foo")
	if _, err := f.run(t, root, "add", "foo"); !errors.Is(err, ErrDuplicateWord) {
		t.Fatalf("ожидали ErrDuplicateWord, получили %v", err)
	}
}

func TestRemovePreservesLedger(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.run(t, root, "remove", "foo"); !errors.Is(err, ErrUnknownWord) {
		t.Fatalf("ожидали ErrUnknownWord, получили %v", err)
	}
	f.run(t, root, "add", "foo")
	if _, err := f.run(t, root, "remove", "foo"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := f.run(t, alice, "count", "foo", "@alice"); !errors.Is(err, ErrUnknownWord) {
		t.Fatalf("ожидали ErrUnknownWord после удаления, получили %v", err)
	}
	f.run(t, root, "add", "foo")
	reply, err := f.run(t, alice, "count", "foo", "@alice")
	if err != nil || reply != "@alice has said foo 3 times!" {
		t.Fatalf("счётчик должен вернуться без двойного учёта: %q, %v", reply, err)
	}
}

func TestMalformedAndUnknownCommands(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name string
		cmd  string
		args []string
		want error
	}{
		{name: "count without user", cmd: "count", args: []string{"foo"}, want: ErrMalformedCommand},
		{name: "add without word", cmd: "add", want: ErrMalformedCommand},
		{name: "list with args", cmd: "list", args: []string{"x"}, want: ErrMalformedCommand},
		{name: "unknown command", cmd: "dance", want: ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(t, root, tt.cmd, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ожидали %v, получили %v", tt.want, err)
			}
		})
	}
}

func TestHelpAboutList(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, root, "add", "foo")

	reply, err := f.run(t, alice, "help")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.HasPrefix(reply, "Word Count Bot v"+Version) {
		t.Fatalf("неожиданный заголовок: %q", reply)
	}
	for _, name := range []string{"count", "add", "remove", "list", "stats", "help", "about"} {
		if !strings.Contains(reply, "!wcb "+name) {
			t.Fatalf("справка не содержит %s", name)
		}
	}

	reply, _ = f.run(t, alice, "help", "add")
	if reply != "add - Add a watch word to be indexed by the bot\n!wcb add word" {
		t.Fatalf("неожиданная справка: %q", reply)
	}
	if _, err := f.run(t, alice, "help", "nope"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("ожидали ErrUnknownCommand, получили %v", err)
	}

	reply, _ = f.run(t, alice, "about")
	if reply != "Word Count Bot v"+Version+" by hyaticua" {
		t.Fatalf("неожиданный ответ: %q", reply)
	}

	reply, _ = f.run(t, alice, "list")
	if reply != "Watch words:\nfoo" {
		t.Fatalf("неожиданный список: %q", reply)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, root, "add", "foo")
	f.run(t, root, "add", "much")

	reply, err := f.run(t, alice, "stats")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if reply != "@alice has said:\nfoo - 3 times\nmuch - 1 times" {
		t.Fatalf("неожиданный ответ: %q", reply)
	}
	reply, _ = f.run(t, alice, "stats", "id:99")
	if reply != "user 99 has not said any watch words yet" {
		t.Fatalf("неожиданный ответ: %q", reply)
	}
}
