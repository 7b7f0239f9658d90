package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
	"tg-wordcount-bot/internal/usecase/watch"
)

// Config задаёт параметры диспетчера команд.
type Config struct {
	Prefix     string
	RootUserID domain.UserID
}

// Dispatcher проверяет права и выполняет команды бота.
type Dispatcher struct {
	watch    *watch.Service
	access   domain.AccessResolver
	audit    domain.AuditRepo
	log      zerolog.Logger
	cfg      Config
	commands map[string]*Command
	order    []*Command
}

// NewDispatcher создаёт диспетчер. access и audit могут быть nil.
func NewDispatcher(svc *watch.Service, access domain.AccessResolver, audit domain.AuditRepo, log zerolog.Logger, cfg Config) *Dispatcher {
	d := &Dispatcher{
		watch:    svc,
		access:   access,
		audit:    audit,
		log:      log,
		cfg:      cfg,
		commands: make(map[string]*Command),
	}
	for _, cmd := range builtinCommands() {
		d.commands[cmd.Name] = cmd
		d.order = append(d.order, cmd)
	}
	return d
}

// Prefix возвращает префикс вызова команд.
func (d *Dispatcher) Prefix() string { return d.cfg.Prefix }

// Handle выполняет команду и возвращает текст ответа.
// Ошибки типа *Error несут готовый ответ пользователю, см. ReplyFor.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (string, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	cmd, ok := d.commands[name]
	if !ok {
		metrics.ObserveCommand("unknown", "unknown_command")
		return "", replyError(ErrUnknownCommand, fmt.Sprintf("Error: unknown command %q, see %s help", req.Name, d.cfg.Prefix))
	}
	if !cmd.acceptsArgs(len(req.Args)) {
		metrics.ObserveCommand(cmd.Name, "malformed")
		return "", replyError(ErrMalformedCommand, "Error: wrong arguments\n"+strings.TrimSpace(cmd.Help(d.cfg.Prefix)))
	}

	if cmd.MinAccess > domain.AccessNone {
		level, err := d.accessLevel(ctx, req.Community, req.Requester.ID)
		if err != nil {
			metrics.ObserveCommand(cmd.Name, "error")
			return "", fmt.Errorf("уровень доступа: %w", err)
		}
		if !level.Allows(cmd.MinAccess) {
			metrics.ObserveCommand(cmd.Name, "denied")
			d.recordAudit(ctx, req, cmd, "denied")
			return "", replyError(ErrPermissionDenied, "Error: user does not have permission to execute command")
		}
	}

	session, ok := d.watch.Session(req.Community)
	if !ok {
		metrics.ObserveCommand(cmd.Name, "error")
		return "", watch.ErrUnknownCommunity
	}

	reply, err := cmd.run(ctx, d, session, req)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		var cmdErr *Error
		if !errors.As(err, &cmdErr) {
			outcome = "error"
		}
	}
	metrics.ObserveCommand(cmd.Name, outcome)
	if cmd.MinAccess > domain.AccessNone {
		d.recordAudit(ctx, req, cmd, outcome)
	}
	return reply, err
}

func (d *Dispatcher) accessLevel(ctx context.Context, community domain.CommunityID, user domain.UserID) (domain.AccessLevel, error) {
	if d.cfg.RootUserID != 0 && user == d.cfg.RootUserID {
		return domain.AccessRoot, nil
	}
	if d.access == nil {
		return domain.AccessNone, nil
	}
	return d.access.AccessLevel(ctx, community, user)
}

func (d *Dispatcher) recordAudit(ctx context.Context, req Request, cmd *Command, outcome string) {
	if d.audit == nil {
		return
	}
	entry := domain.CommandAudit{
		Community:  req.Community,
		User:       req.Requester.ID,
		Command:    cmd.Name,
		Args:       req.Args,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}
	if err := d.audit.RecordCommand(ctx, entry); err != nil {
		d.log.Error().Err(err).Str("command", cmd.Name).Msg("commands: не удалось записать аудит")
	}
}

// resolveUser находит пользователя по аргументу: @username, id:<число> или числу.
func (d *Dispatcher) resolveUser(session *watch.Session, req Request, arg string) (domain.User, error) {
	arg = strings.TrimSpace(arg)
	raw := strings.TrimPrefix(arg, "id:")
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id != 0 {
		uid := domain.UserID(id)
		for _, m := range req.Mentions {
			if m.ID == uid {
				return m, nil
			}
		}
		if u, ok := session.Members().ByID(uid); ok {
			return u, nil
		}
		return domain.User{ID: uid}, nil
	}
	if strings.HasPrefix(arg, "@") {
		name := strings.TrimPrefix(arg, "@")
		for _, m := range req.Mentions {
			if m.Username != "" && strings.EqualFold(m.Username, name) {
				return m, nil
			}
		}
		if u, ok := session.Members().ByUsername(name); ok {
			return u, nil
		}
	}
	return domain.User{}, replyError(ErrUnknownUser, fmt.Sprintf("Error: unknown user %q", arg))
}
