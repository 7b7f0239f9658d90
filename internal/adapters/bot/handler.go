package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-wordcount-bot/internal/adapters/telegram"
	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
	"tg-wordcount-bot/internal/usecase/commands"
	"tg-wordcount-bot/internal/usecase/watch"
)

// sender описывает часть Bot API, нужная для ответов.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler переводит апдейты Bot API в вызовы сервиса наблюдения и команд.
type Handler struct {
	api      sender
	log      zerolog.Logger
	watch    *watch.Service
	commands *commands.Dispatcher
	dedup    domain.Deduper
	dedupTTL time.Duration
}

// NewHandler создаёт обработчик. dedup может быть nil.
func NewHandler(api sender, log zerolog.Logger, svc *watch.Service, dispatcher *commands.Dispatcher, dedup domain.Deduper, dedupTTL time.Duration) *Handler {
	return &Handler{
		api:      api,
		log:      log,
		watch:    svc,
		commands: dispatcher,
		dedup:    dedup,
		dedupTTL: dedupTTL,
	}
}

// HandleUpdate обрабатывает входящий апдейт. Повторная доставка того же апдейта пропускается.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if h.dedup == nil {
		h.process(ctx, upd)
		return
	}
	key := "update:" + strconv.Itoa(upd.UpdateID)
	err := h.dedup.Once(key, h.dedupTTL, func() error {
		h.process(ctx, upd)
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Int("update_id", upd.UpdateID).Msg("bot: дедупликация недоступна, обрабатываем апдейт")
		h.process(ctx, upd)
	}
}

func (h *Handler) process(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.MyChatMember != nil:
		h.handleMembership(upd.MyChatMember)
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	}
}

// handleMembership начинает наблюдение, когда бота добавили в группу.
func (h *Handler) handleMembership(upd *tgbotapi.ChatMemberUpdated) {
	if !isGroup(&upd.Chat) {
		return
	}
	member := upd.NewChatMember
	if member.HasLeft() || member.WasKicked() {
		h.log.Info().Int64("community", upd.Chat.ID).Msg("bot: бота удалили из чата")
		return
	}
	h.watch.Observe(domain.CommunityID(upd.Chat.ID), []domain.Channel{{ID: domain.ChannelID(upd.Chat.ID), Title: upd.Chat.Title}})
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || !isGroup(msg.Chat) || msg.From == nil {
		return
	}
	community := domain.CommunityID(msg.Chat.ID)
	if _, ok := h.watch.Session(community); !ok {
		h.watch.Observe(community, []domain.Channel{{ID: domain.ChannelID(msg.Chat.ID), Title: msg.Chat.Title}})
	}

	author := telegram.UserFrom(msg.From)
	if cmd, ok := telegram.ParseCommand(h.commands.Prefix(), msg); ok && !author.IsBot {
		h.handleCommand(ctx, msg, author, cmd)
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}
	h.watch.HandleMessage(domain.Message{
		ID:        domain.MessageID(msg.MessageID),
		Community: community,
		Channel:   domain.ChannelID(msg.Chat.ID),
		Author:    author,
		Text:      text,
		SentAt:    msg.Time(),
	})
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message, author domain.User, cmd telegram.ParsedCommand) {
	if session, ok := h.watch.Session(domain.CommunityID(msg.Chat.ID)); ok {
		session.Members().Remember(author)
	}
	reply, err := h.commands.Handle(ctx, commands.Request{
		Community: domain.CommunityID(msg.Chat.ID),
		Name:      cmd.Name,
		Args:      cmd.Args,
		Requester: author,
		Mentions:  cmd.Mentions,
	})
	if err != nil {
		var cmdErr *commands.Error
		if !errors.As(err, &cmdErr) {
			h.log.Error().Err(err).Str("command", cmd.Name).Int64("community", msg.Chat.ID).Msg("bot: команда завершилась ошибкой")
		}
		reply = commands.ReplyFor(err)
	}
	h.reply(msg.Chat.ID, msg.MessageID, reply)
}

func (h *Handler) reply(chatID int64, replyTo int, text string) {
	for i, part := range telegram.SplitMessage(text, telegram.MessageLimit) {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 {
			msg.ReplyToMessageID = replyTo
		}
		start := time.Now()
		_, err := h.api.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: не удалось отправить сообщение")
			return
		}
	}
}

func isGroup(chat *tgbotapi.Chat) bool {
	return chat.IsGroup() || chat.IsSuperGroup()
}
