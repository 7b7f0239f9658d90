package mtproto

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

const defaultPageSize = 100

// Options задаёт параметры MTProto клиента.
type Options struct {
	APIID       int
	APIHash     string
	SessionFile string
	GlobalRPS   int
	PageSize    int
}

// Walker читает историю чатов через пользовательскую MTProto сессию.
type Walker struct {
	client   *telegram.Client
	log      zerolog.Logger
	limiter  *rate.Limiter
	pageSize int

	dialogsLimit int

	ready    chan struct{}
	startErr error
	api      *tg.Client

	peers *peerCache
}

// NewWalker создаёт MTProto клиента. Перед вызовом History нужно запустить Run.
func NewWalker(opts Options, log zerolog.Logger) (*Walker, error) {
	if opts.APIID == 0 || opts.APIHash == "" {
		return nil, errors.New("mtproto: не указаны TG_API_ID и TG_API_HASH")
	}
	if opts.SessionFile == "" {
		return nil, errors.New("mtproto: не указан MTPROTO_SESSION_FILE")
	}
	if err := prepareSessionFile(opts.SessionFile); err != nil {
		return nil, err
	}
	rps := opts.GlobalRPS
	if rps <= 0 {
		rps = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	client := telegram.NewClient(opts.APIID, opts.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: opts.SessionFile},
	})
	return &Walker{
		client:   client,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		pageSize: pageSize,
		ready:    make(chan struct{}),
		peers:    newPeerCache(),

		dialogsLimit: defaultPageSize,
	}, nil
}

// Run держит соединение до отмены ctx.
func (w *Walker) Run(ctx context.Context) error {
	var once sync.Once
	markReady := func(err error) {
		once.Do(func() {
			w.startErr = err
			close(w.ready)
		})
	}
	err := w.client.Run(ctx, func(ctx context.Context) error {
		status, err := w.client.Auth().Status(ctx)
		if err != nil {
			markReady(fmt.Errorf("mtproto: статус авторизации: %w", err))
			return err
		}
		if !status.Authorized {
			err := errors.New("mtproto: сессия не авторизована")
			markReady(err)
			return err
		}
		w.api = w.client.API()
		markReady(nil)
		w.log.Info().Msg("mtproto: клиент готов")
		<-ctx.Done()
		return nil
	})
	markReady(err)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Walker) waitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ready:
	}
	if w.startErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrHistoryUnavailable, w.startErr)
	}
	return nil
}

// History выдаёт сообщения чата от старых к новым.
// Для базовых групп и недоступных чатов возвращает domain.ErrHistoryUnavailable.
func (w *Walker) History(ctx context.Context, community domain.CommunityID, channel domain.ChannelID) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		if err := w.waitReady(ctx); err != nil {
			yield(domain.Message{}, err)
			return
		}
		peer, err := w.resolvePeer(ctx, channel)
		if err != nil {
			yield(domain.Message{}, err)
			return
		}
		var after int
		for {
			page, err := w.fetchPage(ctx, peer, after)
			if err != nil {
				yield(domain.Message{}, err)
				return
			}
			for _, msg := range page.messages {
				if int(msg.ID) <= after {
					continue
				}
				msg.Community = community
				msg.Channel = channel
				if !yield(msg, nil) {
					return
				}
			}
			// Конец истории определяется по сырой странице: служебные сообщения
			// не выдаются, но занимают место в лимите.
			if page.raw == 0 || page.maxID <= after {
				return
			}
			after = page.maxID
			if page.raw < w.pageSize {
				return
			}
		}
	}
}

// historyPage содержит сообщения пользователей и размер сырой страницы.
type historyPage struct {
	messages []domain.Message
	raw      int
	maxID    int
}

// fetchPage загружает страницу сообщений новее after в порядке возрастания id.
func (w *Walker) fetchPage(ctx context.Context, peer tg.InputPeerClass, after int) (historyPage, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return historyPage{}, err
	}
	start := time.Now()
	res, err := w.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:      peer,
		OffsetID:  after + 1,
		AddOffset: -w.pageSize,
		Limit:     w.pageSize,
		MinID:     after,
	})
	metrics.ObserveNetworkRequest("mtproto", "messages.getHistory", start, err)
	if err != nil {
		return historyPage{}, fmt.Errorf("messages.getHistory: %w", err)
	}

	var (
		raw   []tg.MessageClass
		users []tg.UserClass
	)
	switch r := res.(type) {
	case *tg.MessagesMessages:
		raw, users = r.Messages, r.Users
	case *tg.MessagesMessagesSlice:
		raw, users = r.Messages, r.Users
	case *tg.MessagesChannelMessages:
		raw, users = r.Messages, r.Users
	default:
		return historyPage{}, nil
	}

	authors := make(map[int64]domain.User, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			authors[user.ID] = convertUser(user)
		}
	}
	page := historyPage{raw: len(raw), messages: make([]domain.Message, 0, len(raw))}
	for _, m := range raw {
		if id := m.GetID(); id > page.maxID {
			page.maxID = id
		}
		if msg, ok := convertMessage(m, authors); ok {
			page.messages = append(page.messages, msg)
		}
	}
	slices.SortFunc(page.messages, func(a, b domain.Message) int { return int(a.ID - b.ID) })
	return page, nil
}

func (w *Walker) resolvePeer(ctx context.Context, channel domain.ChannelID) (tg.InputPeerClass, error) {
	if peer, ok := w.peers.get(channel); ok {
		return peer, nil
	}
	if err := w.refreshPeers(ctx); err != nil {
		return nil, err
	}
	if peer, ok := w.peers.get(channel); ok {
		return peer, nil
	}
	if w.peers.isBasicGroup(channel) {
		return nil, fmt.Errorf("%w: чат %d является базовой группой", domain.ErrHistoryUnavailable, channel)
	}
	return nil, fmt.Errorf("%w: чат %d не найден среди диалогов сессии", domain.ErrHistoryUnavailable, channel)
}

// refreshPeers листает все диалоги аккаунта и обновляет кэш peer.
func (w *Walker) refreshPeers(ctx context.Context) error {
	req := &tg.MessagesGetDialogsRequest{OffsetPeer: &tg.InputPeerEmpty{}, Limit: w.dialogsLimit}
	chats := 0
	for pages := 1; ; pages++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		start := time.Now()
		res, err := w.api.MessagesGetDialogs(ctx, req)
		metrics.ObserveNetworkRequest("mtproto", "messages.getDialogs", start, err)
		if err != nil {
			return fmt.Errorf("messages.getDialogs: %w", err)
		}

		slice, ok := res.(*tg.MessagesDialogsSlice)
		if !ok {
			if full, ok := res.(*tg.MessagesDialogs); ok {
				w.peers.fill(full.Chats)
				chats += len(full.Chats)
			}
			w.log.Debug().Int("chats", chats).Int("pages", pages).Msg("mtproto: кэш диалогов обновлён")
			return nil
		}
		w.peers.fill(slice.Chats)
		chats += len(slice.Chats)
		if len(slice.Dialogs) < w.dialogsLimit {
			w.log.Debug().Int("chats", chats).Int("pages", pages).Msg("mtproto: кэш диалогов обновлён")
			return nil
		}
		next, ok := nextDialogsOffset(slice)
		if !ok || (next.OffsetID == req.OffsetID && next.OffsetDate == req.OffsetDate) {
			w.log.Warn().Int("chats", chats).Msg("mtproto: не удалось продолжить листание диалогов")
			return nil
		}
		req.OffsetDate, req.OffsetID, req.OffsetPeer = next.OffsetDate, next.OffsetID, next.OffsetPeer
	}
}

func convertUser(u *tg.User) domain.User {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return domain.User{ID: domain.UserID(u.ID), Username: u.Username, DisplayName: name, IsBot: u.Bot}
}

// convertMessage пропускает служебные сообщения и сообщения без автора-пользователя.
func convertMessage(m tg.MessageClass, authors map[int64]domain.User) (domain.Message, bool) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return domain.Message{}, false
	}
	from, ok := msg.GetFromID()
	if !ok {
		from = msg.PeerID
	}
	peerUser, ok := from.(*tg.PeerUser)
	if !ok {
		return domain.Message{}, false
	}
	author, ok := authors[peerUser.UserID]
	if !ok {
		author = domain.User{ID: domain.UserID(peerUser.UserID)}
	}
	return domain.Message{
		ID:     domain.MessageID(msg.ID),
		Author: author,
		Text:   msg.Message,
		SentAt: time.Unix(int64(msg.Date), 0).UTC(),
	}, true
}

// Unavailable используется, когда MTProto сессия не настроена.
type Unavailable struct{}

// History всегда сообщает о недоступности истории.
func (Unavailable) History(context.Context, domain.CommunityID, domain.ChannelID) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		yield(domain.Message{}, fmt.Errorf("%w: MTProto сессия не настроена", domain.ErrHistoryUnavailable))
	}
}
