package mtproto

import (
	"sync"

	"github.com/gotd/td/tg"

	"tg-wordcount-bot/internal/domain"
)

// supergroupShift переводит id канала MTProto в id чата Bot API: -100<id>.
const supergroupShift = 1_000_000_000_000

// BotChatID возвращает id чата Bot API для супергруппы MTProto.
func BotChatID(channelID int64) domain.ChannelID {
	return domain.ChannelID(-(supergroupShift + channelID))
}

// BasicGroupChatID возвращает id чата Bot API для базовой группы.
func BasicGroupChatID(chatID int64) domain.ChannelID {
	return domain.ChannelID(-chatID)
}

type peerCache struct {
	mu     sync.RWMutex
	peers  map[domain.ChannelID]tg.InputPeerClass
	basics map[domain.ChannelID]struct{}
}

func newPeerCache() *peerCache {
	return &peerCache{
		peers:  make(map[domain.ChannelID]tg.InputPeerClass),
		basics: make(map[domain.ChannelID]struct{}),
	}
}

func (c *peerCache) get(id domain.ChannelID) (tg.InputPeerClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	peer, ok := c.peers[id]
	return peer, ok
}

func (c *peerCache) isBasicGroup(id domain.ChannelID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.basics[id]
	return ok
}

// fill запоминает супергруппы с access hash. Базовые группы только отмечаются:
// id их сообщений не совпадают с id из Bot API.
func (c *peerCache) fill(chats []tg.ChatClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chat := range chats {
		switch ch := chat.(type) {
		case *tg.Channel:
			if !ch.Megagroup {
				continue
			}
			c.peers[BotChatID(ch.ID)] = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
		case *tg.Chat:
			c.basics[BasicGroupChatID(ch.ID)] = struct{}{}
		}
	}
}

type peerKey struct {
	kind byte
	id   int64
}

func keyOf(p tg.PeerClass) peerKey {
	switch p := p.(type) {
	case *tg.PeerUser:
		return peerKey{'u', p.UserID}
	case *tg.PeerChat:
		return peerKey{'g', p.ChatID}
	case *tg.PeerChannel:
		return peerKey{'c', p.ChannelID}
	}
	return peerKey{}
}

// nextDialogsOffset строит смещение следующей страницы по последнему диалогу среза.
func nextDialogsOffset(r *tg.MessagesDialogsSlice) (tg.MessagesGetDialogsRequest, bool) {
	var last *tg.Dialog
	for i := len(r.Dialogs) - 1; i >= 0 && last == nil; i-- {
		last, _ = r.Dialogs[i].(*tg.Dialog)
	}
	if last == nil {
		return tg.MessagesGetDialogsRequest{}, false
	}
	key := keyOf(last.Peer)

	next := tg.MessagesGetDialogsRequest{OffsetID: last.TopMessage}
	for _, m := range r.Messages {
		switch m := m.(type) {
		case *tg.Message:
			if m.ID == last.TopMessage && keyOf(m.PeerID) == key {
				next.OffsetDate = m.Date
			}
		case *tg.MessageService:
			if m.ID == last.TopMessage && keyOf(m.PeerID) == key {
				next.OffsetDate = m.Date
			}
		}
	}

	switch key.kind {
	case 'u':
		for _, u := range r.Users {
			if u, ok := u.(*tg.User); ok && u.ID == key.id {
				next.OffsetPeer = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
			}
		}
	case 'g':
		next.OffsetPeer = &tg.InputPeerChat{ChatID: key.id}
	case 'c':
		for _, c := range r.Chats {
			if c, ok := c.(*tg.Channel); ok && c.ID == key.id {
				next.OffsetPeer = &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
			}
		}
	}
	if next.OffsetPeer == nil {
		return tg.MessagesGetDialogsRequest{}, false
	}
	return next, true
}
