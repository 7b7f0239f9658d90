package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

// memberAPI описывает часть Bot API, нужная для проверки прав.
type memberAPI interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// ChatAccess определяет уровень доступа по роли участника чата.
// Создатель чата и администраторы с правом менять информацию о чате получают SERVER_MANAGER.
type ChatAccess struct {
	api memberAPI
}

// NewChatAccess создаёт резолвер прав.
func NewChatAccess(api memberAPI) *ChatAccess {
	return &ChatAccess{api: api}
}

// AccessLevel запрашивает статус участника через getChatMember.
func (a *ChatAccess) AccessLevel(_ context.Context, community domain.CommunityID, user domain.UserID) (domain.AccessLevel, error) {
	start := time.Now()
	member, err := a.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: int64(community), UserID: int64(user)},
	})
	metrics.ObserveNetworkRequest("telegram_bot", "get_chat_member", start, err)
	if err != nil {
		return domain.AccessNone, fmt.Errorf("getChatMember %s: %w", strconv.FormatInt(int64(user), 10), err)
	}
	switch {
	case member.IsCreator():
		return domain.AccessServerManager, nil
	case member.IsAdministrator() && member.CanChangeInfo:
		return domain.AccessServerManager, nil
	default:
		return domain.AccessNone, nil
	}
}

// IsMember сообщает, состоит ли пользователь в чате сейчас.
func (a *ChatAccess) IsMember(_ context.Context, community domain.CommunityID, user domain.UserID) (bool, error) {
	start := time.Now()
	member, err := a.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: int64(community), UserID: int64(user)},
	})
	metrics.ObserveNetworkRequest("telegram_bot", "get_chat_member", start, err)
	if err != nil {
		return false, fmt.Errorf("getChatMember %s: %w", strconv.FormatInt(int64(user), 10), err)
	}
	switch {
	case member.HasLeft(), member.WasKicked():
		return false, nil
	case member.Status == "restricted":
		return member.IsMember, nil
	default:
		return true, nil
	}
}

var _ domain.AccessResolver = (*ChatAccess)(nil)
