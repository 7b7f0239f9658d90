package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"

	"tg-wordcount-bot/internal/domain"
	httpinfra "tg-wordcount-bot/internal/infra/http"
	"tg-wordcount-bot/internal/usecase/watch"
)

var (
	errNoWebAppUser = errors.New("пользователь не определён")
	errNotMember    = errors.New("нет доступа к сообществу")
)

// MembershipChecker проверяет, состоит ли пользователь в сообществе.
type MembershipChecker interface {
	IsMember(ctx context.Context, community domain.CommunityID, user domain.UserID) (bool, error)
}

// Handler отдаёт состояние наблюдения только на чтение.
// Пользователь видит только сообщества, в которых состоит.
type Handler struct {
	watch   *watch.Service
	members MembershipChecker
}

// NewHandler создаёт обработчик API.
func NewHandler(svc *watch.Service, members MembershipChecker) *Handler {
	return &Handler{watch: svc, members: members}
}

type channelView struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
}

type communityView struct {
	ID       int64         `json:"id"`
	Channels []channelView `json:"channels"`
	Words    int           `json:"words"`
}

type wordView struct {
	Word         string     `json:"word"`
	State        string     `json:"state"`
	FirstScanned *time.Time `json:"first_scanned,omitempty"`
	LastScanned  *time.Time `json:"last_scanned,omitempty"`
}

type countsView struct {
	Community int64          `json:"community_id"`
	User      int64          `json:"user_id"`
	Counts    map[string]int `json:"counts"`
}

// Routes регистрирует маршруты API.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/communities", h.listCommunities)
	r.Get("/communities/{id}/words", h.listWords)
	r.Get("/communities/{id}/users/{user}/counts", h.userCounts)
}

func (h *Handler) listCommunities(w http.ResponseWriter, r *http.Request) {
	user, ok := httpinfra.WebAppUserFrom(r.Context())
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, errNoWebAppUser)
		return
	}
	sessions := h.watch.Sessions()
	out := make([]communityView, 0, len(sessions))
	for _, s := range sessions {
		member, err := h.members.IsMember(r.Context(), s.Community(), domain.UserID(user.ID))
		if err != nil || !member {
			continue
		}
		view := communityView{ID: int64(s.Community()), Words: len(s.Registry().Words())}
		for _, ch := range s.Channels() {
			view.Channels = append(view.Channels, channelView{ID: int64(ch.ID), Title: ch.Title})
		}
		out = append(out, view)
	}
	httpinfra.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) listWords(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	words := session.Registry().List()
	out := make([]wordView, 0, len(words))
	for _, ww := range words {
		out = append(out, wordView{
			Word:         ww.Word,
			State:        ww.State.String(),
			FirstScanned: ww.FirstScanned,
			LastScanned:  ww.LastScanned,
		})
	}
	httpinfra.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) userCounts(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	user, err := strconv.ParseInt(chi.URLParam(r, "user"), 10, 64)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.New("некорректный id пользователя"))
		return
	}
	counts := make(map[string]int)
	for _, word := range session.Registry().Words() {
		counts[word] = session.Ledger().Count(domain.UserID(user), word)
	}
	httpinfra.WriteJSON(w, http.StatusOK, countsView{
		Community: int64(session.Community()),
		User:      user,
		Counts:    counts,
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*watch.Session, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.New("некорректный id сообщества"))
		return nil, false
	}
	user, ok := httpinfra.WebAppUserFrom(r.Context())
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, errNoWebAppUser)
		return nil, false
	}
	session, ok := h.watch.Session(domain.CommunityID(id))
	if !ok {
		httpinfra.WriteError(w, http.StatusNotFound, watch.ErrUnknownCommunity)
		return nil, false
	}
	member, err := h.members.IsMember(r.Context(), session.Community(), domain.UserID(user.ID))
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadGateway, err)
		return nil, false
	}
	if !member {
		httpinfra.WriteError(w, http.StatusForbidden, errNotMember)
		return nil, false
	}
	return session, true
}
