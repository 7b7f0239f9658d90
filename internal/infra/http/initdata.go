package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const initDataHeader = "X-Telegram-Init-Data"

var (
	errInitDataMissing   = errors.New("init_data отсутствует")
	errInitDataSignature = errors.New("подпись недействительна")
	errInitDataExpired   = errors.New("init_data устарела")
	errInitDataUser      = errors.New("в init_data нет пользователя")
)

// WebAppUser описывает пользователя Mini App из поля user initData.
type WebAppUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type webAppUserKey struct{}

// WithWebAppUser кладёт пользователя Mini App в контекст запроса.
func WithWebAppUser(ctx context.Context, user WebAppUser) context.Context {
	return context.WithValue(ctx, webAppUserKey{}, user)
}

// WebAppUserFrom возвращает пользователя, проверенного WebAppAuthMiddleware.
func WebAppUserFrom(ctx context.Context) (WebAppUser, bool) {
	user, ok := ctx.Value(webAppUserKey{}).(WebAppUser)
	return user, ok
}

// WebAppAuthMiddleware проверяет подпись initData Telegram Mini App по токену бота.
// initData берётся из заголовка X-Telegram-Init-Data или параметра init_data.
// Данные старше maxAge отклоняются; maxAge <= 0 отключает проверку срока.
func WebAppAuthMiddleware(botToken string, maxAge time.Duration) func(http.Handler) http.Handler {
	secret := webAppSecret(botToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			initData := r.Header.Get(initDataHeader)
			if initData == "" {
				initData = r.URL.Query().Get("init_data")
			}
			if initData == "" {
				WriteError(w, http.StatusUnauthorized, errInitDataMissing)
				return
			}
			user, err := validateInitData(initData, secret, time.Now(), maxAge)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithWebAppUser(r.Context(), user)))
		})
	}
}

func webAppSecret(botToken string) []byte {
	h := hmac.New(sha256.New, []byte("WebAppData"))
	h.Write([]byte(botToken))
	return h.Sum(nil)
}

// signInitData возвращает hash для набора полей initData.
func signInitData(values url.Values, secret []byte) string {
	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

func validateInitData(initData string, secret []byte, now time.Time, maxAge time.Duration) (WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return WebAppUser{}, errInitDataSignature
	}
	expected, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(expected) == 0 {
		return WebAppUser{}, errInitDataSignature
	}
	calc, _ := hex.DecodeString(signInitData(values, secret))
	if !hmac.Equal(calc, expected) {
		return WebAppUser{}, errInitDataSignature
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(authDate, 0)) > maxAge {
			return WebAppUser{}, errInitDataExpired
		}
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return WebAppUser{}, errInitDataUser
	}
	return user, nil
}
