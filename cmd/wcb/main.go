package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tg-wordcount-bot/internal/adapters/bot"
	"tg-wordcount-bot/internal/adapters/httpapi"
	"tg-wordcount-bot/internal/adapters/mtproto"
	"tg-wordcount-bot/internal/adapters/repo"
	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/cache"
	"tg-wordcount-bot/internal/infra/config"
	"tg-wordcount-bot/internal/infra/db"
	httpinfra "tg-wordcount-bot/internal/infra/http"
	applog "tg-wordcount-bot/internal/infra/log"
	"tg-wordcount-bot/internal/infra/metrics"
	"tg-wordcount-bot/internal/infra/queue"
	"tg-wordcount-bot/internal/usecase/commands"
	"tg-wordcount-bot/internal/usecase/watch"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("wcb: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("wcb: не удалось создать бота")
	}
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("wcb: бот авторизован")

	var walker domain.HistoryWalker = mtproto.Unavailable{}
	if cfg.Telegram.APIID != 0 {
		w, err := mtproto.NewWalker(mtproto.Options{
			APIID:       cfg.Telegram.APIID,
			APIHash:     cfg.Telegram.APIHash,
			SessionFile: cfg.MTProto.SessionFile,
			GlobalRPS:   cfg.MTProto.GlobalRPS,
			PageSize:    cfg.Scan.PageSize,
		}, logger.With().Str("component", "mtproto").Logger())
		if err != nil {
			logger.Fatal().Err(err).Msg("wcb: не удалось создать MTProto клиента")
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("wcb: MTProto клиент остановлен, история недоступна")
			}
		}()
		walker = w
	} else {
		logger.Warn().Msg("wcb: TG_API_ID не задан, досчёт по истории отключён")
	}

	var events domain.EventPublisher
	if cfg.Events.RabbitURL != "" {
		publisher, err := queue.NewRabbitEventPublisher(cfg.Events.RabbitURL, cfg.Events.Exchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("wcb: не удалось подключиться к RabbitMQ")
		}
		defer publisher.Close()
		events = publisher
	}

	var audit domain.AuditRepo
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("wcb: нет подключения к БД")
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("wcb: не удалось применить схему")
		}
		audit = repo.NewPostgres(pool)
	}

	var dedup domain.Deduper
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Fatal().Err(err).Msg("wcb: нет подключения к Redis")
		}
		defer client.Close()
		dedup = cache.NewRedis(client)
	}

	svc := watch.NewService(walker, events, logger.With().Str("component", "watch").Logger(), watch.Options{
		SelfID:          domain.UserID(botAPI.Self.ID),
		Prefix:          cfg.Bot.Prefix,
		DefaultWords:    cfg.Bot.DefaultWords,
		ScanConcurrency: cfg.Scan.ChannelConcurrency,
	})
	defer svc.Close()

	access := bot.NewChatAccess(botAPI)
	dispatcher := commands.NewDispatcher(svc, access, audit,
		logger.With().Str("component", "commands").Logger(),
		commands.Config{Prefix: cfg.Bot.Prefix, RootUserID: domain.UserID(cfg.Bot.RootUserID)})
	handler := bot.NewHandler(botAPI, logger.With().Str("component", "bot").Logger(), svc, dispatcher, dedup, cfg.Redis.DedupTTL)

	for _, id := range cfg.Bot.Communities {
		observeConfigured(botAPI, svc, logger, id)
	}

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	server.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(httpinfra.WebAppAuthMiddleware(cfg.Telegram.Token, cfg.Telegram.WebAppAuthTTL))
		httpapi.NewHandler(svc, access).Routes(r)
	})

	var updates tgbotapi.UpdatesChannel
	if cfg.Telegram.WebhookURL != "" {
		path := mountWebhook(server.Router, handler, cfg.Telegram.WebhookURL, logger)
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("wcb: некорректный TG_WEBHOOK_URL")
		}
		wh.AllowedUpdates = []string{"message", "my_chat_member"}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("wcb: не удалось установить вебхук")
		}
		logger.Info().Str("path", path).Msg("wcb: режим вебхука")
	} else {
		if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn().Err(err).Msg("wcb: не удалось снять вебхук")
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		u.AllowedUpdates = []string{"message", "my_chat_member"}
		updates = botAPI.GetUpdatesChan(u)
		logger.Info().Msg("wcb: режим long polling")
	}

	go func() {
		if err := server.Start(cfg.Port); err != nil {
			logger.Error().Err(err).Msg("wcb: HTTP сервер остановлен")
			stop()
		}
	}()

	// updates остаётся nil в режиме вебхука, и select ждёт только отмены.
	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case upd, ok := <-updates:
			if !ok {
				running = false
				break
			}
			handler.HandleUpdate(ctx, upd)
		}
	}

	logger.Info().Msg("wcb: остановка")
	if updates != nil {
		botAPI.StopReceivingUpdates()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("wcb: ошибка остановки HTTP сервера")
	}
}

// observeConfigured начинает наблюдение за сообществом из COMMUNITIES.
func observeConfigured(botAPI *tgbotapi.BotAPI, svc *watch.Service, logger zerolog.Logger, id int64) {
	channel := domain.Channel{ID: domain.ChannelID(id)}
	chat, err := botAPI.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		logger.Warn().Err(err).Int64("community", id).Msg("wcb: не удалось получить чат, наблюдаем без названия")
	} else {
		channel.Title = chat.Title
	}
	svc.Observe(domain.CommunityID(id), []domain.Channel{channel})
}

func mountWebhook(r chi.Router, handler *bot.Handler, webhookURL string, logger zerolog.Logger) string {
	path := "/bot/webhook"
	if parsed, err := url.Parse(webhookURL); err == nil && parsed.Path != "" {
		path = parsed.Path
	}
	r.Post(path, func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			logger.Warn().Err(err).Msg("wcb: некорректный апдейт")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handler.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
	return path
}
