package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

// ErrScanStalled возвращается, когда обход истории прервался.
// Захваченные проходом слова остаются в состоянии ScanRunning.
var ErrScanStalled = errors.New("сканирование истории прервано")

// ScanReport описывает итог прохода сканера.
type ScanReport struct {
	ID              string
	Community       domain.CommunityID
	Words           []string
	Messages        int
	Recorded        int
	SkippedChannels []domain.ChannelID
	Duration        time.Duration
}

// Scanner досчитывает новые слова по истории каналов сообщества.
type Scanner struct {
	walker      domain.HistoryWalker
	log         zerolog.Logger
	concurrency int
}

// NewScanner создаёт сканер. concurrency ограничивает число каналов, читаемых параллельно.
func NewScanner(walker domain.HistoryWalker, log zerolog.Logger, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scanner{walker: walker, log: log, concurrency: concurrency}
}

// Scan захватывает слова ScanNeeded и проходит историю всех каналов только по ним.
func (s *Scanner) Scan(ctx context.Context, session *Session) (ScanReport, error) {
	claim := session.registry.ClaimPending()
	report := ScanReport{ID: uuid.NewString(), Community: session.community, Words: claim.Words()}
	if claim.Empty() {
		return report, nil
	}

	log := s.log.With().
		Str("scan_id", report.ID).
		Int64("community", int64(session.community)).
		Strs("words", report.Words).
		Logger()
	log.Info().Msg("scanner: начинаем проход по истории")

	start := time.Now()
	metrics.ScansInFlight.Inc()
	defer metrics.ScansInFlight.Dec()

	var (
		messages atomic.Int64
		recorded atomic.Int64
		mu       sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, ch := range session.Channels() {
		g.Go(func() error {
			n, r, err := s.walkChannel(gctx, session, ch.ID, report.Words)
			messages.Add(int64(n))
			recorded.Add(int64(r))
			if errors.Is(err, domain.ErrHistoryUnavailable) {
				log.Warn().Err(err).Int64("channel", int64(ch.ID)).Msg("scanner: история канала недоступна, пропускаем")
				mu.Lock()
				report.SkippedChannels = append(report.SkippedChannels, ch.ID)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("канал %d: %w", ch.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()

	report.Messages = int(messages.Load())
	report.Recorded = int(recorded.Load())
	report.Duration = time.Since(start)
	metrics.ScanDuration.Observe(report.Duration.Seconds())

	if err != nil {
		metrics.ScanPasses.WithLabelValues("stalled").Inc()
		log.Error().Err(err).Int("messages", report.Messages).Msg("scanner: проход прерван, слова остаются в сканировании")
		return report, fmt.Errorf("%w: %w", ErrScanStalled, err)
	}

	session.registry.Complete(claim)
	metrics.ScanPasses.WithLabelValues("completed").Inc()
	log.Info().
		Int("messages", report.Messages).
		Int("recorded", report.Recorded).
		Dur("duration", report.Duration).
		Msg("scanner: проход завершён")
	return report, nil
}

// walkChannel проходит историю канала до конца. ErrHistoryUnavailable возвращается как есть,
// только если обход не успел выдать ни одного сообщения.
func (s *Scanner) walkChannel(ctx context.Context, session *Session, channel domain.ChannelID, words []string) (int, int, error) {
	var messages, recorded int
	for msg, err := range s.walker.History(ctx, session.community, channel) {
		if err != nil {
			if errors.Is(err, domain.ErrHistoryUnavailable) && messages == 0 {
				return 0, 0, err
			}
			return messages, recorded, err
		}
		messages++
		metrics.MessagesIndexed.WithLabelValues(metrics.SourceHistory).Inc()
		if msg.Channel == 0 {
			msg.Channel = channel
		}
		if session.Ignored(msg) {
			continue
		}
		session.members.Remember(msg.Author)
		recorded += session.countInto(msg, words)
	}
	return messages, recorded, nil
}
