// Package refresh は検証済み連携のバックグラウンド統計更新を提供する。
// 一定間隔で更新期限を迎えた連携を取得し、並列制御と
// 外部API向けのペーシングを行いながら統計を再取得する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/statly/internal/model"
)

// defaultBatchLimit は1サイクルで処理する連携の最大件数。
const defaultBatchLimit = 200

// StatsRefresher は統計再取得の実行インターフェース。
// platform.Serviceの部分集合として定義する。
type StatsRefresher interface {
	RefreshStats(ctx context.Context, userID string, platformID model.PlatformID) (*model.PlatformBinding, error)
}

// StaleBindingLister は更新期限を迎えた連携の取得インターフェース。
type StaleBindingLister interface {
	ListVerifiedStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.PlatformBinding, error)
}

// Scheduler は統計更新のスケジューリングと並列制御を行う。
// semaphoreパターンで最大並列数を制御し、外部プラットフォームへの
// リクエスト頻度はレートリミッターで抑える。
type Scheduler struct {
	bindings       StaleBindingLister
	refresher      StatsRefresher
	logger         *slog.Logger
	staleTTL       time.Duration
	maxConcurrency int
	pacer          *rate.Limiter
	batchLimit     int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
// apiIntervalは外部APIへの連続リクエストの最小間隔。
func NewScheduler(
	bindings StaleBindingLister,
	refresher StatsRefresher,
	logger *slog.Logger,
	staleTTL time.Duration,
	maxConcurrency int,
	apiInterval time.Duration,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	pacer := rate.NewLimiter(rate.Inf, 1)
	if apiInterval > 0 {
		pacer = rate.NewLimiter(rate.Every(apiInterval), 1)
	}
	return &Scheduler{
		bindings:       bindings,
		refresher:      refresher,
		logger:         logger,
		staleTTL:       staleTTL,
		maxConcurrency: maxConcurrency,
		pacer:          pacer,
		batchLimit:     defaultBatchLimit,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("統計更新スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_ttl", s.staleTTL),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("統計更新サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("統計更新スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("統計更新サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は更新期限を迎えた連携を1回取得し、並列で統計を再取得する。
// 個々の連携の取得失敗はサイクル全体を止めず、前回の統計が保持される。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	stale, err := s.bindings.ListVerifiedStale(ctx, start.Add(-s.staleTTL), s.batchLimit)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		s.logger.Info("更新対象の連携はありません")
		return nil
	}

	s.logger.Info("統計更新サイクルを開始します",
		slog.Int("binding_count", len(stale)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, binding := range stale {
		if err := s.pacer.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(b *model.PlatformBinding) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := s.refresher.RefreshStats(ctx, b.UserID, b.PlatformID); err != nil {
				s.logger.Warn("統計の再取得に失敗しました",
					slog.String("user_id", b.UserID),
					slog.String("platform", string(b.PlatformID)),
					slog.String("error", err.Error()),
				)
			}
		}(binding)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("統計更新サイクルが完了しました",
		slog.Int("binding_count", len(stale)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
