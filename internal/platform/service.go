package platform

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/statly/internal/metrics"
	"github.com/hitoshi/statly/internal/model"
	"github.com/hitoshi/statly/internal/provider"
	"github.com/hitoshi/statly/internal/repository"
)

// AdapterResolver はアダプタ解決のインターフェース。
// provider.Registryを抽象化してテスタビリティを向上させる。
type AdapterResolver interface {
	Resolve(id model.PlatformID) (provider.Adapter, error)
	Supported() []model.PlatformID
}

// externalUsernamePattern は外部アカウント名として許容する形式。
// アカウント名は上流URLに埋め込まれるため、パス・クエリを壊す文字を拒否する。
var externalUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,98}$`)

// Service はプラットフォーム連携のサービス層。
// 検証状態機械（未連携→検証待ち→検証済み）の全遷移と、
// 検証済み束縛の統計更新・切断を提供する。
//
// 全操作はネットワーク呼び出しの前にアダプタ解決を行い、
// 未対応プラットフォームを早期に弾く。
type Service struct {
	registry    AdapterResolver
	userRepo    repository.UserRepository
	bindingRepo repository.BindingRepository
	collector   metrics.MetricsCollector
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	registry AdapterResolver,
	userRepo repository.UserRepository,
	bindingRepo repository.BindingRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		registry:    registry,
		userRepo:    userRepo,
		bindingRepo: bindingRepo,
		collector:   collector,
		logger:      logger,
	}
}

// SupportedPlatforms は対応プラットフォームの一覧を返す。
func (s *Service) SupportedPlatforms() []model.PlatformID {
	return s.registry.Supported()
}

// ListBindings はユーザーの全束縛をプラットフォーム名順で返す。
func (s *Service) ListBindings(ctx context.Context, userID string) ([]*model.PlatformBinding, error) {
	bindings, err := s.bindingRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewPersistenceError(err.Error())
	}
	return bindings, nil
}

// StartVerification は(ユーザー, プラットフォーム)の検証を開始する。
// 新しい検証コードを発行し、検証待ち状態の束縛を作成または置換して
// コードを返す。既存の束縛（検証待ち・検証済みを問わず）は上書きされる。
func (s *Service) StartVerification(ctx context.Context, userID string, platformID model.PlatformID, externalUsername string) (string, error) {
	// アダプタ解決を最初に行い、未対応プラットフォームを早期に弾く
	if _, err := s.registry.Resolve(platformID); err != nil {
		return "", err
	}

	if !externalUsernamePattern.MatchString(externalUsername) {
		return "", model.NewInvalidExternalUsernameError(externalUsername)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", model.NewPersistenceError(err.Error())
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	existing, err := s.bindingRepo.FindByUserAndPlatform(ctx, userID, platformID)
	if err != nil {
		return "", model.NewPersistenceError(err.Error())
	}

	code := GenerateVerificationCode()
	now := time.Now()
	binding := &model.PlatformBinding{
		ID:               uuid.New().String(),
		UserID:           userID,
		PlatformID:       platformID,
		ExternalUsername: externalUsername,
		Status:           model.BindingStatusPending,
		VerificationCode: code,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if existing != nil {
		binding.ID = existing.ID
		binding.CreatedAt = existing.CreatedAt
	}

	if err := s.bindingRepo.Upsert(ctx, binding); err != nil {
		return "", model.NewPersistenceError(err.Error())
	}

	s.logger.Info("検証を開始しました",
		slog.String("user_id", userID),
		slog.String("platform", string(platformID)),
		slog.String("external_username", externalUsername),
	)
	return code, nil
}

// CompleteVerification は検証待ち束縛の所有権確認と初回統計取得を行う。
// 所有権が確認できた場合のみ検証済みへ遷移し、コードを消去して統計を保存する。
// 確認できなかった場合は束縛を検証待ちのまま維持する（コードも保持されるため、
// プロフィール反映を待って同じコードで再試行できる）。
func (s *Service) CompleteVerification(ctx context.Context, userID string, platformID model.PlatformID) (*model.PlatformBinding, error) {
	adapter, err := s.registry.Resolve(platformID)
	if err != nil {
		return nil, err
	}

	binding, err := s.bindingRepo.FindByUserAndPlatform(ctx, userID, platformID)
	if err != nil {
		return nil, model.NewPersistenceError(err.Error())
	}
	if binding == nil || binding.Status != model.BindingStatusPending {
		return nil, model.NewVerificationNotStartedError(string(platformID))
	}

	owned, err := adapter.CheckOwnership(ctx, binding.ExternalUsername, binding.VerificationCode)
	if err != nil {
		s.collector.RecordVerification(string(platformID), metrics.VerificationResultError)
		return nil, err
	}
	if !owned {
		s.collector.RecordVerification(string(platformID), metrics.VerificationResultMismatch)
		return nil, model.NewVerificationMismatchError(string(platformID))
	}

	stats, err := s.fetchNormalized(ctx, adapter, binding.ExternalUsername)
	if err != nil {
		s.collector.RecordVerification(string(platformID), metrics.VerificationResultError)
		return nil, err
	}

	now := time.Now()
	binding.Status = model.BindingStatusVerified
	binding.VerificationCode = ""
	binding.Stats = stats
	binding.LastFetchedAt = &now
	binding.UpdatedAt = now

	if err := s.bindingRepo.Upsert(ctx, binding); err != nil {
		// 永続化失敗時は遷移しない。DB上の束縛は検証待ちのまま残る。
		s.collector.RecordVerification(string(platformID), metrics.VerificationResultError)
		return nil, model.NewPersistenceError(err.Error())
	}

	s.collector.RecordVerification(string(platformID), metrics.VerificationResultSuccess)
	s.logger.Info("検証が完了しました",
		slog.String("user_id", userID),
		slog.String("platform", string(platformID)),
	)
	return binding, nil
}

// RefreshStats は検証済み束縛の統計を再取得して置き換える。
// 取得または保存に失敗した場合は前回の統計がそのまま残る。
func (s *Service) RefreshStats(ctx context.Context, userID string, platformID model.PlatformID) (*model.PlatformBinding, error) {
	adapter, err := s.registry.Resolve(platformID)
	if err != nil {
		return nil, err
	}

	binding, err := s.bindingRepo.FindByUserAndPlatform(ctx, userID, platformID)
	if err != nil {
		return nil, model.NewPersistenceError(err.Error())
	}
	if binding == nil || binding.Status != model.BindingStatusVerified {
		return nil, model.NewPlatformNotVerifiedError(string(platformID))
	}

	stats, err := s.fetchNormalized(ctx, adapter, binding.ExternalUsername)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	binding.Stats = stats
	binding.LastFetchedAt = &now
	binding.UpdatedAt = now

	if err := s.bindingRepo.Upsert(ctx, binding); err != nil {
		return nil, model.NewPersistenceError(err.Error())
	}
	return binding, nil
}

// Disconnect は束縛を削除して未連携状態に戻す。
// 束縛が存在しない場合も成功として扱う（冪等）。
func (s *Service) Disconnect(ctx context.Context, userID string, platformID model.PlatformID) error {
	if _, err := s.registry.Resolve(platformID); err != nil {
		return err
	}

	if err := s.bindingRepo.Delete(ctx, userID, platformID); err != nil {
		return model.NewPersistenceError(err.Error())
	}

	s.logger.Info("連携を解除しました",
		slog.String("user_id", userID),
		slog.String("platform", string(platformID)),
	)
	return nil
}

// fetchNormalized はアダプタで統計を取得し、正規化して返す。
// レイテンシと成否をメトリクスに記録する。
func (s *Service) fetchNormalized(ctx context.Context, adapter provider.Adapter, externalUsername string) (*model.PlatformStats, error) {
	platformName := string(adapter.PlatformID())

	start := time.Now()
	raw, err := adapter.FetchStats(ctx, externalUsername)
	s.collector.RecordUpstreamLatency(time.Since(start))

	if err != nil {
		s.collector.RecordFetchFailure(platformName)
		s.logger.Warn("統計の取得に失敗しました",
			slog.String("platform", platformName),
			slog.String("external_username", externalUsername),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.collector.RecordFetchSuccess(platformName)
	return Normalize(raw), nil
}
