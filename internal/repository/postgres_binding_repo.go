package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/statly/internal/model"
)

// PostgresBindingRepo はPostgreSQLを使用したプラットフォーム束縛リポジトリ。
// 統計はJSONBカラムに格納する。列指向のクエリが不要で、
// プラットフォームごとのフィールド差異をスキーマ変更なしに吸収できる。
type PostgresBindingRepo struct {
	db *sql.DB
}

// NewPostgresBindingRepo はPostgresBindingRepoを生成する。
func NewPostgresBindingRepo(db *sql.DB) *PostgresBindingRepo {
	return &PostgresBindingRepo{db: db}
}

const bindingColumns = `id, user_id, platform, external_username, status,
	verification_code, stats, last_fetched_at, created_at, updated_at`

// FindByUserAndPlatform は指定ユーザー・プラットフォームの束縛を取得する。
// 見つからない場合はnilを返す。
func (r *PostgresBindingRepo) FindByUserAndPlatform(ctx context.Context, userID string, platform model.PlatformID) (*model.PlatformBinding, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bindingColumns+`
		 FROM platform_bindings
		 WHERE user_id = $1 AND platform = $2`,
		userID, platform,
	)

	binding, err := scanBinding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find binding: %w", err)
	}
	return binding, nil
}

// ListByUserID は指定ユーザーの全束縛をプラットフォーム名順で返す。
func (r *PostgresBindingRepo) ListByUserID(ctx context.Context, userID string) ([]*model.PlatformBinding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bindingColumns+`
		 FROM platform_bindings
		 WHERE user_id = $1
		 ORDER BY platform`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	defer rows.Close()

	return collectBindings(rows)
}

// Upsert は束縛を挿入または(userID, platform)キーで置換する。
// ON CONFLICTによる1行の原子的な書き込みのため、
// 並行する書き込みは行単位で後勝ちになり、部分更新は発生しない。
func (r *PostgresBindingRepo) Upsert(ctx context.Context, binding *model.PlatformBinding) error {
	statsJSON, err := marshalStats(binding.Stats)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO platform_bindings
		 (id, user_id, platform, external_username, status,
		  verification_code, stats, last_fetched_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id, platform) DO UPDATE SET
		   external_username = EXCLUDED.external_username,
		   status = EXCLUDED.status,
		   verification_code = EXCLUDED.verification_code,
		   stats = EXCLUDED.stats,
		   last_fetched_at = EXCLUDED.last_fetched_at,
		   updated_at = EXCLUDED.updated_at`,
		binding.ID, binding.UserID, binding.PlatformID, binding.ExternalUsername,
		binding.Status, binding.VerificationCode, statsJSON, binding.LastFetchedAt,
		binding.CreatedAt, binding.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert binding: %w", err)
	}
	return nil
}

// Delete は指定ユーザー・プラットフォームの束縛を削除する。
// 束縛が存在しなくてもエラーにしない（冪等）。
func (r *PostgresBindingRepo) Delete(ctx context.Context, userID string, platform model.PlatformID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM platform_bindings WHERE user_id = $1 AND platform = $2`,
		userID, platform,
	)
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	return nil
}

// ListVerifiedStale は検証済みかつ最終取得がolderThanより古い
// （または一度も取得されていない）束縛を最大limit件返す。
// 古いものから順に返すため、部分的な実行でも全束縛がいずれ更新される。
func (r *PostgresBindingRepo) ListVerifiedStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.PlatformBinding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bindingColumns+`
		 FROM platform_bindings
		 WHERE status = $1 AND (last_fetched_at IS NULL OR last_fetched_at < $2)
		 ORDER BY last_fetched_at ASC NULLS FIRST
		 LIMIT $3`,
		model.BindingStatusVerified, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale bindings: %w", err)
	}
	defer rows.Close()

	return collectBindings(rows)
}

// rowScanner はsql.Rowとsql.Rowsの共通走査インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBinding は1行をPlatformBindingに変換する。
func scanBinding(row rowScanner) (*model.PlatformBinding, error) {
	binding := &model.PlatformBinding{}
	var statsJSON []byte

	err := row.Scan(
		&binding.ID, &binding.UserID, &binding.PlatformID, &binding.ExternalUsername,
		&binding.Status, &binding.VerificationCode, &statsJSON, &binding.LastFetchedAt,
		&binding.CreatedAt, &binding.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(statsJSON) > 0 {
		stats := &model.PlatformStats{}
		if err := json.Unmarshal(statsJSON, stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
		binding.Stats = stats
	}
	return binding, nil
}

// collectBindings は全行をPlatformBindingのスライスに変換する。
func collectBindings(rows *sql.Rows) ([]*model.PlatformBinding, error) {
	var bindings []*model.PlatformBinding
	for rows.Next() {
		binding, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		bindings = append(bindings, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bindings: %w", err)
	}
	return bindings, nil
}

// marshalStats は統計をJSONB格納用のバイト列に変換する。nilはNULLになる。
func marshalStats(stats *model.PlatformStats) ([]byte, error) {
	if stats == nil {
		return nil, nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}
	return data, nil
}

// compile-time interface checks
var (
	_ UserRepository    = (*PostgresUserRepo)(nil)
	_ BindingRepository = (*PostgresBindingRepo)(nil)
)
