package provider

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/hitoshi/statly/internal/model"
	"github.com/hitoshi/statly/internal/security"
)

// Registry はプラットフォームIDからアダプタを解決するレジストリ。
// 登録は起動時に固定され、以降は読み取り専用なのでロック不要。
type Registry struct {
	adapters map[model.PlatformID]Adapter
}

// NewRegistry は指定されたアダプタ群を登録したRegistryを生成する。
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[model.PlatformID]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.PlatformID()] = a
	}
	return &Registry{adapters: m}
}

// NewDefaultRegistry は対応する全プラットフォームのアダプタを登録した
// Registryを生成する。guardは全アダプタの送信前URL検証に共有される。
// apiUserAgentはAPI呼び出し用、scrapeUserAgentはスクレイピング用の
// User-Agentヘッダに使用される。
func NewDefaultRegistry(
	httpClient *http.Client,
	logger *slog.Logger,
	guard URLValidator,
	sanitizer security.ProfileSanitizerService,
	apiUserAgent string,
	scrapeUserAgent string,
) *Registry {
	return NewRegistry(
		NewCodeforcesAdapter(httpClient, logger, guard, apiUserAgent),
		NewGitHubAdapter(httpClient, logger, guard, apiUserAgent),
		NewLeetCodeAdapter(httpClient, logger, guard, apiUserAgent),
		NewCodeChefAdapter(httpClient, logger, guard, sanitizer, scrapeUserAgent),
		NewGeeksforGeeksAdapter(httpClient, logger, guard, sanitizer, scrapeUserAgent),
	)
}

// Resolve はプラットフォームIDに対応するアダプタを返す。
// 未登録のIDの場合はUnsupportedPlatformエラーを返す。
// 全エントリポイントはネットワーク呼び出しの前にこの解決を行う。
func (r *Registry) Resolve(id model.PlatformID) (Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, model.NewUnsupportedPlatformError(string(id))
	}
	return a, nil
}

// Supported は登録済みプラットフォームIDの一覧をソート順で返す。
func (r *Registry) Supported() []model.PlatformID {
	ids := make([]model.PlatformID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
