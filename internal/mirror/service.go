// Package mirror implements the cache-coherent engine: it decides when a
// cached artifact is fresh enough to reuse, reconstructs directory trees
// through the crawler, and produces highlighted file output through the
// Highlighter capability. Listings and highlights live in disjoint cache
// namespaces and never share keys. Storage failures degrade to cache misses;
// an upstream failure never corrupts previously-cached state.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/tryweb/plugin-repo/internal/cache"
	"github.com/tryweb/plugin-repo/internal/crawler"
	"github.com/tryweb/plugin-repo/internal/fetch"
	"github.com/tryweb/plugin-repo/internal/highlight"
	"github.com/tryweb/plugin-repo/internal/metrics"
	"github.com/tryweb/plugin-repo/internal/repospec"
)

// RenderErrorKind 区分文件渲染失败的类别。
type RenderErrorKind string

const (
	RenderFetchFailed        RenderErrorKind = "fetch_failed"
	RenderHighlighterFailure RenderErrorKind = "highlighter_failure"
)

// RenderError 表示单个文件渲染失败；呈现层将其转为页面内的行内错误片段，
// 而不是整页失败。
type RenderError struct {
	Kind RenderErrorKind
	URL  string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ListingRequest 描述一次目录列表请求。
type ListingRequest struct {
	Repo  repospec.Spec
	Path  string
	Purge bool
}

// ListingResult 携带有序节点序列及缓存命中信息。
type ListingResult struct {
	Nodes     []crawler.TreeNode
	FromCache bool
	WrittenAt time.Time
}

// FileRequest 描述一次文件高亮请求。
type FileRequest struct {
	Repo  repospec.Spec
	Path  string
	Purge bool
}

// FileResult 携带高亮后的 HTML 与来源 URL。
type FileResult struct {
	HTML      string
	URL       string
	FromCache bool
	WrittenAt time.Time
}

// Service 组合存储、抓取、爬取与高亮能力。同一实例可安全并发使用。
type Service struct {
	store       cache.Store
	fetcher     fetch.Fetcher
	crawler     *crawler.Crawler
	highlighter highlight.Highlighter
	logger      *logrus.Logger

	listingGroup singleflight.Group
	fileGroup    singleflight.Group

	now func() time.Time
}

// New 构造镜像服务，默认以 time.Now 为时钟；包内测试可直接替换 now。
func New(store cache.Store, fetcher fetch.Fetcher, cr *crawler.Crawler, hl highlight.Highlighter, logger *logrus.Logger) *Service {
	return &Service{
		store:       store,
		fetcher:     fetcher,
		crawler:     cr,
		highlighter: hl,
		logger:      logger,
		now:         time.Now,
	}
}

// Listing 返回请求路径对应的目录树。刷新窗口内直接复用缓存的节点序列；
// 过期或 purge 时重新爬取并整体覆盖缓存。根列表抓取失败时优先回退到
// 既有缓存（含过期副本），仅在完全无缓存时返回空树。
func (s *Service) Listing(ctx context.Context, req ListingRequest) (ListingResult, error) {
	started := s.now()
	locator := cache.Locator{
		Namespace: cache.NamespaceListing,
		Key:       repospec.ListingKey(req.Repo.BaseURL, req.Path),
	}

	cached := s.lookup(ctx, locator, req.Repo.Refresh, time.Time{}, req.Purge)
	if cached != nil && cached.fresh {
		if nodes, err := decodeNodes(cached.payload); err == nil {
			metrics.RecordRenderDuration("listing", s.now().Sub(started))
			return ListingResult{Nodes: nodes, FromCache: true, WrittenAt: cached.writtenAt}, nil
		}
		// 反序列化失败按 miss 处理，后续写入会整体覆盖坏条目
		s.warnStorage(locator, errors.New("undecodable listing payload"))
	}

	value, err, _ := s.listingGroup.Do(locator.Key, func() (interface{}, error) {
		nodes, err := s.crawler.Crawl(ctx, req.Repo.BaseURL, req.Path)
		if err != nil {
			metrics.RecordUpstreamFetch(fetchOutcome(err))
			return nil, err
		}
		metrics.RecordUpstreamFetch("ok")
		metrics.RecordCrawlNodes(len(nodes))

		if payload, err := json.Marshal(nodes); err == nil {
			if _, putErr := s.store.Put(ctx, locator, payload, cache.PutOptions{WrittenAt: s.now()}); putErr != nil {
				// 写入失败只损失缓存，不影响本次结果
				s.warnStorage(locator, putErr)
			}
		}
		return nodes, nil
	})
	if err != nil {
		// 根列表抓取失败：有旧副本（即便过期）就回退，维持"窄于请求的结果"
		if cached != nil && !req.Purge {
			if nodes, decErr := decodeNodes(cached.payload); decErr == nil {
				s.warnFallback(locator, err)
				return ListingResult{Nodes: nodes, FromCache: true, WrittenAt: cached.writtenAt}, nil
			}
		}
		s.warnFallback(locator, err)
		return ListingResult{Nodes: []crawler.TreeNode{}}, nil
	}

	nodes := value.([]crawler.TreeNode)
	metrics.RecordRenderDuration("listing", s.now().Sub(started))
	return ListingResult{Nodes: nodes, WrittenAt: s.now()}, nil
}

// File 返回文件的高亮 HTML。额外的失效时间来自高亮规则集的修改时间：
// 规则更新后，刷新窗口内的旧缓存同样作废。抓取失败返回 RenderError，
// 失败结果从不写入缓存。
func (s *Service) File(ctx context.Context, req FileRequest) (FileResult, error) {
	started := s.now()
	url := req.Repo.BaseURL + req.Path
	locator := cache.Locator{
		Namespace: cache.NamespaceHighlight,
		Key:       repospec.FileKey(url),
	}

	cached := s.lookup(ctx, locator, req.Repo.Refresh, s.highlighter.RulesLastModified(), req.Purge)
	if cached != nil && cached.fresh {
		metrics.RecordRenderDuration("file", s.now().Sub(started))
		return FileResult{HTML: string(cached.payload), URL: url, FromCache: true, WrittenAt: cached.writtenAt}, nil
	}

	value, err, _ := s.fileGroup.Do(locator.Key, func() (interface{}, error) {
		source, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			metrics.RecordUpstreamFetch(fetchOutcome(err))
			return nil, &RenderError{Kind: RenderFetchFailed, URL: url, Err: err}
		}
		metrics.RecordUpstreamFetch("ok")

		rendered, err := s.highlighter.Render(source, highlight.LanguageHint(url))
		if err != nil {
			return nil, &RenderError{Kind: RenderHighlighterFailure, URL: url, Err: err}
		}

		if _, putErr := s.store.Put(ctx, locator, []byte(rendered), cache.PutOptions{WrittenAt: s.now()}); putErr != nil {
			s.warnStorage(locator, putErr)
		}
		return rendered, nil
	})
	if err != nil {
		return FileResult{URL: url}, err
	}

	metrics.RecordRenderDuration("file", s.now().Sub(started))
	return FileResult{HTML: value.(string), URL: url, WrittenAt: s.now()}, nil
}

type lookupResult struct {
	payload   []byte
	writtenAt time.Time
	fresh     bool
}

// lookup 读取缓存并执行新鲜度判定。存储故障一律降级为 miss。
func (s *Service) lookup(ctx context.Context, locator cache.Locator, refresh time.Duration, invalidatedAfter time.Time, purge bool) *lookupResult {
	result, err := s.store.Get(ctx, locator)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			metrics.RecordCacheLookup(locator.Namespace, metrics.OutcomeMiss)
			return nil
		}
		s.warnStorage(locator, err)
		metrics.RecordCacheLookup(locator.Namespace, metrics.OutcomeError)
		return nil
	}

	fresh := cache.FreshAt(s.now(), result.Entry.WrittenAt, refresh, invalidatedAfter, purge)
	switch {
	case fresh:
		metrics.RecordCacheLookup(locator.Namespace, metrics.OutcomeHit)
	case purge:
		metrics.RecordCacheLookup(locator.Namespace, metrics.OutcomePurged)
	default:
		metrics.RecordCacheLookup(locator.Namespace, metrics.OutcomeStale)
	}

	return &lookupResult{
		payload:   result.Payload,
		writtenAt: result.Entry.WrittenAt,
		fresh:     fresh,
	}
}

func (s *Service) warnStorage(locator cache.Locator, err error) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"action":    "cache_degraded",
		"namespace": locator.Namespace,
		"key":       locator.Key,
	}).Warn(err.Error())
}

func (s *Service) warnFallback(locator cache.Locator, err error) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"action":    "listing_fallback",
		"namespace": locator.Namespace,
		"key":       locator.Key,
	}).Warn(err.Error())
}

func decodeNodes(payload []byte) ([]crawler.TreeNode, error) {
	var nodes []crawler.TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func fetchOutcome(err error) string {
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return string(fetch.ErrorKindNetwork)
}
