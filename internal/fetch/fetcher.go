// Package fetch wraps upstream HTTP access behind a single bounded-timeout
// operation returning raw bytes or a typed failure. Retry policy is explicitly
// the caller's concern; this layer never retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout 是单次抓取的默认时间预算，递归爬取同样逐次受限。
const DefaultTimeout = 25 * time.Second

// ErrorKind 区分抓取失败的类别，便于调用方分级处理与打点。
type ErrorKind string

const (
	ErrorKindTimeout ErrorKind = "timeout"
	ErrorKindStatus  ErrorKind = "status"
	ErrorKindNetwork ErrorKind = "network"
)

// FetchError 携带失败类别与（状态类失败时的）HTTP 状态码。
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case ErrorKindStatus:
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher 抽象一次有界超时的 GET，镜像引擎的两条管线都依赖它。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// New 构造基于共享 Transport 的 Fetcher；timeout 非正时使用 DefaultTimeout。
func New(timeout time.Duration) Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &httpFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport.Clone(),
		},
	}
}

// NewWithClient 允许测试注入自定义 http.Client。
func NewWithClient(client *http.Client) Fetcher {
	return &httpFetcher{client: client}
}

type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrorKindNetwork, URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: ErrorKindStatus, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	return body, nil
}

func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTimeout
	}
	return ErrorKindNetwork
}
