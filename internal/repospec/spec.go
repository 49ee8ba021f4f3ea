// Package repospec contains the pure helpers shared by every request path:
// embed-directive parsing, refresh-interval tokens, breadcrumb derivation and
// cache key construction. Nothing in this package performs I/O, so the parsing
// rules can be exercised exhaustively in tests and reused by both the config
// loader and the HTTP handlers.
package repospec

import (
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultRefresh 是未提供（或非法）刷新令牌时的兜底值。
	DefaultRefresh = 14400 * time.Second
	// MinRefresh 是允许的最小刷新间隔，避免对上游造成过高压力。
	MinRefresh = 600 * time.Second
)

// Spec 描述一个被镜像的远端仓库，按请求构造后不再修改。
type Spec struct {
	BaseURL string
	Refresh time.Duration
	Title   string
}

// Crumb 是面包屑中的一段；Prefix 为空表示当前位置，不渲染链接。
type Crumb struct {
	Label  string
	Prefix string
}

var refreshTokenPattern = regexp.MustCompile(`^(\d+)([dhm])$`)

var refreshUnitSeconds = map[string]int64{
	"d": 86400,
	"h": 3600,
	"m": 60,
}

// ParseDirective 解析嵌入指令正文，兼容带 {{repo>...}} 包装与裸正文两种写法：
//
//	{{repo>http://example.com/src/ 2d Some Title|Override Title}}
//
// 第一个空白分隔的令牌是 BaseURL；其余令牌中最后一个匹配 <digits><d|h|m> 的
// 作为刷新间隔，剩余部分拼成标题；竖线之后的覆盖标题优先生效。
// 非法刷新令牌静默回退到默认值，从不向调用方报错。
func ParseDirective(raw string) Spec {
	return ParseDirectiveWithDefault(raw, DefaultRefresh)
}

// ParseDirectiveWithDefault 同 ParseDirective，但缺失刷新令牌时回退到
// fallback；fallback 非正时仍使用包级默认值。
func ParseDirectiveWithDefault(raw string, fallback time.Duration) Spec {
	if fallback <= 0 {
		fallback = DefaultRefresh
	}

	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "{{")
	body = strings.TrimSuffix(body, "}}")
	if idx := strings.Index(body, ">"); idx >= 0 && strings.EqualFold(strings.TrimSpace(body[:idx]), "repo") {
		body = body[idx+1:]
	}

	main := body
	override := ""
	if idx := strings.Index(body, "|"); idx >= 0 {
		main = body[:idx]
		override = strings.TrimSpace(body[idx+1:])
	}

	spec := Spec{Refresh: fallback}

	tokens := strings.Fields(main)
	if len(tokens) == 0 {
		if override != "" {
			spec.Title = override
		}
		return spec
	}

	spec.BaseURL = tokens[0]
	rest := tokens[1:]

	refreshIdx := -1
	for i := len(rest) - 1; i >= 0; i-- {
		if refreshTokenPattern.MatchString(rest[i]) {
			refreshIdx = i
			break
		}
	}
	if refreshIdx >= 0 {
		spec.Refresh = ParseRefresh(rest[refreshIdx])
		rest = append(append([]string(nil), rest[:refreshIdx]...), rest[refreshIdx+1:]...)
	}

	spec.Title = strings.Join(rest, " ")
	if override != "" {
		spec.Title = override
	}
	return spec
}

// ParseRefresh 将 <digits><d|h|m> 令牌换算为秒；结果不低于 MinRefresh，
// 无法识别的令牌回退到 DefaultRefresh。超出 Duration 表达范围的数值
// 饱和在最大可表示的秒数上，不允许乘法回绕。
func ParseRefresh(token string) time.Duration {
	return ParseRefreshWithDefault(token, DefaultRefresh)
}

// ParseRefreshWithDefault 同 ParseRefresh，但非法令牌回退到 fallback。
func ParseRefreshWithDefault(token string, fallback time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = DefaultRefresh
	}
	m := refreshTokenPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return fallback
	}

	unit := refreshUnitSeconds[m[2]]
	maxSeconds := int64(math.MaxInt64) / int64(time.Second)

	var n int64
	for _, ch := range m[1] {
		n = n*10 + int64(ch-'0')
		if n > maxSeconds/unit {
			return time.Duration(maxSeconds) * time.Second
		}
	}

	d := time.Duration(n*unit) * time.Second
	if d < MinRefresh {
		return MinRefresh
	}
	return d
}

// Breadcrumbs 将相对路径拆成面包屑；最后一段是当前位置，Prefix 留空。
// 中间段的 Prefix 带有结尾分隔符，可直接作为目录查询参数复用。
func Breadcrumbs(path string) []Crumb {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}

	crumbs := make([]Crumb, 0, len(segments))
	prefix := ""
	for i, seg := range segments {
		prefix += seg + "/"
		if i == len(segments)-1 {
			crumbs = append(crumbs, Crumb{Label: seg})
			continue
		}
		crumbs = append(crumbs, Crumb{Label: seg, Prefix: prefix})
	}
	return crumbs
}

// IsDirectory 判断路径是否指向目录：空路径代表仓库根，同样按目录处理。
func IsDirectory(path string) bool {
	return path == "" || strings.HasSuffix(path, "/")
}

// ListingKey 派生目录列表的缓存键。目录与文件使用不同的命名空间存储，
// 因此即便展示路径相同也不会互相碰撞。
func ListingKey(baseURL, path string) string {
	return baseURL + path
}

// FileKey 派生高亮结果的缓存键，直接使用文件的绝对 URL。
func FileKey(url string) string {
	return url
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
