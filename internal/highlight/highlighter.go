// Package highlight defines the syntax-highlighting capability consumed by the
// mirror engine. The engine only depends on the narrow Highlighter interface;
// the chroma-backed default lives alongside it. Language selection is a static
// extension mapping, never content sniffing.
package highlight

import (
	"strings"
	"time"
)

// Highlighter 将源码字节渲染为 HTML 片段。RulesLastModified 暴露规则集的
// 最后修改时间：规则更新后，所有早于该时间写入的高亮缓存一律作废。
type Highlighter interface {
	Render(source []byte, languageHint string) (string, error)
	RulesLastModified() time.Time
}

// LanguageHint 从 URL 的文件扩展名推导高亮语言。规则刻意保持很小：
// htm 开头的扩展名归为 HTML 模式，js 归为 javascript，其余扩展名
// 一律小写后原样透传（例如 .py -> "py"）。
func LanguageHint(url string) string {
	name := url
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}

	ext := strings.ToLower(name[idx+1:])
	switch {
	case strings.HasPrefix(ext, "htm"):
		return "html4strict"
	case ext == "js":
		return "javascript"
	default:
		return ext
	}
}
