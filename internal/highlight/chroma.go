package highlight

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// NewChroma 构造 chroma 后端的 Highlighter。规则集随二进制编译分发，
// 因此 RulesLastModified 取可执行文件的修改时间：升级二进制即作废全部
// 历史高亮缓存。styleName 为空时使用 github 配色。
func NewChroma(styleName string) Highlighter {
	if styleName == "" {
		styleName = "github"
	}
	return &chromaHighlighter{
		styleName: styleName,
		rulesMod:  executableModTime(),
	}
}

type chromaHighlighter struct {
	styleName string
	rulesMod  time.Time
}

// hintAliases 将历史上沿用的 GeSHi 风格语言名映射到 chroma 的词法器名。
var hintAliases = map[string]string{
	"html4strict": "html",
}

func (h *chromaHighlighter) Render(source []byte, languageHint string) (string, error) {
	lexer := resolveLexer(languageHint)
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(h.styleName)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, string(source))
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}

	formatter := html.New(
		html.WithClasses(false),
		html.WithLineNumbers(true),
	)

	var sb strings.Builder
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return sb.String(), nil
}

func (h *chromaHighlighter) RulesLastModified() time.Time {
	return h.rulesMod
}

func resolveLexer(hint string) chroma.Lexer {
	if alias, ok := hintAliases[hint]; ok {
		hint = alias
	}
	if hint != "" {
		if lexer := lexers.Get(hint); lexer != nil {
			return lexer
		}
	}
	return lexers.Fallback
}

func executableModTime() time.Time {
	exe, err := os.Executable()
	if err != nil {
		return time.Time{}
	}
	info, err := os.Stat(exe)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
