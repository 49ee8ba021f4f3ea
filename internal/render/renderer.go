// Package render turns computed mirror results into HTML. The engine never
// decides markup: it hands a fully-computed view (tree nodes, highlighted
// fragment, breadcrumbs, optional inline error) to a PageRenderer and places
// the returned document. The default renderer produces a self-contained page;
// embedders can substitute their own implementation.
package render

import (
	"html"
	"net/url"
	"strings"

	"github.com/tryweb/plugin-repo/internal/crawler"
	"github.com/tryweb/plugin-repo/internal/repospec"
)

// PageView 是渲染一页所需的全部预计算内容。Tree 与 CodeHTML 互斥：
// 目录请求填 Tree，文件请求填 CodeHTML/RawURL，失败时填 ErrorMessage。
type PageView struct {
	RepoName string
	Title    string
	Crumbs   []repospec.Crumb

	Tree []crawler.TreeNode

	CodeHTML string
	RawURL   string

	ErrorMessage string
}

// PageRenderer 将视图渲染为完整 HTML 文档。实现只做排版，不做计算。
type PageRenderer interface {
	Page(view PageView) string
}

// NewHTML 返回默认的独立页面渲染器。
func NewHTML() PageRenderer {
	return htmlRenderer{}
}

type htmlRenderer struct{}

func (htmlRenderer) Page(view PageView) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	sb.WriteString(html.EscapeString(view.Title))
	sb.WriteString("</title></head>\n<body>\n")

	sb.WriteString("<h1>")
	sb.WriteString(html.EscapeString(view.Title))
	sb.WriteString("</h1>\n")

	writeBreadcrumbs(&sb, view)

	switch {
	case view.ErrorMessage != "":
		// 行内错误片段：页面整体仍然成功返回
		sb.WriteString("<p class=\"repo-error\">")
		sb.WriteString(html.EscapeString(view.ErrorMessage))
		sb.WriteString("</p>\n")
	case view.CodeHTML != "":
		writeCode(&sb, view)
	default:
		writeTree(&sb, view)
	}

	sb.WriteString("</body></html>\n")
	return sb.String()
}

func writeBreadcrumbs(sb *strings.Builder, view PageView) {
	if len(view.Crumbs) == 0 {
		return
	}
	sb.WriteString("<p class=\"repo-crumbs\">")
	sb.WriteString("<a href=\"" + pageLink(view.RepoName, "") + "\">root</a>")
	for _, crumb := range view.Crumbs {
		sb.WriteString(" / ")
		if crumb.Prefix == "" {
			// 最后一段是当前位置，不渲染链接
			sb.WriteString(html.EscapeString(crumb.Label))
			continue
		}
		sb.WriteString("<a href=\"" + pageLink(view.RepoName, crumb.Prefix) + "\">")
		sb.WriteString(html.EscapeString(crumb.Label))
		sb.WriteString("</a>")
	}
	sb.WriteString("</p>\n")
}

// writeTree 按节点深度嵌套 <ul>，保持爬取到的文档顺序。
func writeTree(sb *strings.Builder, view PageView) {
	if len(view.Tree) == 0 {
		sb.WriteString("<p class=\"repo-empty\">(empty)</p>\n")
		return
	}

	depth := 0
	for _, node := range view.Tree {
		for depth < node.Depth {
			sb.WriteString("<ul>\n")
			depth++
		}
		for depth > node.Depth {
			sb.WriteString("</ul>\n")
			depth--
		}

		label := nodeLabel(node)
		sb.WriteString("<li class=\"" + string(node.Kind) + "\">")
		sb.WriteString("<a href=\"" + pageLink(view.RepoName, node.Path) + "\">")
		sb.WriteString(html.EscapeString(label))
		sb.WriteString("</a></li>\n")
	}
	for depth > 0 {
		sb.WriteString("</ul>\n")
		depth--
	}
}

func writeCode(sb *strings.Builder, view PageView) {
	sb.WriteString("<div class=\"repo-code\">\n")
	sb.WriteString(view.CodeHTML) // 已由高亮器产出，按原样放置
	sb.WriteString("\n</div>\n")
	if view.RawURL != "" {
		sb.WriteString("<p><a href=\"" + html.EscapeString(view.RawURL) + "\" rel=\"nofollow\">raw</a></p>\n")
	}
}

// nodeLabel 取路径的最后一段作为展示名，目录保留尾斜杠。
func nodeLabel(node crawler.TreeNode) string {
	p := node.Path
	trailing := strings.HasSuffix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		p = p[idx+1:]
	}
	if trailing {
		p += "/"
	}
	return p
}

func pageLink(repoName, path string) string {
	link := "/repo/" + url.PathEscape(repoName)
	if path != "" {
		link += "?path=" + url.QueryEscape(path)
	}
	return link
}
