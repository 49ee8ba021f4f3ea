package render

import (
	"strings"
	"testing"

	"github.com/tryweb/plugin-repo/internal/crawler"
	"github.com/tryweb/plugin-repo/internal/repospec"
)

func TestPageRendersNestedTree(t *testing.T) {
	page := NewHTML().Page(PageView{
		RepoName: "demo",
		Title:    "Demo",
		Tree: []crawler.TreeNode{
			{Path: "a/", Kind: crawler.KindDirectory, Depth: 1, Expanded: true},
			{Path: "a/b/", Kind: crawler.KindDirectory, Depth: 2, Expanded: true},
			{Path: "a/b/file.py", Kind: crawler.KindFile, Depth: 3},
			{Path: "readme.txt", Kind: crawler.KindFile, Depth: 1},
		},
	})

	if strings.Count(page, "<ul>") != 3 || strings.Count(page, "</ul>") != 3 {
		t.Fatalf("深度 1-3 应产生三层嵌套列表:\n%s", page)
	}
	if !strings.Contains(page, `href="/repo/demo?path=a%2Fb%2Ffile.py"`) {
		t.Fatalf("文件链接应携带转义后的 path 参数:\n%s", page)
	}
	if !strings.Contains(page, ">file.py<") {
		t.Fatal("展示名应为路径最后一段")
	}
	if !strings.Contains(page, ">b/<") {
		t.Fatal("目录展示名应保留尾斜杠")
	}
	// 深度回落后 readme.txt 必须出现在最外层列表
	if strings.Index(page, "readme.txt") < strings.Index(page, "file.py") {
		t.Fatal("文档顺序必须保持")
	}
}

func TestPageRendersBreadcrumbs(t *testing.T) {
	page := NewHTML().Page(PageView{
		RepoName: "demo",
		Title:    "Demo",
		Crumbs:   repospec.Breadcrumbs("a/b/file.py"),
		CodeHTML: "<pre>x</pre>",
		RawURL:   "http://x/repo/a/b/file.py",
	})

	if !strings.Contains(page, `<a href="/repo/demo?path=a%2F">a</a>`) {
		t.Fatalf("中间段应渲染为累计前缀链接:\n%s", page)
	}
	if strings.Contains(page, `>file.py</a>`) {
		t.Fatal("最后一段不应渲染为链接")
	}
	if !strings.Contains(page, `href="http://x/repo/a/b/file.py"`) {
		t.Fatal("应包含指向上游原始文件的外链")
	}
}

func TestPageEscapesUntrustedText(t *testing.T) {
	page := NewHTML().Page(PageView{
		RepoName: "demo",
		Title:    `<script>alert(1)</script>`,
		Tree: []crawler.TreeNode{
			{Path: `<img src=x>`, Kind: crawler.KindFile, Depth: 1},
		},
	})
	if strings.Contains(page, "<script>") || strings.Contains(page, "<img") {
		t.Fatalf("不可信文本必须转义:\n%s", page)
	}
}

func TestPagePlacesHighlightedFragmentVerbatim(t *testing.T) {
	fragment := `<pre class="chroma"><span>def</span></pre>`
	page := NewHTML().Page(PageView{RepoName: "demo", Title: "T", CodeHTML: fragment})
	if !strings.Contains(page, fragment) {
		t.Fatal("高亮片段应按原样放置")
	}
}

func TestPageInlineError(t *testing.T) {
	page := NewHTML().Page(PageView{
		RepoName:     "demo",
		Title:        "T",
		ErrorMessage: "could not fetch http://x/repo/a.py",
	})
	if !strings.Contains(page, `class="repo-error"`) {
		t.Fatal("失败应渲染为行内错误片段")
	}
	if !strings.Contains(page, "</html>") {
		t.Fatal("错误页仍应是完整文档")
	}
}

func TestPageEmptyTree(t *testing.T) {
	page := NewHTML().Page(PageView{RepoName: "demo", Title: "T"})
	if !strings.Contains(page, "repo-empty") {
		t.Fatal("空树应有占位提示")
	}
}
