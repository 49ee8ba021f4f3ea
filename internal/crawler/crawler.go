// Package crawler reconstructs a directory tree from remote HTTP index pages.
// Each listing page is parsed for anchors inside list items; entries with a
// trailing slash are directories. The crawl descends depth-first, but only
// into directories lying on the path to the requested target, so the total
// number of upstream fetches is bounded by the target path length. A fetch
// failure below the root contributes an empty subtree instead of failing the
// whole crawl, keeping sibling entries visible.
package crawler

import (
	"bytes"
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/tryweb/plugin-repo/internal/fetch"
)

// DefaultMaxDepth 是递归深度上限的默认值，防御自引用或病态的远端列表。
const DefaultMaxDepth = 64

// Kind 区分树节点类型，序列化进缓存后供渲染层使用。
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "dir"
)

// TreeNode 是一次爬取输出的节点。Path 为相对仓库根的路径（目录带尾斜杠），
// Depth 从 1 开始，Expanded 仅对位于目标路径前缀上的目录为真。
type TreeNode struct {
	Path     string `json:"path"`
	Kind     Kind   `json:"kind"`
	Depth    int    `json:"depth"`
	Expanded bool   `json:"expanded"`
}

// Crawler 组合抓取器与深度上限。同一实例可安全并发使用。
type Crawler struct {
	fetcher  fetch.Fetcher
	logger   *logrus.Logger
	maxDepth int
}

// New 构造 Crawler；maxDepth 非正时使用 DefaultMaxDepth。
func New(fetcher fetch.Fetcher, logger *logrus.Logger, maxDepth int) *Crawler {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Crawler{
		fetcher:  fetcher,
		logger:   logger,
		maxDepth: maxDepth,
	}
}

// Crawl 以 baseURL 为根构建有序节点序列，沿 targetPath 的每一级祖先目录
// 预展开。仅当根列表本身抓取失败时返回错误（调用方据此跳过缓存写入）；
// 更深层的失败被就地吸收为空子树。
func (c *Crawler) Crawl(ctx context.Context, baseURL, targetPath string) ([]TreeNode, error) {
	body, err := c.fetcher.Fetch(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	return c.expand(ctx, baseURL, targetPath, "", body, 1), nil
}

// expand 解析一页列表并递归展开前缀目录，节点顺序遵循文档顺序。
func (c *Crawler) expand(ctx context.Context, baseURL, targetPath, prefix string, body []byte, depth int) []TreeNode {
	nodes := []TreeNode{}
	for _, entry := range parseListing(body) {
		entryPath := prefix + entry.name

		if !entry.isDir {
			nodes = append(nodes, TreeNode{
				Path:  entryPath,
				Kind:  KindFile,
				Depth: depth,
			})
			continue
		}

		expanded := strings.HasPrefix(targetPath, entryPath)
		nodes = append(nodes, TreeNode{
			Path:     entryPath,
			Kind:     KindDirectory,
			Depth:    depth,
			Expanded: expanded,
		})

		if !expanded {
			continue
		}
		if depth >= c.maxDepth {
			c.warn(baseURL, entryPath, "crawl_depth_capped", nil)
			continue
		}

		childBody, err := c.fetcher.Fetch(ctx, baseURL+entryPath)
		if err != nil {
			// 子树抓取失败：该目录贡献零个子节点，兄弟条目保持可见
			c.warn(baseURL, entryPath, "crawl_subtree_failed", err)
			continue
		}
		nodes = append(nodes, c.expand(ctx, baseURL, targetPath, entryPath, childBody, depth+1)...)
	}
	return nodes
}

func (c *Crawler) warn(baseURL, path, action string, err error) {
	if c.logger == nil {
		return
	}
	fields := logrus.Fields{
		"action": action,
		"base":   baseURL,
		"path":   path,
	}
	if err != nil {
		c.logger.WithFields(fields).Warn(err.Error())
		return
	}
	c.logger.WithFields(fields).Warn("directory expansion stopped")
}

type listingEntry struct {
	name  string
	isDir bool
}

// parseListing 提取 <li><a href=...> 形式的目录条目，保持文档顺序。
// 解析失败时返回空列表：残缺页面按空目录处理。
func parseListing(body []byte) []listingEntry {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var entries []listingEntry
	collectListItems(root, &entries)
	return entries
}

func collectListItems(n *html.Node, entries *[]listingEntry) {
	if n.Type == html.ElementNode && n.Data == "li" {
		if href, ok := firstAnchorHref(n); ok {
			if entry, ok := classifyHref(href); ok {
				*entries = append(*entries, entry)
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectListItems(child, entries)
	}
}

func firstAnchorHref(li *html.Node) (string, bool) {
	for child := li.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == "a" {
			for _, attr := range child.Attr {
				if attr.Key == "href" {
					return attr.Val, true
				}
			}
			return "", false
		}
		if href, ok := firstAnchorHref(child); ok {
			return href, ok
		}
	}
	return "", false
}

// classifyHref 过滤父目录导航、排序链接与绝对地址，仅保留真实条目。
func classifyHref(href string) (listingEntry, bool) {
	if href == "" || href == "../" || href == ".." {
		return listingEntry{}, false
	}
	if strings.HasPrefix(href, "?") || strings.HasPrefix(href, "/") || strings.HasPrefix(href, "#") {
		return listingEntry{}, false
	}
	if strings.Contains(href, "://") {
		return listingEntry{}, false
	}
	return listingEntry{
		name:  href,
		isDir: strings.HasSuffix(href, "/"),
	}, true
}
