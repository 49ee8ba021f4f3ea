package integration

import (
	"strings"
	"testing"
)

func TestHighlightFlowRendersAndCaches(t *testing.T) {
	stub := newUpstreamStub(t, map[string]string{
		"/src/":        listingHTML("main.py"),
		"/src/main.py": "def main():\n    return 42\n",
	})
	fixture := newMirrorApp(t, stub.URL)

	status, page := fixture.get("/repo/demo?path=main.py")
	if status != 200 {
		t.Fatalf("文件页应返回 200, got %d", status)
	}
	if !strings.Contains(page, "main") || !strings.Contains(page, "42") {
		t.Fatalf("页面应包含高亮后的源代码: %s", page)
	}
	if !strings.Contains(page, stub.URL+"/src/main.py") {
		t.Fatalf("页面应包含原始链接: %s", page)
	}
	if got := stub.hitCount("/src/main.py"); got != 1 {
		t.Fatalf("文件应被抓取一次, got %d", got)
	}

	// 刷新窗口内的重复渲染不再触发抓取，且输出一致
	status2, page2 := fixture.get("/repo/demo?path=main.py")
	if status2 != 200 {
		t.Fatalf("缓存命中应返回 200, got %d", status2)
	}
	if page2 != page {
		t.Fatal("缓存命中应逐字节一致")
	}
	if got := stub.hitCount("/src/main.py"); got != 1 {
		t.Fatalf("缓存命中不应再次抓取, got %d", got)
	}
}

func TestHighlightFlowInlineErrorNotCached(t *testing.T) {
	stub := newUpstreamStub(t, map[string]string{
		"/src/": listingHTML("late.py"),
	})
	fixture := newMirrorApp(t, stub.URL)

	status, page := fixture.get("/repo/demo?path=late.py")
	if status != 200 {
		t.Fatalf("抓取失败以行内错误呈现, got %d", status)
	}
	if !strings.Contains(page, "could not fetch") {
		t.Fatalf("页面应包含行内错误: %s", page)
	}

	// 上游恢复后立即可见：失败结果从不写入缓存
	stub.setPage("/src/late.py", "print('ok')\n")
	status2, page2 := fixture.get("/repo/demo?path=late.py")
	if status2 != 200 {
		t.Fatalf("恢复后应返回 200, got %d", status2)
	}
	if strings.Contains(page2, "could not fetch") {
		t.Fatalf("恢复后不应再出现行内错误: %s", page2)
	}
	if !strings.Contains(page2, "ok") {
		t.Fatalf("页面应包含高亮内容: %s", page2)
	}
}

func TestHighlightFlowPurgeRefetches(t *testing.T) {
	stub := newUpstreamStub(t, map[string]string{
		"/src/app.js": "console.log('hi');\n",
	})
	fixture := newMirrorApp(t, stub.URL)

	if status, _ := fixture.get("/repo/demo?path=app.js"); status != 200 {
		t.Fatalf("首次渲染应返回 200, got %d", status)
	}
	if status, _ := fixture.get("/repo/demo?path=app.js&purge=1"); status != 200 {
		t.Fatalf("purge 渲染应返回 200, got %d", status)
	}
	if got := stub.hitCount("/src/app.js"); got != 2 {
		t.Fatalf("purge 应重新抓取文件, got %d", got)
	}
}
