package main

import (
	"os"
	"path/filepath"
	"testing"
)

// configFixture 返回 internal/config 包内的共享测试配置。
// go test 的工作目录即包目录，对 package main 而言就是仓库根。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("internal", "config", "testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("测试配置不存在: %v", err)
	}
	return path
}
