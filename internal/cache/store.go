package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// 两个命名空间在物理上完全隔离：目录列表与高亮结果即便键字符串相同，
// 也落在不同的子树/前缀下。
const (
	NamespaceListing   = "listing"
	NamespaceHighlight = "highlight"
)

// Store 负责管理镜像产物的持久化读写。实现必须保证写入原子性：
// 读取方要么看到旧版本，要么看到完整的新版本。
type Store interface {
	// Get 返回缓存条目。不存在时返回 ErrNotFound，存储故障返回 *StorageError。
	Get(ctx context.Context, locator Locator) (*Result, error)

	// Put 整体覆盖写入一个条目。opts.WrittenAt 为零值时取当前时间。
	Put(ctx context.Context, locator Locator, payload []byte, opts PutOptions) (*Entry, error)

	// Remove 删除条目，条目不存在时不报错。
	Remove(ctx context.Context, locator Locator) error

	// Close 释放后端资源（badger 需要，磁盘后端为空操作）。
	Close() error
}

// Locator 唯一定位一个缓存条目（命名空间 + 原始键）。
type Locator struct {
	Namespace string
	Key       string
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	WrittenAt time.Time
}

// Entry 描述一次写入/命中产出的条目元数据。
type Entry struct {
	Locator   Locator
	SizeBytes int64
	WrittenAt time.Time
}

// Result 组合条目元数据与完整正文。
type Result struct {
	Entry   Entry
	Payload []byte
}

// ErrNotFound 表示缓存不存在，与存储故障严格区分。
var ErrNotFound = errors.New("cache entry not found")

// StorageError 包装后端 I/O 故障；调用方统一按缓存不可用降级处理。
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Fresh 判断一个条目在当前时刻是否仍可直接复用。invalidatedAfter 仅对高亮
// 条目生效：高亮规则在写入之后更新过，即便仍在刷新窗口内也必须作废。
// purge 短路所有判断，强制视为过期。
func Fresh(writtenAt time.Time, refresh time.Duration, invalidatedAfter time.Time, purge bool) bool {
	return FreshAt(time.Now(), writtenAt, refresh, invalidatedAfter, purge)
}

// FreshAt 与 Fresh 等价，但允许注入 now，供测试使用。
func FreshAt(now, writtenAt time.Time, refresh time.Duration, invalidatedAfter time.Time, purge bool) bool {
	if purge {
		return false
	}
	if !writtenAt.After(now.Add(-refresh)) {
		return false
	}
	if !invalidatedAfter.IsZero() && !writtenAt.After(invalidatedAfter) {
		return false
	}
	return true
}

// hashKey 将任意键映射为文件系统安全的定长名称。
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func validateLocator(locator Locator) error {
	if locator.Namespace == "" {
		return errors.New("cache namespace required")
	}
	if locator.Key == "" {
		return errors.New("cache key required")
	}
	return nil
}
