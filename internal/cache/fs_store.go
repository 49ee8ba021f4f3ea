package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NewFSStore 以 basePath 为根目录构建磁盘缓存，整个进程复用一份实例。
// 磁盘布局：<basePath>/<namespace>/<hash前2位>/<hash>。
func NewFSStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fsStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fsStore 通过 entryLock 避免同一 Locator 并发写入，同时复用 basePath。
type fsStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fsStore) Get(ctx context.Context, locator Locator) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, storageErr("stat", err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	payload, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, storageErr("read", err)
	}

	return &Result{
		Entry: Entry{
			Locator:   locator,
			SizeBytes: info.Size(),
			WrittenAt: info.ModTime(),
		},
		Payload: payload,
	}, nil
}

func (s *fsStore) Put(ctx context.Context, locator Locator, payload []byte, opts PutOptions) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	unlock := s.lockEntry(locator)
	defer unlock()

	filePath, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, storageErr("mkdir", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return nil, storageErr("temp", err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(payload)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, storageErr("write", err)
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, storageErr("rename", err)
	}

	writtenAt := opts.WrittenAt
	if writtenAt.IsZero() {
		writtenAt = time.Now().UTC()
	}
	if err := os.Chtimes(filePath, writtenAt, writtenAt); err != nil {
		return nil, storageErr("chtimes", err)
	}

	return &Entry{
		Locator:   locator,
		SizeBytes: int64(len(payload)),
		WrittenAt: writtenAt,
	}, nil
}

func (s *fsStore) Remove(ctx context.Context, locator Locator) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	unlock := s.lockEntry(locator)
	defer unlock()

	filePath, err := s.entryPath(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("remove", err)
	}
	return nil
}

func (s *fsStore) Close() error {
	return nil
}

func (s *fsStore) lockEntry(locator Locator) func() {
	key := locator.Namespace + "::" + locator.Key
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// entryPath 对键做哈希后再拼路径，天然杜绝目录穿越。
func (s *fsStore) entryPath(locator Locator) (string, error) {
	if err := validateLocator(locator); err != nil {
		return "", err
	}
	hashed := hashKey(locator.Key)
	return filepath.Join(s.basePath, locator.Namespace, hashed[:2], hashed), nil
}
