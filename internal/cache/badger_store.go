package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// NewBadgerStore 打开 badger 后端。与磁盘后端语义一致：整体覆盖写入、
// 命名空间隔离、键先哈希。适合条目数量大、单条目偏小的部署。
func NewBadgerStore(dataDir string) (Store, error) {
	if dataDir == "" {
		return nil, errors.New("storage path required")
	}

	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil // badger 自带日志过于啰嗦，统一走 logrus

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &badgerStore{db: db}, nil
}

type badgerStore struct {
	db *badger.DB
}

// envelope 是 badger value 的 JSON 包装，payload 与写入时间一起落盘。
type envelope struct {
	Payload   []byte    `json:"payload"`
	WrittenAt time.Time `json:"written_at"`
}

func (s *badgerStore) Get(ctx context.Context, locator Locator) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key, err := badgerKey(locator)
	if err != nil {
		return nil, err
	}

	var env envelope
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}

	return &Result{
		Entry: Entry{
			Locator:   locator,
			SizeBytes: int64(len(env.Payload)),
			WrittenAt: env.WrittenAt,
		},
		Payload: env.Payload,
	}, nil
}

func (s *badgerStore) Put(ctx context.Context, locator Locator, payload []byte, opts PutOptions) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key, err := badgerKey(locator)
	if err != nil {
		return nil, err
	}

	writtenAt := opts.WrittenAt
	if writtenAt.IsZero() {
		writtenAt = time.Now().UTC()
	}

	value, err := json.Marshal(envelope{Payload: payload, WrittenAt: writtenAt})
	if err != nil {
		return nil, storageErr("marshal", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return nil, storageErr("put", err)
	}

	return &Entry{
		Locator:   locator,
		SizeBytes: int64(len(payload)),
		WrittenAt: writtenAt,
	}, nil
}

func (s *badgerStore) Remove(ctx context.Context, locator Locator) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	key, err := badgerKey(locator)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return storageErr("remove", err)
	}
	return nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func badgerKey(locator Locator) ([]byte, error) {
	if err := validateLocator(locator); err != nil {
		return nil, err
	}
	return []byte(locator.Namespace + ":" + hashKey(locator.Key)), nil
}
