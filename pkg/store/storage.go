package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

// 持久化存储中使用的键。
const (
	KeyUser    = "tvdom_user"
	KeySession = "tvdom_session"
)

// Storage 是会话在进程重启之间的持久化存储。值以JSON编码。
type Storage interface {
	// Load 把 key 对应的值解码到 v 中，键不存在时返回 false。
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
	// Delete 删除若干个键，不存在的键被忽略。
	Delete(keys ...string) error
}

// MemoryStorage 是进程内的存储，主要用于测试。
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage 创建一个空的内存存储。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(key string, v any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("解码 %s 失败: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStorage) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("编码 %s 失败: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// BadgerStorage 把会话保存在一个badger目录中。
type BadgerStorage struct {
	db *badger.DB
}

// OpenBadgerStorage 打开（或创建）dir 下的badger数据库。
func OpenBadgerStorage(dir string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开会话存储失败: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

// Close 关闭底层数据库。
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

func (b *BadgerStorage) Load(key string, v any) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err != nil {
		return false, fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	return found, nil
}

func (b *BadgerStorage) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("编码 %s 失败: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

func (b *BadgerStorage) Delete(keys ...string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}
