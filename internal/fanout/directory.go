package fanout

import (
	"context"
	"sync"
	"time"
)

// CachedDirectory はDirectoryの解決結果を有限個・有効期限付きでキャッシュするデコレータ。
// プロセス全体のグローバルキャッシュではなく、呼び出し側が生成して注入し、
// 無効化も呼び出し側の責任で行う。
// 未知のユーザーIDに対する失敗はキャッシュしない（後から登録される可能性があるため）。
type CachedDirectory struct {
	// inner は実際の解決先。
	inner Directory
	// ttl はエントリの有効期間。
	ttl time.Duration
	// maxEntries は保持するエントリ数の上限。超過時は最も古いエントリを追い出す。
	maxEntries int

	// mu はentriesへの並行アクセスを保護する。
	mu sync.Mutex
	// entries はユーザーIDごとのキャッシュエントリ。
	entries map[string]directoryEntry
}

// directoryEntry は1ユーザー分のキャッシュエントリ。
type directoryEntry struct {
	// name は解決済みの表示名。
	name string
	// expiresAt はエントリの失効日時。
	expiresAt time.Time
}

// NewCachedDirectory は新しいCachedDirectoryを生成する。
// ttlが0以下の場合は60秒、maxEntriesが0以下の場合は1024を既定値とする。
func NewCachedDirectory(inner Directory, ttl time.Duration, maxEntries int) *CachedDirectory {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &CachedDirectory{
		inner:      inner,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]directoryEntry),
	}
}

// DisplayName はキャッシュを参照し、未ヒットの場合のみ内側のDirectoryに問い合わせる。
func (c *CachedDirectory) DisplayName(ctx context.Context, uid string) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[uid]; ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.name, nil
	}
	c.mu.Unlock()

	name, err := c.inner.DisplayName(ctx, uid)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[uid] = directoryEntry{name: name, expiresAt: time.Now().Add(c.ttl)}
	return name, nil
}

// Invalidate は指定ユーザーのキャッシュエントリを破棄する。
// 表示名の変更を反映したい場合に呼び出し側が使う。
func (c *CachedDirectory) Invalidate(uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uid)
}

// InvalidateAll はすべてのキャッシュエントリを破棄する。
func (c *CachedDirectory) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]directoryEntry)
}

// evictOldestLocked は最も失効が近いエントリを1つ追い出す。muを保持して呼び出すこと。
func (c *CachedDirectory) evictOldestLocked() {
	var oldestUID string
	var oldestAt time.Time
	for uid, e := range c.entries {
		if oldestUID == "" || e.expiresAt.Before(oldestAt) {
			oldestUID = uid
			oldestAt = e.expiresAt
		}
	}
	if oldestUID != "" {
		delete(c.entries, oldestUID)
	}
}
