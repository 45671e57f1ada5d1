package sim

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChatEntry is one exchange in the recent-activity feed. Display only;
// the memory store is the authoritative record of what agents recall.
type ChatEntry struct {
	Agents    []string  `json:"agents"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const chatLogKey = "labwork:recent_chats"

// ChatLog is a capped ring buffer of recent exchanges, newest last.
// When a Redis client is attached, entries are mirrored to a capped
// list so restarts keep recent chat; mirroring is best-effort.
type ChatLog struct {
	max     int
	entries []ChatEntry
	rdb     *redis.Client // optional
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewChatLog creates a ring buffer keeping the last max entries.
func NewChatLog(max int, rdb *redis.Client, logger *zap.Logger) *ChatLog {
	if max <= 0 {
		max = 50
	}
	return &ChatLog{max: max, rdb: rdb, logger: logger}
}

// Append adds an entry, evicting the oldest when over capacity.
func (l *ChatLog) Append(entry ChatEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	l.mu.Unlock()

	if l.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	pipe := l.rdb.Pipeline()
	pipe.LPush(ctx, chatLogKey, data)
	pipe.LTrim(ctx, chatLogKey, 0, int64(l.max)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Debug("chat log mirror failed", zap.Error(err))
	}
}

// Recent returns up to n entries, oldest first. n <= 0 means all.
func (l *ChatLog) Recent(n int) []ChatEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]ChatEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Restore reloads the mirrored entries from Redis, oldest first. Called
// once at startup; a missing mirror is not an error.
func (l *ChatLog) Restore(ctx context.Context) {
	if l.rdb == nil {
		return
	}
	raw, err := l.rdb.LRange(ctx, chatLogKey, 0, int64(l.max)-1).Result()
	if err != nil {
		l.logger.Debug("chat log restore failed", zap.Error(err))
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
	// Redis list is newest-first; rebuild oldest-first.
	for i := len(raw) - 1; i >= 0; i-- {
		var e ChatEntry
		if json.Unmarshal([]byte(raw[i]), &e) == nil {
			l.entries = append(l.entries, e)
		}
	}
}
