package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"leadsync/core/cache"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level classifies a queued notification.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// levelBadges decorates flushed messages per level, worst first.
var levelBadges = []struct {
	level Level
	badge string
}{
	{LevelCritical, ":rotating_light:"},
	{LevelError, ":exclamation:"},
	{LevelWarning, ":warning:"},
	{LevelInfo, ":information_source:"},
}

// Sink receives warnings and errors accumulated during a sync cycle.
// Enqueue never blocks the caller on delivery; Flush drains the queue and
// clears it unconditionally after attempted delivery.
type Sink interface {
	Enqueue(ctx context.Context, level Level, header, message string)
	Flush(ctx context.Context)
	Critical(ctx context.Context, header string, details ...string)
}

type queued struct {
	Header  string `json:"msg_header"`
	Message string `json:"message"`
}

// Queue is the Redis-backed Sink implementation.
type Queue struct {
	store  *cache.Store
	poster Poster
	log    *zap.Logger
}

// NewQueue creates a Sink backed by the shared key-value store.
func NewQueue(store *cache.Store, poster Poster, log *zap.Logger) *Queue {
	return &Queue{store: store, poster: poster, log: log}
}

// Enqueue saves a notification for the next Flush. Storage failures are
// logged and swallowed; notification delivery is best-effort.
func (q *Queue) Enqueue(ctx context.Context, level Level, header, message string) {
	key := fmt.Sprintf("notify:%s:%s", level, uuid.NewString())
	b, err := json.Marshal(queued{Header: header, Message: message})
	if err != nil {
		q.log.Error("failed to encode notification", zap.Error(err))
		return
	}
	if err := q.store.Set(ctx, key, string(b), 0); err != nil {
		q.log.Error("failed to queue notification", zap.Error(err))
	}
}

// Flush posts everything queued, grouped by level, then clears the queue
// whether or not delivery succeeded.
func (q *Queue) Flush(ctx context.Context) {
	defer func() {
		if err := q.store.DeleteByPattern(ctx, "notify:*"); err != nil {
			q.log.Error("failed to clear notification queue", zap.Error(err))
		}
	}()

	for _, lb := range levelBadges {
		keys, err := q.store.Keys(ctx, fmt.Sprintf("notify:%s:*", lb.level))
		if err != nil {
			q.log.Error("failed to list queued notifications", zap.Error(err))
			return
		}
		if len(keys) == 0 {
			continue
		}

		var lines []string
		for _, key := range keys {
			raw, err := q.store.Get(ctx, key)
			if err != nil {
				continue
			}
			var n queued
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s %s: %s", lb.badge, n.Header, n.Message))
		}
		if len(lines) == 0 {
			continue
		}

		header := fmt.Sprintf("Lead sync %s notifications", lb.level)
		if err := q.poster.Post(ctx, header, lines); err != nil {
			q.log.Error("failed to deliver notifications",
				zap.String("level", string(lb.level)),
				zap.Error(err),
			)
		}
	}
}

// Critical bypasses the queue and posts immediately.
func (q *Queue) Critical(ctx context.Context, header string, details ...string) {
	if err := q.poster.Post(ctx, ":rotating_light: "+header, details); err != nil {
		q.log.Error("failed to deliver critical notification",
			zap.String("header", header),
			zap.Error(err),
		)
	}
}
