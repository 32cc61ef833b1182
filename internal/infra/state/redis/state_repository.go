package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collaborative-whiteboard/internal/domain"
	"collaborative-whiteboard/internal/repository"
)

// RedisStateRepository 是 CommandLog 和 RoomRepository 接口的 Redis 实现，
// 同时提供限流计数。
//
// Key 布局:
//
//	{prefix}room:{id}:commands  LIST  每条命令的 JSON，按追加顺序
//	{prefix}room:{id}:meta      HASH  created_at / last_activity (Unix 毫秒)
//	{prefix}rooms:activity      ZSET  member 为房间 ID，score 为 last_activity
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "wb:" // 默认前缀 "wb:" (whiteboard)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) roomCommandsKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:commands", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomMetaKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:meta", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomActivityKey() string {
	return r.keyPrefix + "rooms:activity"
}

// touchPipe 在管道中创建或刷新房间元数据
func (r *RedisStateRepository) touchPipe(ctx context.Context, pipe redis.Pipeliner, roomID string, now time.Time) {
	ms := now.UnixMilli()
	metaKey := r.roomMetaKey(roomID)
	pipe.HSetNX(ctx, metaKey, "created_at", ms)
	pipe.HSet(ctx, metaKey, "last_activity", ms)
	pipe.ZAdd(ctx, r.roomActivityKey(), &redis.Z{Score: float64(ms), Member: roomID})
}

// --- CommandLog Interface Implementation ---

// Append 将命令追加到房间日志列表并刷新房间活跃时间，在一个事务中执行
func (r *RedisStateRepository) Append(ctx context.Context, roomID string, cmd domain.DrawingCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("redis: append to room %s: %w", roomID, err)
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal command %s: %w", cmd.ID, err)
	}
	key := r.roomCommandsKey(roomID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		r.touchPipe(ctx, pipe, roomID, r.now())
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to append command %s to %s: %w", cmd.ID, key, err)
	}
	return nil
}

// ReadAll 按追加顺序返回房间的全部命令，key 不存在时返回空切片
func (r *RedisStateRepository) ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	key := r.roomCommandsKey(roomID)
	raw, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read commands for room %s from %s: %w", roomID, key, err)
	}
	cmds := make([]domain.DrawingCommand, 0, len(raw))
	for i, item := range raw {
		var cmd domain.DrawingCommand
		if err := json.Unmarshal([]byte(item), &cmd); err != nil {
			logrus.Warnf("redis: failed to unmarshal command from %s at index %d: %v", key, i, err)
			continue
		}
		cmd.Seq = uint(i + 1)
		cmd.RoomID = roomID
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Clear 删除房间的日志列表并刷新活跃时间
func (r *RedisStateRepository) Clear(ctx context.Context, roomID string) error {
	key := r.roomCommandsKey(roomID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		r.touchPipe(ctx, pipe, roomID, r.now())
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to clear commands for room %s on %s: %w", roomID, key, err)
	}
	return nil
}

// Touch 刷新房间活跃时间，房间不存在时创建
func (r *RedisStateRepository) Touch(ctx context.Context, roomID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.touchPipe(ctx, pipe, roomID, r.now())
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to touch room %s: %w", roomID, err)
	}
	return nil
}

// --- RoomRepository Interface Implementation ---

// FindByRoomID 读取房间元数据
func (r *RedisStateRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	key := r.roomMetaKey(roomID)
	meta, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get room meta from %s: %w", key, err)
	}
	if len(meta) == 0 {
		return nil, repository.ErrRoomNotFound
	}
	createdAt, err := parseMillis(meta["created_at"])
	if err != nil {
		return nil, fmt.Errorf("redis: invalid created_at in %s: %w", key, err)
	}
	lastActivity, err := parseMillis(meta["last_activity"])
	if err != nil {
		return nil, fmt.Errorf("redis: invalid last_activity in %s: %w", key, err)
	}
	return &domain.Room{RoomID: roomID, CreatedAt: createdAt, LastActivity: lastActivity}, nil
}

// Ensure 在房间不存在时创建元数据
func (r *RedisStateRepository) Ensure(ctx context.Context, roomID string) (*domain.Room, error) {
	if err := r.Touch(ctx, roomID); err != nil {
		return nil, err
	}
	return r.FindByRoomID(ctx, roomID)
}

// Exists 检查房间元数据是否存在
func (r *RedisStateRepository) Exists(ctx context.Context, roomID string) (bool, error) {
	key := r.roomMetaKey(roomID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check existence of %s: %w", key, err)
	}
	return n > 0, nil
}

// DeleteInactive 删除 last_activity 早于 before 的房间，keep 中的房间除外
func (r *RedisStateRepository) DeleteInactive(ctx context.Context, before time.Time, keep []string) (int64, error) {
	activityKey := r.roomActivityKey()
	candidates, err := r.client.ZRangeByScore(ctx, activityKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to list inactive rooms from %s: %w", activityKey, err)
	}

	skip := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		skip[id] = struct{}{}
	}
	var victims []string
	for _, id := range candidates {
		if _, ok := skip[id]; !ok {
			victims = append(victims, id)
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range victims {
			pipe.Del(ctx, r.roomCommandsKey(id), r.roomMetaKey(id))
			pipe.ZRem(ctx, activityKey, id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis: failed to delete %d inactive rooms: %w", len(victims), err)
	}
	return int64(len(victims)), nil
}

// CountActive 统计 last_activity 晚于 since 的房间数量
func (r *RedisStateRepository) CountActive(ctx context.Context, since time.Time) (int64, error) {
	activityKey := r.roomActivityKey()
	n, err := r.client.ZCount(ctx, activityKey, "("+strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to count active rooms in %s: %w", activityKey, err)
	}
	return n, nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	key = r.keyPrefix + "ratelimit:" + key
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	// 如果计数大于限制，则返回 true (表示超限)
	return count > int64(limit), nil
}

func parseMillis(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
