package queue

import (
	"context"
	"fmt"
	"time"

	"tonkserver/common/cache"
	"tonkserver/common/database"
	"tonkserver/common/log"

	"github.com/redis/go-redis/v9"
)

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityVip
)

// priorityWeight orders vip ahead of high ahead of normal within the
// same sorted set by giving each band its own order of magnitude; the
// sub-score within a band is the enqueue time, so ties break FIFO.
func priorityWeight(p Priority) int64 {
	switch p {
	case PriorityVip:
		return 0
	case PriorityHigh:
		return 1
	default:
		return 2
	}
}

const (
	maxWaitSamples   = 50
	defaultWaitEst   = 30 * time.Second
	expiryWindow     = 10 * time.Minute
)

// Player is the minimal identity the queue tracks; C5 resolves it
// into a seated Seat once popped.
type Player struct {
	Username string
	Priority Priority
}

// Manager is the Queue Manager (C4): one Redis sorted set per stake,
// plus a local cache of each stake's rolling wait-time average.
type Manager struct {
	redis *database.RedisManager
	waits *cache.GeneralCache
}

func NewManager(redis *database.RedisManager, waits *cache.GeneralCache) *Manager {
	return &Manager{redis: redis, waits: waits}
}

func queueKey(stake int64) string    { return fmt.Sprintf("queue:%d", stake) }
func joinedAtKey(stake int64) string { return fmt.Sprintf("queue:%d:joined", stake) }

// enqueueScript rejects a duplicate username and otherwise adds it to
// the stake's sorted set with a score that encodes (priority, time).
// KEYS[1]=queue zset, KEYS[2]=joined-at hash
// ARGV[1]=username, ARGV[2]=score, ARGV[3]=joinedAtUnixNano
const enqueueScript = `
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
return 1
`

// dequeueScript pops the single lowest-scored member atomically so two
// concurrent matchmaker runs can never pop the same player.
// KEYS[1]=queue zset, KEYS[2]=joined-at hash
const dequeueScript = `
local popped = redis.call('ZRANGE', KEYS[1], 0, 0)
if #popped == 0 then
  return {}
end
local username = popped[1]
local joinedAt = redis.call('HGET', KEYS[2], username)
redis.call('ZREM', KEYS[1], username)
redis.call('HDEL', KEYS[2], username)
return {username, joinedAt or ''}
`

// Enqueue adds player to the stake's queue. It rejects duplicates by
// username, per the contract.
func (m *Manager) Enqueue(ctx context.Context, stake int64, player Player) error {
	now := time.Now()
	score := float64(priorityWeight(player.Priority))*1e15 + float64(now.UnixMilli())

	res, err := m.redis.EvalScript(ctx, "queue_enqueue", enqueueScript,
		[]string{queueKey(stake), joinedAtKey(stake)},
		player.Username, score, now.UnixNano())
	if err != nil {
		return fmt.Errorf("enqueue %s at stake %d: %w", player.Username, stake, err)
	}
	if n, ok := res.(int64); ok && n == 0 {
		return fmt.Errorf("player %s already queued at stake %d", player.Username, stake)
	}
	return nil
}

// Dequeue pops the next player for stake, or ok=false if the queue is
// empty. The popped player's wait time is recorded into the rolling
// average used by Estimate.
func (m *Manager) Dequeue(ctx context.Context, stake int64) (username string, ok bool, err error) {
	res, err := m.redis.EvalScript(ctx, "queue_dequeue", dequeueScript,
		[]string{queueKey(stake), joinedAtKey(stake)})
	if err != nil {
		return "", false, fmt.Errorf("dequeue stake %d: %w", stake, err)
	}
	arr, isArr := res.([]interface{})
	if !isArr || len(arr) < 2 {
		return "", false, nil
	}
	username, _ = arr[0].(string)
	if username == "" {
		return "", false, nil
	}
	if joinedStr, _ := arr[1].(string); joinedStr != "" {
		m.recordWait(stake, joinedStr)
	}
	return username, true, nil
}

// Remove drops a player from stake's queue without popping them for a
// match (voluntary leave_queue, or disconnect while waiting).
func (m *Manager) Remove(ctx context.Context, stake int64, username string) error {
	pipe := m.redis.Cli.Pipeline()
	pipe.ZRem(ctx, queueKey(stake), username)
	pipe.HDel(ctx, joinedAtKey(stake), username)
	_, err := pipe.Exec(ctx)
	return err
}

// Position returns the 1-based rank of username in stake's queue.
func (m *Manager) Position(ctx context.Context, stake int64, username string) (int, error) {
	rank, err := m.redis.Cli.ZRank(ctx, queueKey(stake), username).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("player %s not in queue for stake %d", username, stake)
	}
	if err != nil {
		return 0, err
	}
	return int(rank) + 1, nil
}

// QueueDepth returns the number of players currently waiting at
// stake, without consuming any of them.
func (m *Manager) QueueDepth(ctx context.Context, stake int64) (int, error) {
	size, err := m.redis.Cli.ZCard(ctx, queueKey(stake)).Result()
	if err != nil {
		return 0, err
	}
	return int(size), nil
}

type Stats struct {
	Size            int
	EstimatedWaitMs int64
}

func (m *Manager) Stats(ctx context.Context, stake int64) (Stats, error) {
	size, err := m.redis.Cli.ZCard(ctx, queueKey(stake)).Result()
	if err != nil {
		return Stats{}, err
	}
	pos := int(size)
	if pos < 1 {
		pos = 1
	}
	return Stats{Size: int(size), EstimatedWaitMs: m.Estimate(stake, pos).Milliseconds()}, nil
}

// Estimate returns the expected wait for a player sitting at position
// pos: the rolling average of the last <=50 actual waits for this
// stake, scaled by max(1, pos/2); 30s until any history exists.
func (m *Manager) Estimate(stake int64, pos int) time.Duration {
	avg := m.rollingAverage(stake)
	if avg == 0 {
		avg = defaultWaitEst
	}
	scale := pos / 2
	if scale < 1 {
		scale = 1
	}
	return avg * time.Duration(scale)
}

func (m *Manager) recordWait(stake int64, joinedAtNano string) {
	if m.waits == nil {
		return
	}
	var joinedNano int64
	if _, err := fmt.Sscanf(joinedAtNano, "%d", &joinedNano); err != nil {
		return
	}
	wait := time.Since(time.Unix(0, joinedNano))
	if wait < 0 {
		return
	}

	key := fmt.Sprintf("waits:%d", stake)
	samples, _ := m.waits.Get(key)
	list, _ := samples.([]time.Duration)
	list = append(list, wait)
	if len(list) > maxWaitSamples {
		list = list[len(list)-maxWaitSamples:]
	}
	m.waits.SetWithTTL(key, list, time.Hour)
}

func (m *Manager) rollingAverage(stake int64) time.Duration {
	if m.waits == nil {
		return 0
	}
	key := fmt.Sprintf("waits:%d", stake)
	samples, ok := m.waits.Get(key)
	if !ok {
		return 0
	}
	list, ok := samples.([]time.Duration)
	if !ok || len(list) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range list {
		total += d
	}
	return total / time.Duration(len(list))
}

// SweepExpired purges entries older than expiryWindow across every
// stake in the ladder. Intended to run on a ticker (default every
// queueCleanupPeriod from config).
func (m *Manager) SweepExpired(ctx context.Context, stakeLadder []int64) {
	cutoff := time.Now().Add(-expiryWindow).UnixNano()
	for _, stake := range stakeLadder {
		members, err := m.redis.Cli.HGetAll(ctx, joinedAtKey(stake)).Result()
		if err != nil {
			log.Error("queue sweep: reading joined-at for stake %d: %v", stake, err)
			continue
		}
		for username, joinedStr := range members {
			var joinedNano int64
			if _, err := fmt.Sscanf(joinedStr, "%d", &joinedNano); err != nil {
				continue
			}
			if joinedNano < cutoff {
				if err := m.Remove(ctx, stake, username); err != nil {
					log.Error("queue sweep: removing expired %s from stake %d: %v", username, stake, err)
				}
			}
		}
	}
}
