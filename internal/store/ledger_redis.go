package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/local/scansplit/internal/splitter"
)

// keep this many run ids in the recent-runs list
const recentRuns = 1000

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Run is a ledger entry as read back from Redis.
type Run struct {
	ID         string
	Source     string
	Outcome    string
	Error      string
	TotalPages int
	Separators []int
	Outputs    []string
	Unsplit    bool
	Started    time.Time
	Finished   time.Time
}

// RedisLedger records run outcomes and holds a per-source lock so two
// runs never split the same file at once.
type RedisLedger struct {
	client    *redis.Client
	keyNS     string
	lockTTL   time.Duration
	ledgerTTL time.Duration
}

// NewRedisLedger connects to redisURL and verifies the connection.
func NewRedisLedger(redisURL string, lockTTL, ledgerTTL time.Duration) (*RedisLedger, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &RedisLedger{client: c, keyNS: "scansplit", lockTTL: lockTTL, ledgerTTL: ledgerTTL}, nil
}

func (s *RedisLedger) lockKey(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}
	return fmt.Sprintf("%s:lock:%s", s.keyNS, source)
}

func (s *RedisLedger) runKey(runID string) string { return fmt.Sprintf("%s:run:%s", s.keyNS, runID) }

func (s *RedisLedger) listKey() string { return s.keyNS + ":runs" }

// Lock takes the per-source lock. It returns splitter.ErrLocked when another
// run holds it.
func (s *RedisLedger) Lock(ctx context.Context, source string) (func(), error) {
	key := s.lockKey(source)
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", splitter.ErrLocked, source)
	}
	return func() {
		_ = unlockScript.Run(context.Background(), s.client, []string{key}, token).Err()
	}, nil
}

// Record stores the run under its id and pushes it onto the recent-runs list.
func (s *RedisLedger) Record(ctx context.Context, res *splitter.Result, runErr error) error {
	if res == nil {
		return nil
	}
	key := s.runKey(res.RunID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, runFields(res, runErr))
		if s.ledgerTTL > 0 {
			p.Expire(ctx, key, s.ledgerTTL)
		}
		p.LPush(ctx, s.listKey(), res.RunID)
		p.LTrim(ctx, s.listKey(), 0, recentRuns-1)
		return nil
	})
	return err
}

// Get reads one run back.
func (s *RedisLedger) Get(ctx context.Context, runID string) (Run, bool, error) {
	m, err := s.client.HGetAll(ctx, s.runKey(runID)).Result()
	if err != nil {
		return Run{}, false, err
	}
	if len(m) == 0 {
		return Run{}, false, nil
	}
	return parseRun(runID, m), true, nil
}

// Recent returns up to n run ids, newest first.
func (s *RedisLedger) Recent(ctx context.Context, n int64) ([]string, error) {
	return s.client.LRange(ctx, s.listKey(), 0, n-1).Result()
}

// Ping checks the connection.
func (s *RedisLedger) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisLedger) Close() error { return s.client.Close() }

func runFields(res *splitter.Result, runErr error) map[string]interface{} {
	seps, _ := json.Marshal(res.Separators)
	written := res.Written()
	if written == nil {
		written = []string{}
	}
	outs, _ := json.Marshal(written)
	m := map[string]interface{}{
		"source":      res.Source,
		"outcome":     splitter.Outcome(res, runErr),
		"total_pages": res.TotalPages,
		"separators":  string(seps),
		"outputs":     string(outs),
		"unsplit":     strconv.FormatBool(res.Unsplit),
		"start":       res.Started.Format(time.RFC3339Nano),
		"end":         res.Finished.Format(time.RFC3339Nano),
	}
	if runErr != nil {
		m["error"] = runErr.Error()
	}
	return m
}

func parseRun(id string, m map[string]string) Run {
	r := Run{
		ID:      id,
		Source:  m["source"],
		Outcome: m["outcome"],
		Error:   m["error"],
	}
	r.TotalPages, _ = strconv.Atoi(m["total_pages"])
	r.Unsplit, _ = strconv.ParseBool(m["unsplit"])
	_ = json.Unmarshal([]byte(m["separators"]), &r.Separators)
	_ = json.Unmarshal([]byte(m["outputs"]), &r.Outputs)
	if t, err := time.Parse(time.RFC3339Nano, m["start"]); err == nil {
		r.Started = t
	}
	if t, err := time.Parse(time.RFC3339Nano, m["end"]); err == nil {
		r.Finished = t
	}
	return r
}

// Nop is the ledger used when Redis is not configured.
type Nop struct{}

func (Nop) Lock(context.Context, string) (func(), error) { return func() {}, nil }

func (Nop) Record(context.Context, *splitter.Result, error) error { return nil }
