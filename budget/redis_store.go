package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gopkg.in/yaml.v3"

	"github.com/cascadehq/cascaderouter/core"
)

// RedisBudgetStore persists BudgetState windows across process restarts.
// It wraps a Store: reads/writes go through the in-memory Store for hot-path
// speed, with explicit Flush/Load calls syncing to Redis at process
// shutdown/startup — the gate itself never blocks on network I/O per
// query.
type RedisBudgetStore struct {
	client    *redis.Client
	namespace string
	logger    core.Logger
	mem       *Store
}

// RedisBudgetStoreOptions configures RedisBudgetStore.
type RedisBudgetStoreOptions struct {
	RedisURL  string
	Namespace string // key prefix, default "cascaderouter:budget"
	Logger    core.Logger
}

// NewRedisBudgetStore connects to Redis and wraps mem for in-process reads
// and writes. Namespace defaults to "cascaderouter:budget" if empty.
func NewRedisBudgetStore(ctx context.Context, opts RedisBudgetStoreOptions, mem *Store) (*RedisBudgetStore, error) {
	if opts.RedisURL == "" {
		return nil, core.NewError(core.KindConfiguration, "budget.NewRedisBudgetStore", errRedisURLRequired)
	}
	if opts.Namespace == "" {
		opts.Namespace = "cascaderouter:budget"
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, core.NewError(core.KindConfiguration, "budget.NewRedisBudgetStore", fmt.Errorf("invalid redis url: %w", err))
	}
	client := redis.NewClient(redisOpt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, core.NewError(core.KindConfiguration, "budget.NewRedisBudgetStore", fmt.Errorf("redis ping failed: %w", err))
	}

	opts.Logger.Info("budget store connected to redis", map[string]interface{}{"namespace": opts.Namespace})

	if mem == nil {
		mem = NewStore()
	}
	return &RedisBudgetStore{client: client, namespace: opts.Namespace, logger: opts.Logger, mem: mem}, nil
}

// Store returns the backing in-memory Store for the gate to use on the
// hot path.
func (r *RedisBudgetStore) Store() *Store { return r.mem }

func (r *RedisBudgetStore) key() string {
	return r.namespace + ":snapshot"
}

// Flush serializes mem's current state and writes it to Redis under a
// single namespaced key.
func (r *RedisBudgetStore) Flush(ctx context.Context, now time.Time) error {
	data, err := r.mem.ExportSnapshot(now)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(), data, 0).Err(); err != nil {
		return core.NewError(core.KindInternal, "budget.RedisBudgetStore.Flush", err)
	}
	return nil
}

// Load reads the persisted snapshot from Redis (if any) and restores it
// into mem. A missing key is not an error — it means no prior snapshot
// was ever flushed.
func (r *RedisBudgetStore) Load(ctx context.Context) error {
	data, err := r.client.Get(ctx, r.key()).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return core.NewError(core.KindInternal, "budget.RedisBudgetStore.Load", err)
	}
	var probe Blob
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return core.NewError(core.KindInternal, "budget.RedisBudgetStore.Load", err)
	}
	return r.mem.ImportSnapshot(data)
}

// Close releases the underlying Redis connection.
func (r *RedisBudgetStore) Close() error {
	return r.client.Close()
}
