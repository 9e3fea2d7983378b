package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

/*
Redis Schema:

Uses Redis hashes for run state:
- Hash: wfrun:{run_id} - run state fields
- Set: wfrun:by_name:{name} - run IDs by workflow name
- Set: wfrun:by_tenant:{tenant_id} - run IDs by tenant
- Set: wfrun:by_status:{status} - run IDs by status
- Sorted Set: wfrun:by_time - run IDs sorted by start time
*/

// RedisStore is a Redis-based run store.
//
// RedisStore lets a fleet of application nodes share one view of
// workflow runs. Completed runs can be expired automatically with a
// TTL so the key space does not grow without bound.
//
// Example:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := workflow.NewRedisStore(rdb).
//	    WithKeyPrefix("commerce:wfrun:").
//	    WithTTL(7 * 24 * time.Hour)
type RedisStore struct {
	client       redis.Cmdable
	prefix       string
	namePrefix   string
	tenantPrefix string
	statusPrefix string
	timeKey      string
	ttl          time.Duration // TTL for finished runs (0 = no expiry)
}

// NewRedisStore creates a new Redis run store. The client may be a
// single node, Sentinel or Cluster client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	s := &RedisStore{client: client}
	return s.WithKeyPrefix("wfrun:")
}

// WithKeyPrefix sets a custom key prefix. Use it to keep several
// applications, or several environments, apart in one Redis.
//
// Returns the store for method chaining.
func (s *RedisStore) WithKeyPrefix(prefix string) *RedisStore {
	s.prefix = prefix
	s.namePrefix = prefix + "by_name:"
	s.tenantPrefix = prefix + "by_tenant:"
	s.statusPrefix = prefix + "by_status:"
	s.timeKey = prefix + "by_time"
	return s
}

// WithTTL sets the TTL applied to finished runs (completed or
// compensated). Failed runs never expire; they hold reconciliation
// work.
//
// Returns the store for method chaining.
func (s *RedisStore) WithTTL(ttl time.Duration) *RedisStore {
	s.ttl = ttl
	return s
}

// Create records a new run.
func (s *RedisStore) Create(ctx context.Context, state *State) error {
	key := s.prefix + state.RunID

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("run already exists: %s", state.RunID)
	}

	if err := s.saveState(ctx, key, state); err != nil {
		return err
	}

	s.client.SAdd(ctx, s.namePrefix+state.Name, state.RunID)
	s.client.SAdd(ctx, s.tenantPrefix+state.TenantID, state.RunID)
	s.client.SAdd(ctx, s.statusPrefix+string(state.Status), state.RunID)
	s.client.ZAdd(ctx, s.timeKey, redis.Z{
		Score:  float64(state.StartedAt.Unix()),
		Member: state.RunID,
	})

	return nil
}

// saveState writes run state to a Redis hash.
func (s *RedisStore) saveState(ctx context.Context, key string, state *State) error {
	completedSteps, _ := json.Marshal(state.CompletedSteps)

	fields := map[string]interface{}{
		"run_id":          state.RunID,
		"name":            state.Name,
		"tenant_id":       state.TenantID,
		"status":          string(state.Status),
		"current_step":    state.CurrentStep,
		"completed_steps": completedSteps,
		"error":           state.Error,
		"started_at":      state.StartedAt.Unix(),
		"last_updated_at": state.LastUpdatedAt.Unix(),
	}

	if state.CompletedAt != nil {
		fields["completed_at"] = state.CompletedAt.Unix()
	}

	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}

	return nil
}

// Update updates run state.
func (s *RedisStore) Update(ctx context.Context, state *State) error {
	key := s.prefix + state.RunID

	// Old status needed to keep the status index consistent.
	oldStatus, err := s.client.HGet(ctx, key, "status").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("hget: %w", err)
	}

	if err := s.saveState(ctx, key, state); err != nil {
		return err
	}

	if oldStatus != string(state.Status) {
		s.client.SRem(ctx, s.statusPrefix+oldStatus, state.RunID)
		s.client.SAdd(ctx, s.statusPrefix+string(state.Status), state.RunID)
	}

	if s.ttl > 0 && (state.Status == StatusCompleted || state.Status == StatusCompensated) {
		s.client.Expire(ctx, key, s.ttl)
	}

	return nil
}

// Get retrieves run state by run ID.
func (s *RedisStore) Get(ctx context.Context, runID string) (*State, error) {
	key := s.prefix + runID

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	return s.parseState(fields)
}

// parseState converts hash fields to a State.
func (s *RedisStore) parseState(fields map[string]string) (*State, error) {
	state := &State{
		RunID:    fields["run_id"],
		Name:     fields["name"],
		TenantID: fields["tenant_id"],
		Status:   Status(fields["status"]),
		Error:    fields["error"],
	}

	if cs := fields["current_step"]; cs != "" {
		state.CurrentStep, _ = strconv.Atoi(cs)
	}

	if steps := fields["completed_steps"]; steps != "" {
		json.Unmarshal([]byte(steps), &state.CompletedSteps)
	}

	if ts := fields["started_at"]; ts != "" {
		unix, _ := strconv.ParseInt(ts, 10, 64)
		state.StartedAt = time.Unix(unix, 0)
	}

	if ts := fields["completed_at"]; ts != "" {
		unix, _ := strconv.ParseInt(ts, 10, 64)
		t := time.Unix(unix, 0)
		state.CompletedAt = &t
	}

	if ts := fields["last_updated_at"]; ts != "" {
		unix, _ := strconv.ParseInt(ts, 10, 64)
		state.LastUpdatedAt = time.Unix(unix, 0)
	}

	return state, nil
}

// List lists runs matching the filter.
func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*State, error) {
	ids, err := s.candidateIDs(ctx, filter)
	if err != nil {
		return nil, err
	}

	var states []*State
	for _, id := range ids {
		state, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		// Index lookups cover one dimension each; re-check the full
		// filter before returning.
		if !filter.matches(state) {
			continue
		}
		states = append(states, state)
		if filter.Limit > 0 && len(states) >= filter.Limit {
			break
		}
	}

	return states, nil
}

// candidateIDs picks the narrowest index for the filter.
func (s *RedisStore) candidateIDs(ctx context.Context, filter Filter) ([]string, error) {
	switch {
	case filter.TenantID != "":
		return s.client.SMembers(ctx, s.tenantPrefix+filter.TenantID).Result()
	case filter.Name != "":
		return s.client.SMembers(ctx, s.namePrefix+filter.Name).Result()
	case len(filter.Status) > 0:
		var ids []string
		for _, status := range filter.Status {
			statusIDs, err := s.client.SMembers(ctx, s.statusPrefix+string(status)).Result()
			if err != nil {
				return nil, fmt.Errorf("smembers: %w", err)
			}
			ids = append(ids, statusIDs...)
		}
		return ids, nil
	default:
		return s.client.ZRevRange(ctx, s.timeKey, 0, -1).Result()
	}
}

// Delete removes a run by ID, including its index entries.
func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	state, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}

	key := s.prefix + runID

	s.client.Del(ctx, key)
	s.client.SRem(ctx, s.namePrefix+state.Name, runID)
	s.client.SRem(ctx, s.tenantPrefix+state.TenantID, runID)
	s.client.SRem(ctx, s.statusPrefix+string(state.Status), runID)
	s.client.ZRem(ctx, s.timeKey, runID)

	return nil
}

// DeleteOlderThan removes runs started before now-age and returns how
// many were deleted.
func (s *RedisStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := float64(time.Now().Add(-age).Unix())

	ids, err := s.client.ZRangeByScore(ctx, s.timeKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", cutoff),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore: %w", err)
	}

	var deleted int64
	for _, id := range ids {
		if err := s.Delete(ctx, id); err == nil {
			deleted++
		}
	}

	return deleted, nil
}

// Count returns the total number of recorded runs.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.timeKey).Result()
}

// CountByStatus returns the number of runs in the given status.
func (s *RedisStore) CountByStatus(ctx context.Context, status Status) (int64, error) {
	return s.client.SCard(ctx, s.statusPrefix+string(status)).Result()
}

// Compile-time check
var _ Store = (*RedisStore)(nil)
