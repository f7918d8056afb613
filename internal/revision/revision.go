package revision

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"hrms/internal/attendance"
)

// Revisions are monotonically increasing counters, one per entity type.
// A client whose cached revision is lower than the current one holds a
// stale view of that entity.
type Revisions struct {
	Employees  int64 `json:"employees"`
	Attendance int64 `json:"attendance"`
}

// Get returns the counter for entity.
func (r Revisions) Get(entity attendance.Entity) int64 {
	switch entity {
	case attendance.EntityEmployees:
		return r.Employees
	case attendance.EntityAttendance:
		return r.Attendance
	}
	return 0
}

// Tracker stores the revision counters.
type Tracker interface {
	Bump(ctx context.Context, entity attendance.Entity) (int64, error)
	Current(ctx context.Context) (Revisions, error)
}

// MemoryTracker keeps counters in process memory.
type MemoryTracker struct {
	mu      sync.Mutex
	current Revisions
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

func (t *MemoryTracker) Bump(_ context.Context, entity attendance.Entity) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch entity {
	case attendance.EntityEmployees:
		t.current.Employees++
		return t.current.Employees, nil
	case attendance.EntityAttendance:
		t.current.Attendance++
		return t.current.Attendance, nil
	}
	return 0, fmt.Errorf("unknown entity %q", entity)
}

func (t *MemoryTracker) Current(_ context.Context) (Revisions, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, nil
}

// RedisTracker keeps counters in Redis so the API and worker processes
// observe the same values.
type RedisTracker struct {
	client *redis.Client
	prefix string
}

func NewRedisTracker(client *redis.Client, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = "hrms:revision:"
	}
	return &RedisTracker{client: client, prefix: prefix}
}

func (t *RedisTracker) Bump(ctx context.Context, entity attendance.Entity) (int64, error) {
	switch entity {
	case attendance.EntityEmployees, attendance.EntityAttendance:
	default:
		return 0, fmt.Errorf("unknown entity %q", entity)
	}
	return t.client.Incr(ctx, t.key(entity)).Result()
}

func (t *RedisTracker) Current(ctx context.Context) (Revisions, error) {
	values, err := t.client.MGet(ctx,
		t.key(attendance.EntityEmployees),
		t.key(attendance.EntityAttendance),
	).Result()
	if err != nil {
		return Revisions{}, fmt.Errorf("read revisions: %w", err)
	}

	employees, err := parseCounter(values[0])
	if err != nil {
		return Revisions{}, err
	}
	records, err := parseCounter(values[1])
	if err != nil {
		return Revisions{}, err
	}
	return Revisions{Employees: employees, Attendance: records}, nil
}

func (t *RedisTracker) key(entity attendance.Entity) string {
	return t.prefix + string(entity)
}

// parseCounter treats a missing key as zero.
func parseCounter(value any) (int64, error) {
	if value == nil {
		return 0, nil
	}
	raw, ok := value.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected revision value %T", value)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse revision %q: %w", raw, err)
	}
	return n, nil
}
