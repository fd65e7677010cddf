// Package redistest provides an in-memory redis.Client for tests
package redistest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

// Fake is an in-memory implementation of redis.Client.
// Sorted sets order members by score, then lexicographically, like Redis.
type Fake struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	zsets   map[string]map[string]float64
	sets    map[string]map[string]struct{}

	// Err, when set, is returned by every call
	Err error
}

// New creates an empty fake
func New() *Fake {
	return &Fake{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		zsets:   make(map[string]map[string]float64),
		sets:    make(map[string]map[string]struct{}),
	}
}

var _ redis.Client = (*Fake)(nil)

func (f *Fake) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.strings[key] = toString(value)
	return nil
}

func (f *Fake) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	v, ok := f.strings[key]
	if !ok {
		return "", fmt.Errorf("key %s does not exist", key)
	}
	return v, nil
}

func (f *Fake) HSet(ctx context.Context, key string, field string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	h[field] = toString(value)
	return nil
}

func (f *Fake) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) ZAdd(ctx context.Context, key string, score float64, member interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	z, ok := f.zsets[key]
	if !ok {
		z = make(map[string]float64)
		f.zsets[key] = z
	}
	z[toString(member)] = score
	return nil
}

func (f *Fake) ZCard(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	return int64(len(f.zsets[key])), nil
}

func (f *Fake) ZRangeByScoreWithScores(ctx context.Context, key string, min, max float64) ([]redis.ZMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []redis.ZMember
	for member, score := range f.zsets[key] {
		if score >= min && score <= max {
			out = append(out, redis.ZMember{Score: score, Member: member})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out, nil
}

func (f *Fake) SAdd(ctx context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	s, ok := f.sets[key]
	if !ok {
		s = make(map[string]struct{})
		f.sets[key] = s
	}
	for _, m := range members {
		s[toString(m)] = struct{}{}
	}
	return nil
}

func (f *Fake) SMembers(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return f.Err
}

func (f *Fake) Ping(ctx context.Context) error {
	return f.Err
}

func (f *Fake) Close() error {
	return nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
