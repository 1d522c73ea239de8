package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the tree in Redis: one JSON document per leaf value plus a set
// of child names per object, so reads of a parent see children written later
// (answers pushed under a session, for example).
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis wraps a connected client. Keys are namespaced under prefix.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "quizflow"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedis(rdb, prefix), nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) docKey(path string) string {
	return r.prefix + ":doc:/" + Join(path)
}

func (r *Redis) kidsKey(path string) string {
	return r.prefix + ":kids:/" + Join(path)
}

// Get assembles the subtree at path.
func (r *Redis) Get(ctx context.Context, path string) (Node, error) {
	val, ok, err := r.load(ctx, Join(path))
	if err != nil {
		return Node{}, err
	}
	key := lastSegment(Split(path))
	if !ok {
		return Node{Key: key}, nil
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return Node{}, fmt.Errorf("snapshot %q: %w", path, err)
	}
	return NewNode(key, raw), nil
}

func (r *Redis) load(ctx context.Context, path string) (any, bool, error) {
	var val any
	exists := false

	raw, err := r.rdb.Get(ctx, r.docKey(path)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, false, fmt.Errorf("get %q: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &val); err != nil {
			return nil, false, fmt.Errorf("decode %q: %w", path, err)
		}
		exists = true
	}

	kids, err := r.rdb.SMembers(ctx, r.kidsKey(path)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("list children of %q: %w", path, err)
	}
	if len(kids) == 0 {
		return val, exists, nil
	}

	// A leaf document under written children is overlaid, not replaced.
	obj := map[string]any{}
	switch doc := val.(type) {
	case map[string]any:
		obj = doc
	case []any:
		for i, v := range doc {
			if v != nil {
				obj[strconv.Itoa(i)] = v
			}
		}
	}
	for _, k := range kids {
		child, ok, err := r.load(ctx, Join(path, k))
		if err != nil {
			return nil, false, err
		}
		if ok {
			obj[k] = child
		}
	}
	if len(obj) == 0 {
		return nil, false, nil
	}
	return obj, true, nil
}

// Push stores v under a time-ordered generated key.
func (r *Redis) Push(ctx context.Context, path string, v any) (string, error) {
	key, err := newPushKey()
	if err != nil {
		return "", err
	}
	if err := r.Set(ctx, Join(path, key), v); err != nil {
		return "", err
	}
	return key, nil
}

// Set replaces the subtree at path with v and links path into every
// ancestor's child set. Objects are split so each document holds a leaf value
// and later writes below path never hide its siblings. A nil v deletes path.
func (r *Redis) Set(ctx context.Context, path string, v any) error {
	val, err := normalize(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", path, err)
	}
	segs := Split(path)
	full := Join(segs...)

	stale, err := r.subtreeKeys(ctx, full, nil)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		if val == nil {
			if len(segs) > 0 {
				pipe.SRem(ctx, r.kidsKey(Join(segs[:len(segs)-1]...)), segs[len(segs)-1])
			}
			return nil
		}
		if err := r.write(ctx, pipe, full, val); err != nil {
			return err
		}
		for i := len(segs); i > 0; i-- {
			parent := Join(segs[:i-1]...)
			pipe.SAdd(ctx, r.kidsKey(parent), segs[i-1])
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	return nil
}

// write queues v at path, one document per non-object value.
func (r *Redis) write(ctx context.Context, pipe redis.Pipeliner, path string, v any) error {
	if obj, ok := v.(map[string]any); ok && len(obj) > 0 {
		for k, child := range obj {
			if child == nil {
				continue
			}
			pipe.SAdd(ctx, r.kidsKey(path), k)
			if err := r.write(ctx, pipe, Join(path, k), child); err != nil {
				return err
			}
		}
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", path, err)
	}
	pipe.Set(ctx, r.docKey(path), data, 0)
	return nil
}

// subtreeKeys appends the document and child-set keys of path and everything
// below it.
func (r *Redis) subtreeKeys(ctx context.Context, path string, keys []string) ([]string, error) {
	keys = append(keys, r.docKey(path), r.kidsKey(path))
	kids, err := r.rdb.SMembers(ctx, r.kidsKey(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("list children of %q: %w", path, err)
	}
	for _, k := range kids {
		if keys, err = r.subtreeKeys(ctx, Join(path, k), keys); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
