package params

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDocument stores the document as a hash at "{collection}:{document}".
// Each field holds the JSON encoding of its value.
type RedisDocument struct {
	client *redis.Client
	key    string
}

func NewRedisDocument(client *redis.Client, collection, document string) *RedisDocument {
	return &RedisDocument{client: client, key: collection + ":" + document}
}

// Key returns the hash key backing the document.
func (d *RedisDocument) Key() string {
	return d.key
}

func (d *RedisDocument) Get(ctx context.Context) (map[string]any, bool, error) {
	fields, err := d.client.HGetAll(ctx, d.key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", d.key, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	values := make(map[string]any, len(fields))
	for field, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, false, fmt.Errorf("decode %s.%s: %w", d.key, field, err)
		}
		values[field] = v
	}
	return values, true, nil
}

func (d *RedisDocument) SetMerge(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, 0, len(values)*2)
	for field, v := range values {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", field, err)
		}
		args = append(args, field, string(encoded))
	}
	if err := d.client.HSet(ctx, d.key, args...).Err(); err != nil {
		return fmt.Errorf("write %s: %w", d.key, err)
	}
	return nil
}
