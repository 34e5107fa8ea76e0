package querycache

import (
	"context"
	"fmt"
)

// GetData returns the cached value for key if it holds a T.
func GetData[T any](c *Cache, key Key) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// SetData is Set with a typed value.
func SetData[T any](c *Cache, key Key, value T) {
	c.Set(key, value)
}

// FetchAs is Fetch for a typed loader.
func FetchAs[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error), opts ...FetchOption) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %v holds %T", key, v)
	}
	return t, nil
}
