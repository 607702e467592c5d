// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"
)

// TypedCache keeps JSON-encoded values of type T under one key namespace
// of a Cacher. Concurrent GetOrSet misses on a key share one load.
type TypedCache[T any] struct {
	backend   Cacher
	namespace string
	ttl       time.Duration
	loads     singleflight.Group
}

// NewTypedCache returns a cache whose keys are prefixed with namespace.
func NewTypedCache[T any](backend Cacher, namespace string, ttl time.Duration) *TypedCache[T] {
	return &TypedCache[T]{backend: backend, namespace: namespace, ttl: ttl}
}

func (c *TypedCache[T]) key(k string) string {
	return c.namespace + k
}

// Get returns the value stored under k. Entries that no longer decode as T
// are dropped and reported as misses.
func (c *TypedCache[T]) Get(ctx context.Context, k string) (T, bool) {
	var v T
	data, err := c.backend.Get(ctx, c.key(k))
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		_ = c.backend.Delete(ctx, c.key(k))
		var zero T
		return zero, false
	}
	return v, true
}

// Set stores v under k for the cache TTL.
func (c *TypedCache[T]) Set(ctx context.Context, k string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, c.key(k), data, c.ttl)
}

// Delete drops k.
func (c *TypedCache[T]) Delete(ctx context.Context, k string) error {
	return c.backend.Delete(ctx, c.key(k))
}

// Invalidate drops every key of the namespace.
func (c *TypedCache[T]) Invalidate(ctx context.Context) error {
	return c.backend.DeleteByPrefix(ctx, c.namespace)
}

// GetOrSet returns the value under k, or loads and stores it. hit reports
// whether it came from the cache. The shared load is not canceled when the
// caller that started it goes away; a failed store still returns the value.
func (c *TypedCache[T]) GetOrSet(ctx context.Context, k string, load func(ctx context.Context) (T, error)) (v T, hit bool, err error) {
	if v, ok := c.Get(ctx, k); ok {
		return v, true, nil
	}

	ch := c.loads.DoChan(k, func() (any, error) {
		lctx := context.WithoutCancel(ctx)
		v, err := load(lctx)
		if err != nil {
			return nil, err
		}
		_ = c.Set(lctx, k, v)
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return v, false, res.Err
		}
		return res.Val.(T), false, nil
	case <-ctx.Done():
		return v, false, context.Cause(ctx)
	}
}
