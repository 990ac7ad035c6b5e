package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitHealthy(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		got, err := waitHealthy(ctx, newTestClient(t).Health, 0)
		if err != nil || got != "ok" {
			t.Fatalf("got %q, %v", got, err)
		}
	})

	t.Run("single attempt", func(t *testing.T) {
		calls := 0
		_, err := waitHealthy(ctx, func(context.Context) (string, error) {
			calls++
			return "", errors.New("connection refused")
		}, 0)
		if err == nil || calls != 1 {
			t.Fatalf("calls = %d, err = %v", calls, err)
		}
	})

	t.Run("polls until ok", func(t *testing.T) {
		calls := 0
		got, err := waitHealthy(ctx, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "starting", nil
			}
			return "ok", nil
		}, 5*time.Second)
		if err != nil || got != "ok" || calls != 3 {
			t.Fatalf("got %q after %d calls, err = %v", got, calls, err)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		got, err := waitHealthy(ctx, func(context.Context) (string, error) {
			return "degraded", nil
		}, 10*time.Millisecond)
		if err != nil || got != "degraded" {
			t.Fatalf("got %q, %v", got, err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := waitHealthy(cctx, func(context.Context) (string, error) {
			return "", errors.New("down")
		}, time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}
