package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAlignsWithOffset(t *testing.T) {
	s := New(Options{Interval: 24 * time.Hour, Offset: 22 * time.Hour}, zerolog.Nop())

	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC), time.Date(2024, 3, 6, 22, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC), time.Date(2024, 3, 6, 22, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := s.NextTick(tc.now); !got.Equal(tc.want) {
			t.Fatalf("NextTick(%s) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestNewNormalisesOffset(t *testing.T) {
	s := New(Options{Interval: time.Hour, Offset: 90 * time.Minute}, zerolog.Nop())
	if s.opts.Offset != 30*time.Minute {
		t.Fatalf("offset not reduced modulo interval: %s", s.opts.Offset)
	}
}

func TestRunOnStartThenCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, RunOnStart: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := s.Run(ctx, func(ctx context.Context, at time.Time) error {
		calls++
		cancel()
		return errors.New("tick errors are logged, not returned")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one immediate tick, got %d", calls)
	}
}

func TestRunFiresOnInterval(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ticks := make(chan time.Time, 2)
	err := s.Run(ctx, func(ctx context.Context, at time.Time) error {
		ticks <- at
		if len(ticks) == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation after two ticks, got %v", err)
	}
	first, second := <-ticks, <-ticks
	gap := second.Sub(first)
	if gap <= 0 || gap%(20*time.Millisecond) != 0 {
		t.Fatalf("ticks not aligned to the interval: %s", gap)
	}
}

func TestRunStartupDelayRespectsContext(t *testing.T) {
	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour, RunOnStart: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, func(ctx context.Context, at time.Time) error {
		t.Fatal("tick must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
