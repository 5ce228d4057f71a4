package tasks

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	tu "github.com/desertthunder/animx/internal/testing"
)

func quietPoller(client StatusClient, attempts int) *Poller {
	return NewPoller(client, time.Millisecond, attempts, shared.NewLogger(io.Discard))
}

func TestPoller(t *testing.T) {
	ctx := context.Background()

	t.Run("pending, running, succeeded takes three polls", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			tu.Poll(models.StatePending),
			tu.Poll(models.StateRunning),
			tu.Poll(models.StateSucceeded, "https://cdn/a.png"),
		}}

		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if !out.OK() || out.ImageURL() != "https://cdn/a.png" {
			t.Fatalf("expected success, got %+v", out)
		}
		if client.PollCount() != 3 || out.Attempts != 3 {
			t.Errorf("expected 3 polls, got %d (attempts %d)", client.PollCount(), out.Attempts)
		}
	})

	t.Run("failed on first poll is not retried", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			{Status: &models.TaskStatus{State: models.StateFailed, Message: "image violates policy"}},
		}}

		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if out.Kind != models.OutcomeFailure || !errors.Is(out.Err, shared.ErrProviderFailure) {
			t.Fatalf("expected provider failure, got %+v", out)
		}
		if !strings.Contains(out.Error(), "image violates policy") {
			t.Errorf("expected provider reason in %q", out.Error())
		}
		if client.PollCount() != 1 {
			t.Errorf("expected 1 poll, got %d", client.PollCount())
		}
	})

	t.Run("failed without a message", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{tu.Poll(models.StateFailed)}}
		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if !strings.Contains(out.Error(), "unknown reason") {
			t.Errorf("expected fallback reason, got %q", out.Error())
		}
	})

	t.Run("always running exhausts the budget exactly", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{tu.Poll(models.StateRunning)}}

		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if out.Kind != models.OutcomeTimeout || !errors.Is(out.Err, shared.ErrPollingTimeout) {
			t.Fatalf("expected timeout, got %+v", out)
		}
		if client.PollCount() != 20 || out.Attempts != 20 {
			t.Errorf("expected exactly 20 polls, got %d", client.PollCount())
		}
	})

	t.Run("transient error then success", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			tu.PollErr("connection reset"),
			tu.Poll(models.StateSucceeded, "https://cdn/a.png"),
		}}

		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if !out.OK() {
			t.Fatalf("expected success, got %+v", out)
		}
		if client.PollCount() != 2 {
			t.Errorf("expected 2 polls, got %d", client.PollCount())
		}
	})

	t.Run("transient error on the last attempt surfaces", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			tu.Poll(models.StateRunning),
			tu.Poll(models.StateRunning),
			tu.PollErr("connection reset"),
		}}

		out := quietPoller(client, 3).Poll(ctx, "task-1", nil)
		if out.Kind != models.OutcomeFailure || !errors.Is(out.Err, shared.ErrTransientNetwork) {
			t.Fatalf("expected transient failure, got %+v", out)
		}
		if client.PollCount() != 3 {
			t.Errorf("expected 3 polls, got %d", client.PollCount())
		}
	})

	t.Run("earlier transient error is forgotten after a good poll", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			tu.PollErr("connection reset"),
			tu.Poll(models.StateRunning),
		}}

		out := quietPoller(client, 3).Poll(ctx, "task-1", nil)
		if out.Kind != models.OutcomeTimeout {
			t.Errorf("expected timeout, got %+v", out)
		}
	})

	t.Run("succeeded without results", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{tu.Poll(models.StateSucceeded)}}

		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if !errors.Is(out.Err, shared.ErrResultMissing) {
			t.Fatalf("expected ErrResultMissing, got %+v", out)
		}
		if client.PollCount() != 1 {
			t.Errorf("expected 1 poll, got %d", client.PollCount())
		}
	})

	t.Run("unrecognized status", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			{Status: &models.TaskStatus{State: models.StateUnknown, Raw: "CANCELED"}},
		}}

		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if !errors.Is(out.Err, shared.ErrUnknownStatus) || !strings.Contains(out.Error(), "CANCELED") {
			t.Fatalf("expected ErrUnknownStatus, got %+v", out)
		}
		if client.PollCount() != 1 {
			t.Errorf("expected 1 poll, got %d", client.PollCount())
		}
	})

	t.Run("missing credentials stop polling", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{{Err: shared.ErrMissingCredentials}}}
		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if !errors.Is(out.Err, shared.ErrMissingCredentials) || client.PollCount() != 1 {
			t.Errorf("expected immediate configuration failure, got %+v after %d polls", out, client.PollCount())
		}
	})

	t.Run("first poll is immediate and later polls are spaced", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			tu.Poll(models.StateRunning),
			tu.Poll(models.StateSucceeded, "https://cdn/a.png"),
		}}
		interval := 40 * time.Millisecond
		p := NewPoller(client, interval, 5, shared.NewLogger(io.Discard))

		start := time.Now()
		p.Poll(ctx, "task-1", nil)

		times := client.PollTimes()
		if len(times) != 2 {
			t.Fatalf("expected 2 polls, got %d", len(times))
		}
		if d := times[0].Sub(start); d >= interval {
			t.Errorf("first poll waited %s", d)
		}
		if d := times[1].Sub(times[0]); d < interval {
			t.Errorf("second poll came after %s, want at least %s", d, interval)
		}
	})

	t.Run("deadline during wait", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{tu.Poll(models.StateRunning)}}
		p := NewPoller(client, time.Hour, 20, shared.NewLogger(io.Discard))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		out := p.Poll(ctx, "task-1", nil)
		if !errors.Is(out.Err, shared.ErrRequestTimeout) {
			t.Fatalf("expected ErrRequestTimeout, got %+v", out)
		}
		if client.PollCount() != 1 || out.Attempts != 1 {
			t.Errorf("expected 1 poll, got %d", client.PollCount())
		}
	})

	t.Run("cancel during query", func(t *testing.T) {
		client := &tu.FakeTaskClient{BlockPolls: true}
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)

		out := quietPoller(client, 20).Poll(ctx, "task-1", nil)
		if !errors.Is(out.Err, shared.ErrRequestCanceled) {
			t.Errorf("expected ErrRequestCanceled, got %+v", out)
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		client := &tu.FakeTaskClient{Polls: []tu.PollResult{
			tu.Poll(models.StateRunning),
			tu.Poll(models.StateSucceeded, "https://cdn/a.png"),
		}}
		progress := make(chan ProgressUpdate, 16)

		quietPoller(client, 20).Poll(ctx, "task-1", progress)
		close(progress)

		var polls int
		for u := range progress {
			if u.Phase != Poll {
				t.Errorf("unexpected phase %s", u.Phase)
			}
			if u.Total != 20 {
				t.Errorf("expected total 20, got %d", u.Total)
			}
			polls++
		}
		if polls != 4 {
			t.Errorf("expected 4 updates, got %d", polls)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		p := NewPoller(nil, 0, 0, nil)
		if p.interval != DefaultInterval || p.maxAttempts != DefaultMaxAttempts {
			t.Errorf("unexpected defaults %s/%d", p.interval, p.maxAttempts)
		}
	})
}
