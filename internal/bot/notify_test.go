package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-retry"

	"lead_bot/internal/model"
)

func newTestNotifier(api *mockAPI) *Notifier {
	n := NewNotifier(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.now = func() time.Time { return now }
	n.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	return n
}

func TestNotifierDeliver(t *testing.T) {
	note := model.Notification{Post: samplePost(), Phrase: "hire remote developer"}

	tests := []struct {
		name     string
		errs     []error
		wantErr  string
		wantSent int
	}{
		{
			name:     "first attempt",
			wantSent: 1,
		},
		{
			name:     "transient failure then success",
			errs:     []error{errors.New("connection reset"), errors.New("Too Many Requests: retry after 1")},
			wantSent: 1,
		},
		{
			name:    "retries exhausted",
			errs:    []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
			wantErr: "after 3 attempt(s): timeout",
		},
		{
			name:    "permanent failure stops at once",
			errs:    []error{errors.New("Forbidden: bot was blocked by the user")},
			wantErr: "after 1 attempt(s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{errs: tt.errs}
			err := newTestNotifier(api).Deliver(context.Background(), 555, note)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Deliver() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Deliver() unexpected error: %v", err)
			}
			want := []sentMsg{{ChatID: 555, Text: FormatNotification(note, now)}}
			if diff := cmp.Diff(want, api.sent); diff != "" {
				t.Errorf("sent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotifierDeliverCancelled(t *testing.T) {
	api := &mockAPI{errs: []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")}}
	n := newTestNotifier(api)
	n.backoff = func() retry.Backoff { return retry.NewConstant(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Deliver(ctx, 555, model.Notification{Post: samplePost(), Phrase: "x"}); err == nil {
		t.Fatal("Deliver() on cancelled context returned nil")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Bad Request: chat not found"), false},
		{errors.New("Forbidden: bot was blocked by the user"), false},
		{errors.New("Forbidden: user is deactivated"), false},
		{errors.New("Bad Request: message is too long"), false},
		{errors.New("Too Many Requests: retry after 5"), true},
		{errors.New("read tcp: connection reset by peer"), true},
	}
	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
