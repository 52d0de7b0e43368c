package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lead_bot/internal/extractor"
	"lead_bot/internal/fetcher"
	"lead_bot/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRenderer struct {
	respond func(u string) (string, error)

	mu      sync.Mutex
	fetched []string
	opened  int
	closed  int
}

func (f *fakeRenderer) Open(_ context.Context) (fetcher.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return &fakeSession{r: f}, nil
}

type fakeSession struct {
	r *fakeRenderer
}

func (s *fakeSession) Fetch(_ context.Context, req fetcher.Request) (*fetcher.Page, error) {
	s.r.mu.Lock()
	s.r.fetched = append(s.r.fetched, req.URL)
	s.r.mu.Unlock()
	body, err := s.r.respond(req.URL)
	if err != nil {
		return nil, err
	}
	return &fetcher.Page{URL: req.URL, Body: body}, nil
}

func (s *fakeSession) Close() error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.closed++
	return nil
}

// lines parses "id|title" per line.
func lines(_ string, body string) ([]model.Post, error) {
	if body == "garbage" {
		return nil, errors.New("unparseable")
	}
	var posts []model.Post
	for _, l := range strings.Split(strings.TrimSpace(body), "\n") {
		id, title, ok := strings.Cut(l, "|")
		if !ok {
			continue
		}
		posts = append(posts, model.Post{ID: id, Title: title})
	}
	return posts, nil
}

func tech(name string, urls ...string) Technique {
	return Technique{
		Name:  name,
		URLs:  func(string, model.Window) []string { return urls },
		Parse: lines,
	}
}

func TestSearchCascade(t *testing.T) {
	tests := []struct {
		name        string
		techniques  []Technique
		pages       map[string]string
		fail        map[string]bool
		want        []model.Post
		wantFetched []string
	}{
		{
			name:       "first technique throws, second wins, rest never run",
			techniques: []Technique{tech("one", "u1"), tech("two", "u2"), tech("three", "u3"), tech("four", "u4")},
			fail:       map[string]bool{"u1": true},
			pages: map[string]string{
				"u2": "a|Looking to hire remote developer now\nb|unrelated title",
				"u3": "c|hire remote developer asap",
			},
			want:        []model.Post{{ID: "a", Title: "Looking to hire remote developer now"}},
			wantFetched: []string{"u1", "u2"},
		},
		{
			name:       "technique with only unmatched posts falls through",
			techniques: []Technique{tech("one", "u1"), tech("two", "u2")},
			pages: map[string]string{
				"u1": "x|developer hire remote",
				"u2": "y|we hire remote developer teams",
			},
			want:        []model.Post{{ID: "y", Title: "we hire remote developer teams"}},
			wantFetched: []string{"u1", "u2"},
		},
		{
			name:       "parse failure is skipped",
			techniques: []Technique{tech("one", "u1"), tech("two", "u2")},
			pages: map[string]string{
				"u1": "garbage",
				"u2": "z|hire remote developer",
			},
			want:        []model.Post{{ID: "z", Title: "hire remote developer"}},
			wantFetched: []string{"u1", "u2"},
		},
		{
			name:        "multi page technique stops at first non-empty page",
			techniques:  []Technique{tech("topics", "r/a", "r/b", "r/c")},
			pages:       map[string]string{"r/a": "", "r/b": "k|hire remote developer", "r/c": "m|hire remote developer"},
			want:        []model.Post{{ID: "k", Title: "hire remote developer"}},
			wantFetched: []string{"r/a", "r/b"},
		},
		{
			name:        "everything fails yields empty result",
			techniques:  []Technique{tech("one", "u1"), tech("two", "u2")},
			fail:        map[string]bool{"u1": true, "u2": true},
			want:        nil,
			wantFetched: []string{"u1", "u2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRenderer{respond: func(u string) (string, error) {
				if tt.fail[u] {
					return "", errors.New("timeout")
				}
				return tt.pages[u], nil
			}}
			s := New(r, discard, tt.techniques...)

			got, err := s.Search(context.Background(), "hire remote developer", model.WindowWeek)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantFetched, r.fetched); diff != "" {
				t.Errorf("fetched URLs mismatch (-want +got):\n%s", diff)
			}
			if r.opened != r.closed {
				t.Errorf("opened %d sessions but closed %d", r.opened, r.closed)
			}
			if r.opened != len(tt.wantFetched) {
				t.Errorf("opened %d sessions, want one per fetch (%d)", r.opened, len(tt.wantFetched))
			}
		})
	}
}

type failingOpen struct{}

func (failingOpen) Open(context.Context) (fetcher.Session, error) {
	return nil, errors.New("chrome not found")
}

func TestSearchOpenFailureIsNotFatal(t *testing.T) {
	s := New(failingOpen{}, discard, tech("one", "u1"), tech("two", "u2"))
	got, err := s.Search(context.Background(), "hire", model.WindowDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Search() = %v, want nil", got)
	}
}

func TestSearchContextCancelled(t *testing.T) {
	r := &fakeRenderer{respond: func(string) (string, error) { return "", nil }}
	s := New(r, discard, tech("one", "u1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Search(ctx, "hire", model.WindowDay); !errors.Is(err, context.Canceled) {
		t.Errorf("Search() error = %v, want context.Canceled", err)
	}
	if len(r.fetched) != 0 {
		t.Errorf("fetched %v after cancel", r.fetched)
	}
}

func TestBuildTechniques(t *testing.T) {
	ex := extractor.New(discard)
	ts, err := BuildTechniques(Options{Topics: []string{"golang", "forhire"}}, ex)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	s := New(nil, discard, ts...)
	if diff := cmp.Diff(DefaultOrder, s.Techniques()); diff != "" {
		t.Errorf("Techniques() mismatch (-want +got):\n%s", diff)
	}

	var got []string
	for _, tc := range ts {
		got = append(got, tc.URLs("hire remote developer", model.WindowYesterday)...)
	}
	want := []string{
		"https://www.reddit.com/search/?q=hire+remote+developer&sort=new&t=week",
		"https://old.reddit.com/search?q=hire+remote+developer&sort=new&t=week",
		"https://www.reddit.com/r/golang/search/?q=hire+remote+developer&restrict_sr=1&sort=new&t=week",
		"https://www.reddit.com/r/forhire/search/?q=hire+remote+developer&restrict_sr=1&sort=new&t=week",
		"https://www.reddit.com/search.json?limit=25&q=hire+remote+developer&sort=new&t=week",
		"https://www.reddit.com/search.rss?q=hire+remote+developer&sort=new&t=week",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("technique URLs mismatch (-want +got):\n%s", diff)
	}

	if ts[0].Settle != 5*time.Second || ts[1].Settle != 3*time.Second {
		t.Errorf("settle delays = %s, %s; want 5s, 3s", ts[0].Settle, ts[1].Settle)
	}
}

func TestBuildTechniquesCustomOrder(t *testing.T) {
	ts, err := BuildTechniques(Options{Order: []string{"JSON", " feed "}, BaseURL: "http://localhost:9999/"}, extractor.New(discard))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(ts) != 2 || ts[0].Name != TechJSON || ts[1].Name != TechFeed {
		t.Fatalf("techniques = %v", New(nil, discard, ts...).Techniques())
	}
	if got := ts[0].URLs("go", model.WindowHour)[0]; got != "http://localhost:9999/search.json?limit=25&q=go&sort=new&t=hour" {
		t.Errorf("json URL = %q", got)
	}

	if _, err := BuildTechniques(Options{Order: []string{"telepathy"}}, extractor.New(discard)); err == nil {
		t.Error("expected error for unknown technique")
	}
}

func TestTimeParam(t *testing.T) {
	tests := map[model.Window]string{
		model.WindowHour:      "hour",
		model.WindowDay:       "day",
		model.WindowYesterday: "week",
		model.WindowWeek:      "week",
		model.WindowMonth:     "month",
		model.Window("bogus"): "day",
	}
	for w, want := range tests {
		if got := TimeParam(w); got != want {
			t.Errorf("TimeParam(%q) = %q, want %q", w, got, want)
		}
	}
}
