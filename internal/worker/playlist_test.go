package worker

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cwygoda/transcriber/internal/domain"
)

// mockResolver implements domain.PlaylistResolver for testing.
type mockResolver struct {
	playlists map[string][]string
	err       error
	calls     []string
}

func (m *mockResolver) Name() string { return "mock" }

func (m *mockResolver) VideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	m.calls = append(m.calls, playlistID)
	if m.err != nil {
		return nil, m.err
	}
	return m.playlists[playlistID], nil
}

func TestRunner_ExpandsPlaylist(t *testing.T) {
	src := newMockSource().
		on("aaaaaaaaaaa", mockResponse{title: "First", text: []string{"one"}}).
		on("bbbbbbbbbbb", mockResponse{title: "Second", text: []string{"two"}}).
		on("ccccccccccc", mockResponse{title: "Third", text: []string{"three"}}).
		on("ddddddddddd", mockResponse{title: "Fourth", text: []string{"four"}})
	res := &mockResolver{playlists: map[string][]string{"PL123": {"bbbbbbbbbbb", "ccccccccccc"}}}
	store := newTestStore(t)
	r, sl := newTestRunner(t, src, store, Options{MinDelay: time.Second, MaxDelay: time.Second, Playlists: res}, nil)

	out := r.Run(context.Background(), []string{
		"https://youtu.be/aaaaaaaaaaa",
		"https://www.youtube.com/playlist?list=PL123",
		"https://youtu.be/ddddddddddd",
	})

	if out.Attempted != 4 || out.Succeeded != 4 {
		t.Fatalf("outcome = %d/%d, want 4/4", out.Attempted, out.Succeeded)
	}
	wantIDs := []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc", "ddddddddddd"}
	for i, want := range wantIDs {
		if got := out.Items[i].VideoID; got != want {
			t.Errorf("item %d id = %q, want %q", i, got, want)
		}
	}
	for _, i := range []int{1, 2} {
		if out.Items[i].Playlist != "PL123" || out.Items[i].Line != 2 {
			t.Errorf("item %d playlist/line = %q/%d, want PL123/2", i, out.Items[i].Playlist, out.Items[i].Line)
		}
	}
	if out.Items[0].Playlist != "" {
		t.Errorf("direct item Playlist = %q, want empty", out.Items[0].Playlist)
	}
	if len(res.calls) != 1 {
		t.Errorf("resolver calls = %v, want 1", res.calls)
	}
	if files := listFiles(t, store.Dir()); len(files) != 4 {
		t.Errorf("files = %v, want 4", files)
	}
	// Five queue steps: a, playlist, b, c, d.
	if len(sl.waits) != 4 {
		t.Errorf("pacing sleeps = %d, want 4", len(sl.waits))
	}
}

func TestRunner_WatchURLWithListIsVideo(t *testing.T) {
	src := newMockSource().on("dQw4w9WgXcQ", mockResponse{title: "t", text: []string{"x"}})
	res := &mockResolver{}
	r, _ := newTestRunner(t, src, newTestStore(t), Options{Playlists: res}, nil)

	out := r.Run(context.Background(), []string{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123"})

	if out.Succeeded != 1 {
		t.Fatalf("Succeeded = %d, want 1", out.Succeeded)
	}
	if len(res.calls) != 0 {
		t.Errorf("resolver called for a watch URL: %v", res.calls)
	}
}

func TestRunner_PlaylistFailures(t *testing.T) {
	tests := []struct {
		name     string
		resolver domain.PlaylistResolver
		want     domain.Category
	}{
		{"no resolver", nil, domain.CategoryInvalidURL},
		{"rate limited", &mockResolver{err: domain.NewFetchError(domain.CategoryRateLimited, "PL123", nil)}, domain.CategoryRateLimited},
		{"missing playlist", &mockResolver{err: domain.NewFetchError(domain.CategoryVideoUnavailable, "PL123", nil)}, domain.CategoryVideoUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newMockSource().on("dQw4w9WgXcQ", mockResponse{title: "t", text: []string{"x"}})
			r, _ := newTestRunner(t, src, newTestStore(t), Options{Playlists: tt.resolver}, nil)

			out := r.Run(context.Background(), []string{
				"https://www.youtube.com/playlist?list=PL123",
				"https://youtu.be/dQw4w9WgXcQ",
			})

			if out.Attempted != 2 || out.Succeeded != 1 || out.Failed != 1 {
				t.Fatalf("outcome = %d/%d/%d, want 2/1/1", out.Attempted, out.Succeeded, out.Failed)
			}
			first := out.Items[0]
			if first.Category != tt.want {
				t.Errorf("Category = %q, want %q", first.Category, tt.want)
			}
			if first.Playlist != "PL123" || first.Line != 1 {
				t.Errorf("Playlist/Line = %q/%d", first.Playlist, first.Line)
			}
		})
	}
}

func TestRunner_EmptyPlaylist(t *testing.T) {
	var logs bytes.Buffer
	res := &mockResolver{playlists: map[string][]string{}}
	r, _ := newTestRunner(t, newMockSource(), newTestStore(t), Options{Playlists: res}, &logs)

	out := r.Run(context.Background(), []string{"https://www.youtube.com/playlist?list=PL123"})

	if out.Attempted != 0 {
		t.Errorf("Attempted = %d, want 0", out.Attempted)
	}
	if !strings.Contains(logs.String(), "playlist has no videos") {
		t.Errorf("missing empty playlist warning in logs:\n%s", logs.String())
	}
}

func TestRunner_InterruptDuringPlaylist(t *testing.T) {
	res := &mockResolver{err: domain.NewFetchError(domain.CategoryInterrupted, "PL123", context.Canceled)}
	src := newMockSource().on("dQw4w9WgXcQ", mockResponse{title: "t", text: []string{"x"}})
	r, _ := newTestRunner(t, src, newTestStore(t), Options{Playlists: res}, nil)

	out := r.Run(context.Background(), []string{
		"https://www.youtube.com/playlist?list=PL123",
		"https://youtu.be/dQw4w9WgXcQ",
	})

	if out.Attempted != 1 || out.Items[0].Category != domain.CategoryInterrupted {
		t.Fatalf("outcome = %+v, want a single interrupted item", out.Items)
	}
	if src.calls["dQw4w9WgXcQ"] != 0 {
		t.Error("run continued after interruption")
	}
}

func TestWriteURLList(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteURLList(&buf, []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}); err != nil {
		t.Fatalf("WriteURLList() error = %v", err)
	}
	want := "https://www.youtube.com/watch?v=aaaaaaaaaaa\nhttps://www.youtube.com/watch?v=bbbbbbbbbbb\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	lines, err := ReadURLList(&buf)
	if err != nil || len(lines) != 2 {
		t.Errorf("ReadURLList() = %v, %v", lines, err)
	}
}
