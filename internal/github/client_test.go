package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forgevault/github-backup/internal/config"
)

func testClient(srv *httptest.Server) *Client {
	c := NewClient(srv.Client())
	c.retryBase = time.Millisecond
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

type item struct {
	Name string `json:"name"`
}

func TestForEachPageFollowsNextLinks(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items":
			w.Header().Set("Link", fmt.Sprintf(`<%s/items2>; rel="next", <%s/items>; rel="first"`, srv.URL, srv.URL))
			fmt.Fprint(w, `[{"name":"a"},{"name":"b"}]`)
		case "/items2":
			fmt.Fprint(w, `[{"name":"c"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var got []string
	err := ForEachPage(context.Background(), testClient(srv), srv.URL+"/items", config.Credentials{}, func(i item) error {
		got = append(got, i.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachPage returned error: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	var out map[string]bool
	if err := testClient(srv).Get(context.Background(), srv.URL, config.Credentials{}, &out); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out any
	err := testClient(srv).Get(context.Background(), srv.URL, config.Credentials{}, &out)
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != maxAttempts {
		t.Errorf("server saw %d attempts, want %d", attempts, maxAttempts)
	}
	var serr *StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected a wrapped StatusError, got %v", err)
	}
}

func TestDoRateLimitRetriesOnce(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	slept := time.Duration(0)
	c := testClient(srv)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept += d
		return nil
	}

	var out map[string]bool
	if err := c.Get(context.Background(), srv.URL, config.Credentials{}, &out); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("server saw %d attempts, want 2", attempts)
	}
	if slept < 50*time.Minute {
		t.Errorf("expected a sleep until the advertised reset, slept %v", slept)
	}
}

func TestDoRateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Unix()))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(srv)
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	var out any
	err := c.Get(context.Background(), srv.URL, config.Credentials{}, &out)
	var rlerr *RateLimitError
	if !errors.As(err, &rlerr) {
		t.Errorf("expected a RateLimitError, got %v", err)
	}
}

func TestDoTerminalStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/secret":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient(srv)

	var out any
	err := c.Get(context.Background(), srv.URL+"/secret", config.Credentials{}, &out)
	var aerr *AuthError
	if !errors.As(err, &aerr) {
		t.Errorf("expected an AuthError for 401, got %v", err)
	}

	err = c.Get(context.Background(), srv.URL+"/missing", config.Credentials{}, &out)
	var serr *StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusNotFound {
		t.Errorf("expected a StatusError for 404, got %v", err)
	}
}

func TestDoAttachesCredentials(t *testing.T) {
	var authorization string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := testClient(srv)
	var out any

	if err := c.Get(context.Background(), srv.URL, config.TokenCredentials("tok"), &out); err != nil {
		t.Fatal(err)
	}
	if authorization != "Bearer tok" {
		t.Errorf("token credentials sent %q", authorization)
	}

	if err := c.Get(context.Background(), srv.URL, config.UsernamePasswordCredentials("u", "p"), &out); err != nil {
		t.Fatal(err)
	}
	if authorization == "" || authorization == "Bearer tok" {
		t.Errorf("basic credentials sent %q", authorization)
	}

	if err := c.Get(context.Background(), srv.URL, config.Credentials{}, &out); err != nil {
		t.Fatal(err)
	}
	if authorization != "" {
		t.Errorf("unauthenticated request sent %q", authorization)
	}
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{`<https://api.github.com/user/repos?page=2>; rel="next", <https://api.github.com/user/repos?page=10>; rel="last"`, "https://api.github.com/user/repos?page=2"},
		{`<https://api.github.com/user/repos?page=10>; rel="last"`, ""},
		{`<https://x/p?page=2>; rel=next`, "https://x/p?page=2"},
	}

	for _, tt := range tests {
		if got := nextLink(tt.header); got != tt.want {
			t.Errorf("nextLink(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestUntilReset(t *testing.T) {
	now := time.Unix(1000, 0)
	if d := untilReset("4000", now); d != 3000*time.Second {
		t.Errorf("untilReset future = %v", d)
	}
	if d := untilReset("500", now); d != time.Second {
		t.Errorf("untilReset past = %v, want 1s floor", d)
	}
	if d := untilReset("garbage", now); d != time.Second {
		t.Errorf("untilReset garbage = %v, want 1s floor", d)
	}
}
