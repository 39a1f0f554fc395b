package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KevinTran99/MovieContest/internal/domain"
	"github.com/KevinTran99/MovieContest/internal/registry"
	"github.com/KevinTran99/MovieContest/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestRouter(t *testing.T) (*gin.Engine, *registry.Registry, *fixedClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}
	reg := registry.New(memory.NewStore(), registry.Options{Clock: clock, Logger: logger})

	ctx := context.Background()
	if err := reg.AddContest(ctx, 10, "Oscars"); err != nil {
		t.Fatalf("AddContest: %v", err)
	}
	for _, title := range []string{"Heat", "Up"} {
		if err := reg.AddMovie(ctx, 10, 10, "Oscars", title); err != nil {
			t.Fatalf("AddMovie: %v", err)
		}
	}
	return NewRouter(reg, logger), reg, clock
}

func do(t *testing.T, r http.Handler, path string) (int, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v (body=%s)", path, err, w.Body.String())
	}
	return w.Code, resp
}

func TestRouter_Health(t *testing.T) {
	r, _, _ := newTestRouter(t)

	code, resp := do(t, r, "/health")
	if code != http.StatusOK || resp.Code != 0 {
		t.Fatalf("health = %d %+v", code, resp)
	}
}

func TestRouter_ContestAndMovies(t *testing.T) {
	r, _, _ := newTestRouter(t)

	code, resp := do(t, r, "/api/v1/contests/10/Oscars")
	if code != http.StatusOK {
		t.Fatalf("contest status = %d %+v", code, resp)
	}
	data := resp.Data.(map[string]any)
	if data["name"] != "Oscars" || data["status"] != "not_started" {
		t.Fatalf("unexpected contest: %+v", data)
	}

	code, resp = do(t, r, "/api/v1/contests/10/Oscars/movies")
	if code != http.StatusOK {
		t.Fatalf("movies status = %d", code)
	}
	movies := resp.Data.([]any)
	if len(movies) != 2 || movies[0].(map[string]any)["title"] != "Heat" {
		t.Fatalf("unexpected movies: %+v", movies)
	}
}

func TestRouter_MovieLookup(t *testing.T) {
	r, _, _ := newTestRouter(t)

	tests := []struct {
		path       string
		wantStatus int
		wantExists bool
	}{
		{"/api/v1/contests/10/Oscars/movies/Up", http.StatusOK, true},
		{"/api/v1/contests/10/Oscars/movies/up", http.StatusOK, false},
		{"/api/v1/contests/10/Oscars/movies/Dune", http.StatusOK, false},
		{"/api/v1/contests/11/Oscars/movies/Up", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, resp := do(t, r, tt.path)
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", code, tt.wantStatus, resp)
			}
			if code != http.StatusOK {
				return
			}
			data := resp.Data.(map[string]any)
			if data["exists"] != tt.wantExists {
				t.Fatalf("exists = %v, want %v", data["exists"], tt.wantExists)
			}
		})
	}
}

func TestRouter_Errors(t *testing.T) {
	r, _, _ := newTestRouter(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/contests/10/Missing", http.StatusNotFound},
		{"/api/v1/contests/abc/Oscars", http.StatusBadRequest},
		{"/api/v1/contests/10/Oscars/winner", http.StatusConflict},
		{"/api/v1/contests/11/Oscars/movies", http.StatusNotFound},
	}
	for _, tt := range tests {
		code, resp := do(t, r, tt.path)
		if code != tt.want || resp.Code != tt.want || resp.Msg == "" {
			t.Fatalf("%s: got %d %+v, want %d", tt.path, code, resp, tt.want)
		}
	}
}

func TestRouter_Winner(t *testing.T) {
	r, reg, clock := newTestRouter(t)
	ctx := context.Background()

	if err := reg.StartContest(ctx, 10, 10, "Oscars", 1); err != nil {
		t.Fatalf("StartContest: %v", err)
	}
	clock.now = clock.now.Add(2 * time.Second)
	if _, err := reg.EndContest(ctx, 10, 10, "Oscars"); err != nil {
		t.Fatalf("EndContest: %v", err)
	}

	code, resp := do(t, r, "/api/v1/contests/10/Oscars/winner")
	if code != http.StatusOK {
		t.Fatalf("winner status = %d %+v", code, resp)
	}
	data := resp.Data.(map[string]any)
	if data["winner"] != domain.TieResult || data["tie"] != true {
		t.Fatalf("unexpected winner payload: %+v", data)
	}
}

func TestRouter_NoMutatingRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contests/10/Oscars/movies", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("POST returned %d, want 404", w.Code)
	}
}
