package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/slowscan/pkg/sstv"
)

func pass(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func fail(name, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

func fixed(name string) func() string {
	return func() string { return name }
}

// probe serves path through a mux with h registered and decodes the report.
func probe(t *testing.T, h *Handler, path string) (int, Report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("%s Content-Type = %q", path, ct)
	}
	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("%s: decode: %v", path, err)
	}
	return rec.Code, rep
}

func TestHealthz(t *testing.T) {
	// Liveness ignores both failing checkers and draining.
	h := New(fail("modes", "none"))
	h.SetDraining(true)
	code, rep := probe(t, h, "/healthz")
	if code != http.StatusOK || rep.Status != StatusOK {
		t.Errorf("healthz = %d %q, want 200 ok", code, rep.Status)
	}
	if rep.Checks != nil {
		t.Errorf("healthz ran checkers: %v", rep.Checks)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		draining bool
		wantCode int
		want     string
		wantErr  map[string]string
	}{
		{"no checkers", nil, false, http.StatusOK, StatusOK, nil},
		{"all pass", []Checker{pass("modes"), pass("output_dir")}, false, http.StatusOK, StatusOK, nil},
		{"one fails", []Checker{pass("modes"), fail("output_dir", "read-only file system")}, false,
			http.StatusServiceUnavailable, StatusFail, map[string]string{"output_dir": "read-only file system"}},
		{"draining", []Checker{pass("modes")}, true, http.StatusServiceUnavailable, StatusDraining, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.checkers...)
			h.SetDraining(tt.draining)
			code, rep := probe(t, h, "/readyz")
			if code != tt.wantCode || rep.Status != tt.want {
				t.Fatalf("readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.want)
			}
			if tt.draining {
				if len(rep.Checks) != 0 {
					t.Errorf("draining handler ran checkers: %v", rep.Checks)
				}
				return
			}
			if len(rep.Checks) != len(tt.checkers) {
				t.Errorf("checks = %v, want %d entries", rep.Checks, len(tt.checkers))
			}
			for name, res := range rep.Checks {
				msg, failing := tt.wantErr[name]
				switch {
				case failing && (res.Status != StatusFail || res.Error != msg):
					t.Errorf("%s = %+v, want fail %q", name, res, msg)
				case !failing && (res.Status != StatusOK || res.Error != ""):
					t.Errorf("%s = %+v, want ok", name, res)
				}
			}
		})
	}
}

func TestSetDraining_Toggles(t *testing.T) {
	h := New(pass("modes"))
	h.SetDraining(true)
	h.SetDraining(false)
	if rep := h.Ready(context.Background()); rep.Status != StatusOK {
		t.Errorf("status after undrain = %q, want ok", rep.Status)
	}
}

func TestReady_RunsConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	slow := func(name string) Checker {
		return Checker{Name: name, Check: func(ctx context.Context) error {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			select {
			case <-time.After(50 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}}
	}
	rep := New(slow("a"), slow("b"), slow("c")).Ready(context.Background())
	if rep.Status != StatusOK {
		t.Fatalf("status = %q, checks %v", rep.Status, rep.Checks)
	}
	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want checkers to overlap", peak.Load())
	}
	if rep.Checks["a"].ElapsedMS <= 0 {
		t.Errorf("elapsed_ms = %v, want > 0", rep.Checks["a"].ElapsedMS)
	}
}

func TestReady_CheckSeesDeadline(t *testing.T) {
	h := New(Checker{Name: "deadline", Check: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}})
	if rep := h.Ready(context.Background()); rep.Status != StatusOK {
		t.Errorf("checks = %v", rep.Checks)
	}
}

func TestReady_CanceledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := New(WritableDirChecker("output_dir", t.TempDir())).Ready(ctx)
	if rep.Status != StatusFail || rep.Checks["output_dir"].Error != context.Canceled.Error() {
		t.Errorf("report = %+v, want canceled failure", rep)
	}
}

func TestModesChecker(t *testing.T) {
	ctx := context.Background()
	if err := ModesChecker(sstv.DefaultRegistry(), fixed("MartinM1")).Check(ctx); err != nil {
		t.Errorf("MartinM1: %v", err)
	}
	if err := ModesChecker(sstv.DefaultRegistry(), fixed("MartinM9")).Check(ctx); !errors.Is(err, sstv.ErrModeNotRegistered) {
		t.Errorf("MartinM9: err = %v, want ErrModeNotRegistered", err)
	}
	if err := ModesChecker(sstv.NewRegistry(), fixed("MartinM1")).Check(ctx); err == nil {
		t.Error("empty registry: want error")
	}

	// The default is read per check.
	name := "PD90"
	c := ModesChecker(sstv.DefaultRegistry(), func() string { return name })
	if err := c.Check(ctx); err != nil {
		t.Fatalf("PD90: %v", err)
	}
	name = "nope"
	if err := c.Check(ctx); err == nil {
		t.Error("changed default to unknown mode: want error")
	}
}

func TestWritableDirChecker(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if err := WritableDirChecker("out", dir).Check(ctx); err != nil {
		t.Errorf("temp dir: %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WritableDirChecker("out", file).Check(ctx); err == nil {
		t.Error("regular file: want error")
	}
	if err := WritableDirChecker("out", filepath.Join(dir, "missing")).Check(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing dir: err = %v, want ErrNotExist", err)
	}
}
