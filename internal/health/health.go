// Package health serves the liveness and readiness probes.
//
// GET /healthz answers 200 while the process can serve HTTP. GET /readyz runs
// every [Checker] concurrently and answers 200 only when all pass and the
// handler is not draining. Both reply with a JSON [Report].
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/slowscan/pkg/sstv"
)

// checkTimeout bounds a single checker run.
const checkTimeout = 5 * time.Second

// Report status values.
const (
	StatusOK       = "ok"
	StatusFail     = "fail"
	StatusDraining = "draining"
)

// Checker probes one dependency. Check returns nil when it is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// CheckResult is the outcome of one [Checker].
type CheckResult struct {
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// Report is the body of both probe endpoints.
type Report struct {
	Status string                 `json:"status"`
	Uptime float64                `json:"uptime_s"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz.
type Handler struct {
	checkers []Checker
	started  time.Time
	draining atomic.Bool
}

// New returns a Handler that runs checkers on every readiness probe.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		started:  time.Now(),
	}
}

// SetDraining switches readiness off (or back on). A draining handler fails
// /readyz without running checkers, so balancers stop sending encodes
// before the listener closes.
func (h *Handler) SetDraining(v bool) {
	h.draining.Store(v)
}

// Ready runs all checkers and summarises them.
func (h *Handler) Ready(ctx context.Context) Report {
	rep := Report{Status: StatusOK, Uptime: h.uptime()}
	if h.draining.Load() {
		rep.Status = StatusDraining
		return rep
	}

	var mu sync.Mutex
	rep.Checks = make(map[string]CheckResult, len(h.checkers))
	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			res := run(ctx, c)
			mu.Lock()
			rep.Checks[c.Name] = res
			if res.Status != StatusOK {
				rep.Status = StatusFail
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

func run(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	start := time.Now()
	err := c.Check(ctx)
	res := CheckResult{Status: StatusOK, ElapsedMS: float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		res.Status = StatusFail
		res.Error = err.Error()
	}
	return res
}

func (h *Handler) uptime() float64 {
	return time.Since(h.started).Truncate(time.Millisecond).Seconds()
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, Report{Status: StatusOK, Uptime: h.uptime()})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.Ready(r.Context()))
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeReport(w http.ResponseWriter, rep Report) {
	code := http.StatusOK
	if rep.Status != StatusOK {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}

// ModesChecker fails when reg is empty or lacks the mode defaultMode names.
// defaultMode is called on every probe so it can follow config reloads.
func ModesChecker(reg *sstv.Registry, defaultMode func() string) Checker {
	return Checker{
		Name: "modes",
		Check: func(context.Context) error {
			if reg.Len() == 0 {
				return errors.New("no modes registered")
			}
			_, err := reg.Lookup(defaultMode())
			return err
		},
	}
}

// WritableDirChecker fails unless a file can be created in dir.
func WritableDirChecker(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if info, err := os.Stat(dir); err != nil {
				return err
			} else if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			f, err := os.CreateTemp(dir, ".slowscan-probe-*")
			if err != nil {
				return err
			}
			return errors.Join(f.Close(), os.Remove(f.Name()))
		},
	}
}
