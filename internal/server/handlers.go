package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/imageio"
	"github.com/MrWong99/slowscan/internal/observe"
	"github.com/MrWong99/slowscan/internal/transmit"
	"github.com/MrWong99/slowscan/pkg/audio/wav"
	"github.com/MrWong99/slowscan/pkg/sstv"
)

// modeAuto asks the server to pick the first mode the image fits.
const modeAuto = "auto"

// errorBody is the JSON body of every non-2xx API response.
type errorBody struct {
	Error string `json:"error"`
}

// modeInfo is one entry of GET /v1/modes.
type modeInfo struct {
	Name     string             `json:"name"`
	VIS      uint8              `json:"vis"`
	Width    int                `json:"width"`
	Height   int                `json:"height"`
	Layout   string             `json:"layout"`
	Sync     float64            `json:"sync_ms"`
	Scan     float64            `json:"scan_ms"`
	Timing   map[string]float64 `json:"timing_ms,omitempty"`
	Duration float64            `json:"duration_s"`
}

func (s *Server) handleModes(w http.ResponseWriter, _ *http.Request) {
	modes := s.reg.Modes()
	out := make([]modeInfo, 0, len(modes))
	for _, m := range modes {
		out = append(out, modeInfo{
			Name:     m.Name,
			VIS:      m.VIS,
			Width:    m.Width,
			Height:   m.Height,
			Layout:   m.Layout.String(),
			Sync:     m.Sync,
			Scan:     m.Scan,
			Timing:   m.Timing(),
			Duration: (sstv.HeaderDuration + m.ImageDuration()) / 1000,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.list())
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
			defer func() { <-s.slots }()
		default:
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errors.New("too many concurrent encodes"))
			return
		}
	}

	enc, err := encodeParams(s.EncodeDefaults(), r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("image exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("read image: %w", err))
		return
	}
	img, err := imageio.DecodeLimit(bytes.NewReader(body), s.cfg.MaxImagePixels)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, image.ErrFormat):
			status = http.StatusUnsupportedMediaType
		case errors.Is(err, imageio.ErrImageTooLarge):
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return
	}

	var mode sstv.Mode
	if enc.Mode == modeAuto {
		var ok bool
		if mode, ok = imageio.ModeForSize(s.reg, img.Width(), img.Height()); !ok {
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Errorf("%w: %dx%d is smaller than every mode", imageio.ErrNoMode, img.Width(), img.Height()))
			return
		}
	} else if mode, err = s.reg.Lookup(enc.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p := transmit.ParamsFrom(enc)
	encoder, err := s.svc.NewEncoder(mode, img.Source(), p)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sstv.ErrImageTooSmall) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}

	id := uuid.NewString()
	ctx := observe.WithSessionID(r.Context(), id)
	done := s.sessions.add(SessionInfo{
		SessionID:  id,
		Mode:       mode.Name,
		Format:     encoder.Format().String(),
		AirTime:    encoder.Duration(),
		RemoteAddr: r.RemoteAddr,
		StartedAt:  time.Now(),
	})
	defer done()

	h := w.Header()
	h.Set("Content-Type", "audio/wav")
	h.Set("Content-Length", strconv.FormatInt(wav.FileSize(encoder.DataSize()), 10))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", mode.Name+".wav"))
	h.Set("X-Session-ID", id)
	h.Set("X-SSTV-Mode", mode.Name)
	h.Set("X-Air-Time", strconv.FormatFloat(encoder.Duration().Seconds(), 'f', 3, 64))
	w.WriteHeader(http.StatusOK)

	// The status is already sent; a failure here can only cut the body short.
	if _, err := s.svc.WriteWAV(ctx, w, encoder, nil); err != nil {
		observe.Logger(ctx).Warn("encode response aborted", "err", err)
	}
}

// encodeParams applies query overrides to the defaults and validates the
// result. The mode name is resolved later against the server's registry.
func encodeParams(defaults config.EncodeConfig, q url.Values) (config.EncodeConfig, error) {
	enc := defaults
	var errs []error
	intParam := func(key string, dst *int) {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("query %s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	if v := q.Get("mode"); v != "" {
		enc.Mode = v
	}
	intParam("rate", &enc.SampleRate)
	intParam("bits", &enc.Bits)
	intParam("channels", &enc.Channels)
	if v := q.Get("vox"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("query vox=%q is not a boolean", v))
		}
		enc.VOX = b
	}
	if q.Has("fskid") {
		enc.FSKID = q.Get("fskid")
	}
	if len(errs) > 0 {
		return enc, errors.Join(errs...)
	}
	return enc, config.ValidateFormat(enc)
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write json response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
