package transmit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/slowscan/internal/imageio"
	"github.com/MrWong99/slowscan/pkg/sstv"
)

// ErrOutput marks failures to create, write or move the output file, as
// opposed to problems with the input image or its parameters.
var ErrOutput = errors.New("transmit: output failed")

// Job describes one image file to encode.
type Job struct {
	// Input is the image path.
	Input string

	// Output is the WAV path. Empty means Input with a .wav extension, in
	// OutputDir when that is set.
	Output string

	// OutputDir receives the WAV when Output is empty.
	OutputDir string

	// Mode is the mode name. Empty selects a mode from the file name tag or
	// the image size.
	Mode string

	Params Params
}

// OutputPath resolves where the job's WAV file goes.
func (j Job) OutputPath() string {
	if j.Output != "" {
		return j.Output
	}
	base := strings.TrimSuffix(filepath.Base(j.Input), filepath.Ext(j.Input)) + ".wav"
	dir := j.OutputDir
	if dir == "" {
		dir = filepath.Dir(j.Input)
	}
	return filepath.Join(dir, base)
}

// Prepare decodes the job's image and builds its encoder without producing
// any audio.
func (s *Service) Prepare(reg *sstv.Registry, j Job) (*sstv.Encoder, error) {
	img, err := imageio.Open(j.Input)
	if err != nil {
		return nil, fmt.Errorf("transmit: %w", err)
	}
	var mode sstv.Mode
	if j.Mode != "" {
		mode, err = reg.Lookup(j.Mode)
	} else {
		mode, err = imageio.SelectMode(reg, j.Input, img)
	}
	if err != nil {
		return nil, fmt.Errorf("transmit: %s: %w", j.Input, err)
	}
	enc, err := s.NewEncoder(mode, img.Source(), j.Params)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, j.Input)
	}
	return enc, nil
}

// EncodeFile encodes one job to its output path. The file is written under a
// temporary name and renamed into place on success, so watchers never see a
// partial WAV.
func (s *Service) EncodeFile(ctx context.Context, reg *sstv.Registry, j Job, progress Progress) (Result, error) {
	enc, err := s.Prepare(reg, j)
	if err != nil {
		return Result{Input: j.Input}, err
	}

	out := j.OutputPath()
	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return Result{Input: j.Input}, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	res, err := s.writeSeekableWAV(ctx, tmp, enc, progress)
	res.Input = j.Input
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), out)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrOutput, err)
		}
		return res, err
	}
	res.Output = out
	return res, nil
}

// EncodeFiles encodes jobs with at most parallel sessions at once
// (parallel <= 0 means one per job). Results are returned in job order. The
// first failure cancels the jobs that have not finished; every failure is
// reported in the joined error.
func (s *Service) EncodeFiles(ctx context.Context, reg *sstv.Registry, jobs []Job, parallel int, progress func(job int) Progress) ([]Result, error) {
	results := make([]Result, len(jobs))
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, j := range jobs {
		g.Go(func() error {
			var p Progress
			if progress != nil {
				p = progress(i)
			}
			results[i], errs[i] = s.EncodeFile(gctx, reg, j, p)
			return errs[i]
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
