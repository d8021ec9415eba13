package cv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var errNoFrames = errors.New("no frames captured")

// GetDuring records a burst of frames for window and then looks for ref in
// them, oldest first. The window is checked after each capture, so at least
// one capture is always made. Failed captures are skipped.
func (s *Service) GetDuring(ctx context.Context, ref string, window time.Duration, opts ...Option) (MatchResult, error) {
	o := collectOptions(opts)
	if window < 0 {
		return MatchResult{}, &ConfigError{Field: "window", Reason: fmt.Sprintf("must not be negative, got %v", window)}
	}
	maxFrames := s.frameLimit
	if o.maxFrames != 0 {
		maxFrames = o.maxFrames
	}
	if maxFrames <= 0 {
		return MatchResult{}, &ConfigError{Field: "maxFrames", Reason: fmt.Sprintf("must be positive, got %d", maxFrames)}
	}
	if o.framePause < 0 {
		return MatchResult{}, &ConfigError{Field: "framePause", Reason: fmt.Sprintf("must not be negative, got %v", o.framePause)}
	}
	if o.region != nil {
		if err := o.region.Validate(); err != nil {
			return MatchResult{}, err
		}
	}

	capturer, err := s.frameSource(ctx, o)
	if err != nil {
		return MatchResult{}, err
	}
	tpl, meta, err := s.loadTemplate(ref)
	if err != nil {
		return MatchResult{}, err
	}
	cfg := o.pollingConfig(s.defaults, meta.Rate)
	if err := cfg.Validate(); err != nil {
		return MatchResult{}, err
	}
	if o.frameDir != "" {
		if err := os.MkdirAll(o.frameDir, 0755); err != nil {
			return MatchResult{}, &ConfigError{Field: "frameDir", Reason: err.Error()}
		}
	}

	session := s.beginSession(SessionDuring, []string{ref})

	frames, err := s.captureBurst(ctx, capturer, window, maxFrames, o)
	if err != nil {
		s.finishSession(session, OutcomeError)
		return MatchResult{}, err
	}

	for i, frame := range frames {
		result, err := s.locator.Locate(ctx, MatchRequest{
			Template: tpl,
			Screen:   frame,
			Rate:     cfg.Rate,
			Multiple: o.multiple,
		})
		rec := Attempt{Template: ref, Number: i + 1, Points: result.Points, Err: err}
		if err != nil {
			rec.Outcome = OutcomeError
			s.recordAttempt(session, rec)
			s.finishSession(session, OutcomeError)
			return MatchResult{}, err
		}
		if result.Found() {
			rec.Outcome = OutcomeFound
			s.recordAttempt(session, rec)
			s.finishSession(session, OutcomeFound)
			s.logger.InfoWithContext("template found in burst", map[string]interface{}{
				"template": ref,
				"frame":    i,
				"frames":   len(frames),
				"point":    result.First().String(),
			})
			return result, nil
		}
	}

	s.finishSession(session, OutcomeNotFound)
	return MatchResult{}, &TemplateElementNotFoundError{Templates: []string{ref}}
}

func (s *Service) captureBurst(ctx context.Context, capturer Capturer, window time.Duration, maxFrames int, o findOptions) ([]*Image, error) {
	var frames []*Image
	start := s.now()

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := capturer.CaptureFrame(ctx, o.region)
		switch {
		case err == nil:
			frames = append(frames, frame)
			if o.frameDir != "" {
				s.dumpFrame(o.frameDir, i, frame)
			}
		case errors.Is(err, ErrCaptureFailure):
			s.logger.WarnWithContext("frame capture failed, skipping", map[string]interface{}{
				"frame": i,
				"error": err.Error(),
			})
		default:
			return nil, err
		}

		if s.now().Sub(start) >= window {
			break
		}
		s.pause(ctx, o.framePause)
	}

	if len(frames) == 0 {
		return nil, &CaptureError{Backend: "burst", Err: errNoFrames}
	}
	s.logger.DebugWithContext("burst captured", map[string]interface{}{
		"frames":  len(frames),
		"elapsed": s.now().Sub(start).String(),
	})
	return frames, nil
}

func (s *Service) dumpFrame(dir string, index int, frame *Image) {
	path := filepath.Join(dir, fmt.Sprintf("%d_%d.png", s.now().UnixNano(), index))
	if err := Save(frame, path); err != nil {
		s.logger.ErrorWithContext("failed to save frame", err, map[string]interface{}{
			"path": path,
		})
	}
}
