package cv

import (
	"context"
	"errors"
	"time"
)

type loadedTemplate struct {
	ref string
	img *Image
	cfg PollingConfig
}

// FindImage polls each template in order until one is found on screen. A
// template gets at most MaxAttempts+1 attempts and stops early once its
// Timeout has elapsed; only then does the next template start. Capture
// failures count as misses. Load errors and remote errors end the call.
// When every template is exhausted the error is a
// *TemplateElementNotFoundError.
func (s *Service) FindImage(ctx context.Context, refs []string, opts ...Option) (MatchResult, error) {
	if len(refs) == 0 {
		return MatchResult{}, &ConfigError{Field: "templates", Reason: "at least one template is required"}
	}
	o := collectOptions(opts)
	if err := o.pollingConfig(s.defaults, 0).Validate(); err != nil {
		return MatchResult{}, err
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

	templates := make([]loadedTemplate, 0, len(refs))
	for _, ref := range refs {
		img, meta, err := s.loadTemplate(ref)
		if err != nil {
			return MatchResult{}, err
		}
		cfg := o.pollingConfig(s.defaults, meta.Rate)
		if err := cfg.Validate(); err != nil {
			return MatchResult{}, err
		}
		templates = append(templates, loadedTemplate{ref: ref, img: img, cfg: cfg})
	}

	session := s.beginSession(SessionFind, refs)
	for _, t := range templates {
		result, err := s.pollTemplate(ctx, session, capturer, t, o)
		if err != nil {
			s.finishSession(session, OutcomeError)
			return MatchResult{}, err
		}
		if result.Found() {
			s.finishSession(session, OutcomeFound)
			return result, nil
		}
	}

	s.finishSession(session, OutcomeNotFound)
	s.logger.WarnWithContext("no template found", map[string]interface{}{
		"templates": refs,
	})
	return MatchResult{}, &TemplateElementNotFoundError{Templates: append([]string(nil), refs...)}
}

// ImageExists reports whether ref shows up within the polling budget.
// Only a miss becomes false; every other error is returned.
func (s *Service) ImageExists(ctx context.Context, ref string, opts ...Option) (bool, error) {
	_, err := s.FindImage(ctx, []string{ref}, opts...)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNoMatchFound) {
		return false, nil
	}
	return false, err
}

// pollTemplate returns an empty result when the template's attempts or
// time budget run out.
func (s *Service) pollTemplate(ctx context.Context, session int64, capturer Capturer, t loadedTemplate, o findOptions) (MatchResult, error) {
	start := s.now()

	for attempt := 0; attempt <= t.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return MatchResult{}, err
		}

		began := s.now()
		result, err := s.attempt(ctx, capturer, t, o)
		rec := Attempt{
			Template: t.ref,
			Number:   attempt + 1,
			Points:   result.Points,
			Duration: s.now().Sub(began),
			Err:      err,
		}

		switch {
		case err == nil && result.Found():
			rec.Outcome = OutcomeFound
			s.recordAttempt(session, rec)
			s.logger.InfoWithContext("template found", map[string]interface{}{
				"template": t.ref,
				"attempt":  attempt + 1,
				"point":    result.First().String(),
				"matches":  len(result.Points),
			})
			return result, nil
		case err == nil:
			rec.Outcome = OutcomeMiss
			s.recordAttempt(session, rec)
			s.logger.DebugWithContext("template not on screen", map[string]interface{}{
				"template": t.ref,
				"attempt":  attempt + 1,
			})
		case errors.Is(err, ErrCaptureFailure):
			rec.Outcome = OutcomeCaptureError
			s.recordAttempt(session, rec)
			s.logger.WarnWithContext("capture failed, retrying", map[string]interface{}{
				"template": t.ref,
				"attempt":  attempt + 1,
				"error":    err.Error(),
			})
		default:
			rec.Outcome = OutcomeError
			s.recordAttempt(session, rec)
			return MatchResult{}, err
		}

		if elapsed := s.now().Sub(start); elapsed > t.cfg.Timeout {
			s.logger.DebugWithContext("template timed out", map[string]interface{}{
				"template": t.ref,
				"elapsed":  elapsed.String(),
				"attempts": attempt + 1,
			})
			break
		}
		if attempt < t.cfg.MaxAttempts {
			s.pause(ctx, t.cfg.Pause)
		}
	}
	return MatchResult{}, nil
}

func (s *Service) attempt(ctx context.Context, capturer Capturer, t loadedTemplate, o findOptions) (MatchResult, error) {
	screen, err := capturer.CaptureFrame(ctx, o.region)
	if err != nil {
		return MatchResult{}, err
	}
	return s.locator.Locate(ctx, MatchRequest{
		Template: t.img,
		Screen:   screen,
		Rate:     t.cfg.Rate,
		Multiple: o.multiple,
	})
}

// pause sleeps for d unless ctx is already done.
func (s *Service) pause(ctx context.Context, d time.Duration) {
	if d <= 0 || ctx.Err() != nil {
		return
	}
	s.sleep(d)
}
