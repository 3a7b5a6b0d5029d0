package message

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/metrics"
	"github.com/hpungsan/backseat/internal/ops"
	"github.com/hpungsan/backseat/internal/session"
)

// Dispatcher routes decoded requests to operations for one session at a time.
type Dispatcher struct {
	orch    *ops.Orchestrator
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher. Every request runs under timeout
// (0 disables the deadline).
func NewDispatcher(orch *ops.Orchestrator, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{orch: orch, timeout: timeout, logger: logger, metrics: m}
}

// DispatchJSON decodes and dispatches a raw JSON message.
func (d *Dispatcher) DispatchJSON(ctx context.Context, sess *session.Session, data []byte) Response {
	req, err := Decode(data)
	if err != nil {
		d.logger.Warn("rejected message", zap.String("session", sess.ID), zap.Error(err))
		d.metrics.ObserveMessage("invalid", err, 0)
		return Failure(err)
	}
	return d.Dispatch(ctx, sess, req)
}

// Dispatch runs req (a pointer variant as returned by Decode) against sess and
// always returns a response; errors are converted to failures here and never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, req Request) Response {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	payload, err := d.handle(ctx, sess, req)
	// A store call interrupted by the deadline surfaces as INTERNAL.
	if errors.Is(err, errors.ErrInternal) {
		if ctxErr := errors.FromContext(ctx, req.Action()); ctxErr != nil {
			err = ctxErr
		}
	}
	elapsed := time.Since(start)
	d.metrics.ObserveMessage(req.Action(), err, elapsed)

	if err != nil {
		d.logger.Warn("message failed",
			zap.String("action", req.Action()),
			zap.String("session", sess.ID),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return Failure(err)
	}

	d.logger.Debug("message handled",
		zap.String("action", req.Action()),
		zap.String("session", sess.ID),
		zap.Duration("duration", elapsed),
	)
	return Success(payload)
}

func (d *Dispatcher) handle(ctx context.Context, sess *session.Session, req Request) (map[string]any, error) {
	o := d.orch

	switch r := req.(type) {
	case *GetProfile:
		p, err := ops.GetCurrentProfile(ctx, o.Store, o.Config, sess)
		if err != nil {
			return nil, err
		}
		return map[string]any{"profile": p}, nil

	case *SetProfile:
		p, err := ops.SetCurrentProfile(ctx, o.Store, sess, r.ProfileName)
		if err != nil {
			return nil, err
		}
		return map[string]any{"profile": p}, nil

	case *GetAllProfiles:
		out, err := ops.ListProfiles(ctx, o.Store, sess)
		if err != nil {
			return nil, err
		}
		return map[string]any{"profiles": out.Profiles, "current": out.Current}, nil

	case *SaveProfile:
		if r.Profile == nil {
			return nil, errors.NewInvalidRequest("profile is required")
		}
		out, err := ops.SaveProfile(ctx, o.Store, *r.Profile)
		if err != nil {
			return nil, err
		}
		return map[string]any{"name": out.Name, "created": out.Created}, nil

	case *DeleteProfile:
		out, err := ops.DeleteProfile(ctx, o.Store, o.Config, sess, r.ProfileName)
		if err != nil {
			return nil, err
		}
		return map[string]any{"current": out.Current}, nil

	case *ExportProfiles:
		out, err := ops.ExportProfiles(ctx, o.Store)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": out.Data, "count": out.Count}, nil

	case *ImportProfiles:
		out, err := ops.ImportProfiles(ctx, o.Store, o.Config, sess, r.Data)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": out.Count, "current": out.Current}, nil

	case *AnalyzeScreen:
		out, err := o.AnalyzeScreen(ctx, sess)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ocrText": out.Text, "length": out.Length}, nil

	case *AskQuestion:
		var out *ops.AskOutput
		var err error
		if r.OCRText != nil {
			out, err = o.AskQuestionWith(ctx, sess, *r.OCRText, r.Question)
		} else {
			out, err = o.AskQuestion(ctx, sess, r.Question)
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"response": out.Response, "html": out.HTML}, nil

	case *GetDebugInfo:
		out, err := o.ExtractPage(ctx, sess, r.HTML)
		if err != nil {
			return nil, err
		}
		return map[string]any{"fullText": out.FullText, "filteredDOMText": out.FilteredText}, nil

	case *History:
		turns := sess.Turns()
		if r.Clear {
			sess.ClearTurns()
		}
		return map[string]any{"turns": turns}, nil

	default:
		return nil, errors.NewInternal(fmt.Errorf("no handler for action %q", req.Action()))
	}
}
