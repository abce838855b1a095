// Package worker serves forward and backward passes over a single shared
// compute resource. A forward pass may leave a session behind; the
// matching backward pass consumes it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/revsim/internal/compute"
	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/sim"
)

var tracer = otel.Tracer("revsim.worker")

type resource struct {
	backend  compute.Backend
	sessions *SessionStore
}

// Service runs at most one operation at a time against its backend.
type Service struct {
	res      *compute.Exclusive[*resource]
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service owning backend. A nil backend runs terms serially.
func New(backend compute.Backend, opts ...Option) *Service {
	if backend == nil {
		backend = compute.NewCPUBackend(1)
	}
	s := &Service{
		res:      compute.NewExclusive(&resource{backend: backend, sessions: NewSessionStore()}),
		validate: validator.New(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.res.OnAcquire(func(wait time.Duration) {
		lockWait.Observe(wait.Seconds())
		s.logger.Debug("compute resource acquired", "wait", wait)
	})
	return s
}

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := tracer.Start(ctx, "worker."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (s *Service) end(span trace.Span, op string, start time.Time, err error) {
	res := result(err)
	requestsTotal.WithLabelValues(op, res).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("operation failed", "op", op, "result", res, "error", err)
	} else {
		s.logger.Debug("operation done", "op", op, "elapsed", time.Since(start))
	}
	span.End()
}

func (s *Service) held(op string, fn func(*resource) error) func(*resource) error {
	return func(r *resource) error {
		start := time.Now()
		defer func() {
			opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
			liveSessions.Set(float64(r.sessions.Len()))
		}()
		return fn(r)
	}
}

// Reset discards every session. It waits for the resource even if ctx is
// cancelled and never fails.
func (s *Service) Reset(ctx context.Context) error {
	ctx, span, start := s.begin(ctx, "reset")
	var dropped int
	_ = s.res.Do(context.WithoutCancel(ctx), s.held("reset", func(r *resource) error {
		dropped = r.sessions.Clear()
		return nil
	}))
	span.SetAttributes(attribute.Int("sessions.dropped", dropped))
	s.logger.Info("state reset", "dropped", dropped)
	s.end(span, "reset", start, nil)
	return nil
}

// Forward integrates req.System over its full λ schedule. Unless the pass
// is an inference pass, the session is stored under req.Key, replacing any
// earlier session with that key.
func (s *Service) Forward(ctx context.Context, req *ForwardRequest) (reply *ForwardReply, err error) {
	ctx, span, start := s.begin(ctx, "forward",
		attribute.String("session.key", req.Key),
		attribute.Bool("inference", req.Inference),
		attribute.Int("atoms", req.System.NumAtoms()),
		attribute.Int("steps", req.System.Steps()),
	)
	defer func() { s.end(span, "forward", start, err) }()

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}
	prec, err := dynamo.ParsePrecision(req.Precision)
	if err != nil {
		return nil, err
	}
	eng, err := sim.Assemble(req.System, prec)
	if err != nil {
		return nil, err
	}

	err = s.res.Do(ctx, s.held("forward", func(r *resource) error {
		out, err := eng.Forward(r.backend, req.NFrames)
		if err != nil {
			return err
		}
		stepsTotal.WithLabelValues("forward").Add(float64(req.System.Steps()))
		reply = &ForwardReply{DuDls: out.DuDls, Energies: out.Energies, Frames: out.Frames}
		if req.Inference {
			return nil
		}
		replaced := r.sessions.Put(&Session{
			Key:     req.Key,
			System:  req.System,
			Engine:  eng,
			Created: s.now(),
		})
		s.logger.Info("session stored",
			"key", req.Key,
			"precision", prec,
			"atoms", req.System.NumAtoms(),
			"steps", req.System.Steps(),
			"replaced", replaced,
		)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Backward consumes the session under req.Key. An adjoint whose shape does
// not match the session is rejected and the session stays live.
func (s *Service) Backward(ctx context.Context, req *BackwardRequest) (reply *BackwardReply, err error) {
	ctx, span, start := s.begin(ctx, "backward", attribute.String("session.key", req.Key))
	defer func() { s.end(span, "backward", start, err) }()

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}
	adj := sim.Adjoint{DuDl: req.AdjointDuDls, XT: req.XTAdjoint}

	err = s.res.Do(ctx, s.held("backward", func(r *resource) error {
		sess, ok := r.sessions.Get(req.Key)
		if !ok {
			return fmt.Errorf("%w: %q", dynamo.ErrSessionNotFound, req.Key)
		}
		if err := sess.Engine.ValidateAdjoint(adj); err != nil {
			return err
		}
		r.sessions.Delete(req.Key)
		grads, err := sess.Engine.Backward(r.backend, adj)
		if err != nil {
			return err
		}
		stepsTotal.WithLabelValues("backward").Add(float64(sess.System.Steps()))
		s.logger.Info("session consumed", "key", req.Key, "age", s.now().Sub(sess.Created))
		reply = &BackwardReply{Grads: grads}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Sessions lists the keys of live sessions.
func (s *Service) Sessions(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.res.Do(ctx, func(r *resource) error {
		keys = r.sessions.Keys()
		return nil
	})
	return keys, err
}

// Close drops every session and releases the backend.
func (s *Service) Close() {
	_ = s.res.Do(context.Background(), func(r *resource) error {
		r.sessions.Clear()
		r.backend.Cleanup()
		liveSessions.Set(0)
		return nil
	})
}
