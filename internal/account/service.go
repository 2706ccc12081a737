package account

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/payhasly/account_service/internal/telemetry"
)

const tracerName = "github.com/payhasly/account_service/internal/account"

// Service is the account lifecycle controller. Every write runs
// validate → before hooks → persist → after hooks, in that order and
// synchronously. It holds no locks; concurrent writes to one account are
// ordered by the store alone.
type Service struct {
	repo    Repository
	hooks   *Hooks
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// NewService builds the controller. A nil hooks value means no side effects.
func NewService(repo Repository, hooks *Hooks, logger *slog.Logger, metrics *telemetry.Metrics) *Service {
	if hooks == nil {
		hooks = NewHooks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		hooks:   hooks,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Create validates, hashes and stores a new account, then publishes the
// creation events. A *PublishError comes back together with the committed
// account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	ctx, span := s.tracer.Start(ctx, "account.Create")
	defer span.End()

	if err := in.Validate(); err != nil {
		return Account{}, s.abort(span, OpCreate, err)
	}

	m := in.mutation()
	if err := s.hooks.runBefore(ctx, OpCreate, &m); err != nil {
		return Account{}, s.abort(span, OpCreate, err)
	}
	if m.Password != nil || m.PasswordHash == nil {
		return Account{}, s.abort(span, OpCreate, fmt.Errorf("%w: credential left unhashed", ErrHashing))
	}

	acc, err := s.repo.Create(ctx, NewAccount{
		Phone:        *m.Phone,
		PasswordHash: *m.PasswordHash,
		IsAdmin:      m.IsAdmin != nil && *m.IsAdmin,
	})
	if err != nil {
		return Account{}, s.abort(span, OpCreate, err)
	}

	return acc, s.afterCommit(ctx, span, OpCreate, acc)
}

// Update applies a partial update. The password is re-hashed only when the
// update carries one. The event payload is the state returned by the store
// after the write, not the request.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Account, error) {
	ctx, span := s.tracer.Start(ctx, "account.Update", trace.WithAttributes(attribute.String("account.id", id)))
	defer span.End()

	if err := in.Validate(); err != nil {
		return Account{}, s.abort(span, OpUpdate, err)
	}

	m := in.mutation()
	if err := s.hooks.runBefore(ctx, OpUpdate, &m); err != nil {
		return Account{}, s.abort(span, OpUpdate, err)
	}
	if m.Password != nil {
		return Account{}, s.abort(span, OpUpdate, fmt.Errorf("%w: credential left unhashed", ErrHashing))
	}

	acc, err := s.repo.Update(ctx, id, Patch{Phone: m.Phone, PasswordHash: m.PasswordHash, IsAdmin: m.IsAdmin})
	if err != nil {
		return Account{}, s.abort(span, OpUpdate, err)
	}

	return acc, s.afterCommit(ctx, span, OpUpdate, acc)
}

// Delete removes an account and publishes the deletion events. Deleting an
// unknown id reports false and publishes nothing.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "account.Delete", trace.WithAttributes(attribute.String("account.id", id)))
	defer span.End()

	acc, found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, s.abort(span, OpDelete, err)
	}
	if !found {
		s.metrics.ObserveLifecycle(string(OpDelete), "not_found")
		s.logger.Debug("account delete skipped", slog.String("account_id", id))
		return false, nil
	}

	return true, s.afterCommit(ctx, span, OpDelete, acc)
}

// Get returns a stored account.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) afterCommit(ctx context.Context, span trace.Span, op Operation, acc Account) error {
	span.SetAttributes(attribute.String("account.id", acc.ID))

	if err := s.hooks.runAfter(ctx, op, acc); err != nil {
		perr := &PublishError{Op: op, AccountID: acc.ID, Err: err}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "events not published")
		s.metrics.ObserveLifecycle(string(op), "committed_stale")
		s.logger.Warn("account committed, lifecycle events failed",
			slog.String("operation", string(op)),
			slog.String("account_id", acc.ID),
			slog.Any("error", err),
		)
		return perr
	}

	s.metrics.ObserveLifecycle(string(op), "committed")
	s.logger.Info("account committed",
		slog.String("operation", string(op)),
		slog.String("account_id", acc.ID),
	)
	return nil
}

func (s *Service) abort(span trace.Span, op Operation, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.ObserveLifecycle(string(op), "aborted")
	s.logger.Debug("account operation aborted",
		slog.String("operation", string(op)),
		slog.Any("error", err),
	)
	return err
}
