// Package permission decides whether a user may use experience search.
package permission

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/experience-platform/internal/platform/metrics"
	"github.com/example/experience-platform/services/discussion/internal/store"
)

// Resolver grants search access to users who contributed salary data or
// references, or who authored at least one experience.
type Resolver struct {
	users       store.UserReader
	references  store.ReferenceReader
	experiences store.ExperienceReader
	cache       Cache
	log         *zap.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithCache remembers granted permissions. Denials are never cached.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger used for cache failures.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

func NewResolver(users store.UserReader, references store.ReferenceReader, experiences store.ExperienceReader, opts ...Option) *Resolver {
	r := &Resolver{
		users:       users,
		references:  references,
		experiences: experiences,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveSearchPermission grants iff time_and_salary_count + reference_count > 0,
// absent counters counting as zero. Only when that sum is zero is authorship
// of an experience consulted.
func (r *Resolver) ResolveSearchPermission(ctx context.Context, userID string) (bool, error) {
	if r.cache != nil {
		granted, err := r.cache.Granted(ctx, userID)
		if err != nil {
			r.log.Warn("permission cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if granted {
			metrics.PermissionChecks.WithLabelValues("granted", "cache").Inc()
			return true, nil
		}
	}

	granted, source, err := r.resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	if !granted {
		metrics.PermissionChecks.WithLabelValues("denied", source).Inc()
		return false, nil
	}
	metrics.PermissionChecks.WithLabelValues("granted", source).Inc()
	if r.cache != nil {
		if err := r.cache.Grant(ctx, userID); err != nil {
			r.log.Warn("permission cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return true, nil
}

func (r *Resolver) resolve(ctx context.Context, userID string) (bool, string, error) {
	var salary, references store.OptionalCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, ok, err := r.users.GetUserContribution(gctx, userID)
		if err != nil {
			return fmt.Errorf("user contribution: %w", err)
		}
		if ok {
			salary = u.TimeAndSalaryCount
		}
		return nil
	})
	g.Go(func() error {
		c, err := r.references.ReferenceCount(gctx, userID)
		if err != nil {
			return fmt.Errorf("reference count: %w", err)
		}
		references = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, "", err
	}

	if salary.OrZero()+references.OrZero() > 0 {
		return true, "counters", nil
	}

	authored, err := r.experiences.HasAuthoredExperience(ctx, userID)
	if err != nil {
		return false, "", fmt.Errorf("authored experiences: %w", err)
	}
	if authored {
		return true, "ownership", nil
	}
	return false, "none", nil
}
