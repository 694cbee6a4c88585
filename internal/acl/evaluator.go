package acl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/auth"
	"github.com/yanizio/blooms/internal/logger"
	"github.com/yanizio/blooms/internal/site"
)

// DefaultMembershipTimeout bounds one membership query.
const DefaultMembershipTimeout = 300 * time.Millisecond

// EvaluatorOptions configures an Evaluator.
type EvaluatorOptions struct {
	Timeout time.Duration // per-query bound; DefaultMembershipTimeout when zero
	Logger  *zap.Logger
}

// Evaluator decides whether a viewer may see a site.
type Evaluator struct {
	members MembershipFinder
	timeout time.Duration
	log     *zap.Logger
}

// NewEvaluator wires a MembershipFinder.
func NewEvaluator(members MembershipFinder, opts EvaluatorOptions) *Evaluator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultMembershipTimeout
	}
	return &Evaluator{
		members: members,
		timeout: opts.Timeout,
		log:     logger.OrGlobal(opts.Logger).Named("acl"),
	}
}

// CanView reports whether viewer may see rec.  Published sites are visible
// to everyone and never touch the membership store.  Unpublished sites need
// an active membership with a known role; store errors and timeouts deny.
func (e *Evaluator) CanView(ctx context.Context, rec *site.Record, viewer *auth.User) bool {
	if rec == nil {
		return false
	}
	if rec.Published {
		return true
	}
	if viewer == nil || viewer.ID == "" {
		return false
	}

	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	m, err := e.members.FindMembership(qctx, viewer.ID, rec.ID)
	if err != nil {
		e.log.Error("membership lookup failed; denying",
			zap.String("site_id", rec.ID.String()),
			zap.String("user_id", viewer.ID),
			zap.Error(err))
		return false
	}
	return m != nil && m.Active && m.Role != RoleNone
}
