package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Auditor reports stale denormalized copies for a user.
type Auditor interface {
	Audit(ctx context.Context, userID uuid.UUID) (types.AuditReport, error)
}

// ConsistencyQueryInput identifies the user to audit.
type ConsistencyQueryInput struct {
	UserID uuid.UUID
}

// ConsistencyQuery exposes the auditor as a read model.
type ConsistencyQuery struct {
	auditor Auditor
}

// NewConsistencyQuery constructs the query.
func NewConsistencyQuery(auditor Auditor) *ConsistencyQuery {
	return &ConsistencyQuery{auditor: auditor}
}

var _ gocommand.Querier[ConsistencyQueryInput, types.AuditReport] = (*ConsistencyQuery)(nil)

// Query implements gocommand.Querier.
func (q *ConsistencyQuery) Query(ctx context.Context, input ConsistencyQueryInput) (types.AuditReport, error) {
	if q.auditor == nil {
		return types.AuditReport{}, types.ErrMissingAuditor
	}
	return q.auditor.Audit(ctx, input.UserID)
}
