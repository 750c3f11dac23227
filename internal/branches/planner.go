package branches

import (
	"github.com/samber/lo"

	"github.com/chmouel/lazybranch/internal/models"
)

// Rejection reasons.
const (
	ReasonProtected = "protected name"
	ReasonCurrent   = "current branch"
	ReasonWorktree  = "active worktree"
)

// DeletionOperation is one branch to delete and the sides to delete it on.
// Operations are only built by PlanDeletion.
type DeletionOperation struct {
	name   string
	local  bool
	remote bool
}

// Name returns the branch name.
func (o DeletionOperation) Name() string { return o.name }

// Local reports whether the local ref is to be deleted.
func (o DeletionOperation) Local() bool { return o.local }

// Remote reports whether the remote ref is to be deleted.
func (o DeletionOperation) Remote() bool { return o.remote }

// Rejection explains why a selected branch can never be deleted.
type Rejection struct {
	Name   string
	Reason string
}

// Plan partitions a selection. Every selected name lands in exactly one of
// the three lists.
type Plan struct {
	Eligible     []DeletionOperation
	Rejected     []Rejection
	Inapplicable []string // not present on the side(s) the scope targets
}

// Names returns the branch names of the eligible operations.
func (p Plan) Names() []string {
	return lo.Map(p.Eligible, func(op DeletionOperation, _ int) string { return op.name })
}

// PlanDeletion decides which selected branches can be deleted under scope.
// Blocked records are rejected before the scope is considered.
func PlanDeletion(selection []string, records models.BranchMap, scope models.Scope) Plan {
	plan := Plan{}
	for _, name := range lo.Uniq(selection) {
		record, ok := records[name]
		if !ok {
			plan.Inapplicable = append(plan.Inapplicable, name)
			continue
		}
		if reason := RejectionReason(record); reason != "" {
			plan.Rejected = append(plan.Rejected, Rejection{Name: name, Reason: reason})
			continue
		}
		if !scope.Accepts(record.Presence) {
			plan.Inapplicable = append(plan.Inapplicable, name)
			continue
		}
		plan.Eligible = append(plan.Eligible, DeletionOperation{
			name:   name,
			local:  scope == models.ScopeLocal || scope == models.ScopeBoth,
			remote: scope == models.ScopeRemote || scope == models.ScopeBoth,
		})
	}
	return plan
}

// RejectionReason returns why a record can never be deleted, or "" when it
// can.
func RejectionReason(r models.BranchRecord) string {
	switch {
	case r.IsProtected:
		return ReasonProtected
	case r.IsCurrent:
		return ReasonCurrent
	case r.IsWorktreeBound:
		return ReasonWorktree
	default:
		return ""
	}
}

// AvailableScopes returns the scopes under which at least one selected branch
// would be deleted.
func AvailableScopes(selection []string, records models.BranchMap) []models.Scope {
	return lo.Filter([]models.Scope{models.ScopeLocal, models.ScopeRemote, models.ScopeBoth}, func(scope models.Scope, _ int) bool {
		return len(PlanDeletion(selection, records, scope).Eligible) > 0
	})
}
