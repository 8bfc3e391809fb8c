// Package recommend produces suppression and rebalance plans for the
// maintenance orchestrator. Plans are advisory: the orchestrator validates
// and executes them, and every executed plan is archived with the audit
// log.
//
// Two planners exist. RulePlanner is deterministic and always available.
// BedrockPlanner asks a model for a plan and falls back to the rules when
// the model is unreachable or returns something unusable, so maintenance
// never stalls on the recommendation service.
package recommend

import (
	"context"

	"github.com/ignite/listkeeper/internal/domain"
)

// SuppressionRequest carries the bounce-enriched candidates for one
// maintenance run, plus the campaign and list context the planner weighs
// them against.
type SuppressionRequest struct {
	CampaignID   string
	CampaignName string
	// ListName and CurrentDeliveryRate describe the round list under
	// maintenance at planning time. The rate is a 0-100 percentage.
	ListName            string
	CurrentDeliveryRate float64
	// SoftBounceThreshold is the bounce count at which soft bouncers get
	// suppressed.
	SoftBounceThreshold int
	// Candidates are contacts that bounced during the campaign, with
	// counters already updated.
	Candidates []domain.Contact
}

// RebalanceRequest describes the current shape of the active round lists.
type RebalanceRequest struct {
	// Lists are the active campaign round lists, ascending by round.
	Lists []domain.ContactList
	// Members holds each list's active memberships in FIFO order, keyed
	// by list ID. Suppressed contacts are excluded before planning.
	Members map[string][]domain.ListMembership
}

// Planner proposes suppression and rebalance plans.
type Planner interface {
	PlanSuppression(ctx context.Context, req SuppressionRequest) (*domain.SuppressionPlan, error)
	PlanRebalance(ctx context.Context, req RebalanceRequest) (*domain.RebalancePlan, error)
}
