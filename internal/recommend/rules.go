package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/service/suppression"
)

// RulePlanner produces plans from deterministic rules. It is the fallback
// for the model-backed planner and the default when no model is
// configured.
type RulePlanner struct {
	// MaxSkew is the largest tolerated size difference between the
	// biggest and smallest round list before a rebalance is proposed.
	// Zero means 1 (lists within one contact of each other are balanced).
	MaxSkew int
}

// PlanSuppression suppresses hard bouncers and complainers outright, and
// soft bouncers once their counter reaches the threshold. Contacts already
// suppressed are skipped.
func (p *RulePlanner) PlanSuppression(_ context.Context, req SuppressionRequest) (*domain.SuppressionPlan, error) {
	threshold := req.SoftBounceThreshold
	if threshold <= 0 {
		threshold = suppression.DefaultSoftBounceThreshold
	}

	plan := &domain.SuppressionPlan{Confidence: 1.0}
	for _, c := range req.Candidates {
		if c.Status == domain.ContactSuppressed || c.LastBounceType == nil {
			continue
		}
		item := domain.SuppressionPlanItem{ContactID: c.ID, Confidence: 1.0}
		switch *c.LastBounceType {
		case domain.BounceHard:
			item.Reason = domain.ReasonHardBounce
			item.Rationale = "hard bounce"
		case domain.BounceComplaint:
			item.Reason = domain.ReasonComplaint
			item.Rationale = "spam complaint"
		case domain.BounceSoft:
			if c.BounceCount < threshold {
				continue
			}
			item.Reason = domain.ReasonSoftBounceExceeded
			item.Rationale = fmt.Sprintf("%d soft bounces (threshold %d)", c.BounceCount, threshold)
		default:
			continue
		}
		plan.Items = append(plan.Items, item)
	}

	plan.Summary = fmt.Sprintf("%d of %d bounced contacts qualify for suppression",
		len(plan.Items), len(req.Candidates))
	return plan, nil
}

// PlanRebalance equalizes active round list sizes without disturbing send
// order. An oversized earlier round donates its tail to later rounds; an
// oversized later round donates its head, its earliest-registered members,
// back to earlier rounds. Moves are emitted in position order, so appending
// them at the destination reproduces the donor's original relative order.
func (p *RulePlanner) PlanRebalance(_ context.Context, req RebalanceRequest) (*domain.RebalancePlan, error) {
	maxSkew := p.MaxSkew
	if maxSkew <= 0 {
		maxSkew = 1
	}

	plan := &domain.RebalancePlan{}
	if len(req.Lists) < 2 {
		plan.IsBalanced = true
		plan.BalanceScore = 100
		plan.Summary = "fewer than two round lists, nothing to balance"
		return plan, nil
	}

	// First settle how many contacts each donor sends to each receiver. A
	// list only ever donates or only ever receives within one plan, so the
	// per-pair counts do not depend on the order the loop found them in.
	sizes := make(map[string]int, len(req.Lists))
	for _, l := range req.Lists {
		sizes[l.ID] = len(req.Members[l.ID])
	}
	transfers := make(map[string]map[string]int)
	for {
		bigID, smallID := extremes(req.Lists, sizes)
		if sizes[bigID]-sizes[smallID] <= maxSkew || sizes[bigID] == 0 {
			break
		}
		if transfers[bigID] == nil {
			transfers[bigID] = make(map[string]int)
		}
		transfers[bigID][smallID]++
		sizes[bigID]--
		sizes[smallID]++
	}

	// Then pick the members. Donations to earlier rounds come off the
	// donor's head, earliest member to the earliest round; donations to
	// later rounds come off its tail. Both walks emit moves in ascending
	// position order.
	order := make(map[string]int, len(req.Lists))
	for i, l := range req.Lists {
		order[l.ID] = i
	}
	for _, donor := range req.Lists {
		outbound := transfers[donor.ID]
		if len(outbound) == 0 {
			continue
		}
		members := req.Members[donor.ID]
		headTotal, tailTotal := 0, 0
		for _, recv := range req.Lists {
			if order[recv.ID] < order[donor.ID] {
				headTotal += outbound[recv.ID]
			} else {
				tailTotal += outbound[recv.ID]
			}
		}
		head := members[:headTotal]
		tail := members[len(members)-tailTotal:]
		for _, recv := range req.Lists {
			if order[recv.ID] >= order[donor.ID] {
				continue
			}
			for i := 0; i < outbound[recv.ID]; i++ {
				plan.Moves = append(plan.Moves, domain.RebalanceMove{
					ContactID:  head[0].ContactID,
					FromListID: donor.ID,
					ToListID:   recv.ID,
				})
				head = head[1:]
			}
		}
		for _, recv := range req.Lists {
			if order[recv.ID] <= order[donor.ID] {
				continue
			}
			for i := 0; i < outbound[recv.ID]; i++ {
				plan.Moves = append(plan.Moves, domain.RebalanceMove{
					ContactID:  tail[0].ContactID,
					FromListID: donor.ID,
					ToListID:   recv.ID,
				})
				tail = tail[1:]
			}
		}
	}

	plan.IsBalanced = len(plan.Moves) == 0
	plan.BalanceScore = balanceScore(sizes)
	if plan.IsBalanced {
		plan.Summary = "round lists already balanced"
	} else {
		plan.Summary = fmt.Sprintf("%d moves to equalize %d round lists", len(plan.Moves), len(req.Lists))
	}
	return plan, nil
}

// extremes returns the largest and smallest lists, breaking ties by round
// order so plans are deterministic.
func extremes(lists []domain.ContactList, sizes map[string]int) (bigID, smallID string) {
	for _, l := range lists {
		if bigID == "" || sizes[l.ID] > sizes[bigID] {
			bigID = l.ID
		}
		if smallID == "" || sizes[l.ID] < sizes[smallID] {
			smallID = l.ID
		}
	}
	return bigID, smallID
}

// balanceScore is 100 for perfectly even lists, dropping with the spread
// between the largest and smallest as a share of the mean.
func balanceScore(sizes map[string]int) float64 {
	if len(sizes) == 0 {
		return 100
	}
	vals := make([]int, 0, len(sizes))
	total := 0
	for _, n := range sizes {
		vals = append(vals, n)
		total += n
	}
	if total == 0 {
		return 100
	}
	sort.Ints(vals)
	spread := float64(vals[len(vals)-1] - vals[0])
	mean := float64(total) / float64(len(vals))
	score := 100 - (spread/mean)*100
	if score < 0 {
		return 0
	}
	return score
}
