// Package maintenance runs the post-campaign pipeline: fetch bounces,
// plan and execute suppressions, plan and execute a rebalance, and leave
// a complete audit trail. The audit log is written before any side
// effect, so a crashed run is visible as an in_progress record stuck at
// its last stage.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/pkg/distlock"
	"github.com/ignite/listkeeper/internal/pkg/logger"
	"github.com/ignite/listkeeper/internal/recommend"
	"github.com/ignite/listkeeper/internal/service/list"
)

// Contacts is the slice of the contact service the orchestrator needs.
type Contacts interface {
	RecordBounce(ctx context.Context, ev domain.BounceEvent) (*domain.Contact, error)
}

// Lists is the slice of the list service the orchestrator needs.
type Lists interface {
	GetList(ctx context.Context, listID string) (*domain.ContactList, error)
	ActiveRoundLists(ctx context.Context) ([]domain.ContactList, error)
	AllContacts(ctx context.Context, listID string) ([]domain.ListMembership, error)
	AddContact(ctx context.Context, contactID, listID string) (*domain.ListMembership, error)
	RemoveContact(ctx context.Context, contactID, listID string) error
}

// Suppressor executes suppressions decided by the plan.
type Suppressor interface {
	Suppress(ctx context.Context, req domain.SuppressionRequest) error
	SoftBounceThreshold() int
}

// BounceSource is the provider-side bounce feed.
type BounceSource interface {
	FetchBounces(ctx context.Context, listExternalID string, since time.Time) ([]domain.BounceEvent, error)
}

// AuditLog persists the run's audit record.
type AuditLog interface {
	Create(ctx context.Context, l *domain.MaintenanceLog) error
	UpdateStage(ctx context.Context, id string, stage domain.MaintenanceStage) error
	SaveSuppressionPlan(ctx context.Context, id string, plan []byte, recommendation string, confidence float64) error
	SaveRebalancePlan(ctx context.Context, id string, plan []byte) error
	UpdateCounts(ctx context.Context, id string, suppressed, rebalanced int) error
	Finalize(ctx context.Context, id string, status domain.MaintenanceStatus, stage domain.MaintenanceStage, errMsg string) error
}

// Archiver stores the finished run's plans. Best-effort.
type Archiver interface {
	Store(ctx context.Context, log *domain.MaintenanceLog) error
}

// Notifier reports run completion. Best-effort.
type Notifier interface {
	NotifyMaintenanceComplete(ctx context.Context, result domain.MaintenanceResult) error
}

// LockFactory builds the per-list run lock.
type LockFactory func(key string) distlock.DistLock

// Config tunes the orchestrator.
type Config struct {
	// Workers bounds concurrent suppression execution. Zero means 4.
	Workers int
	// StageTimeout bounds each external call. Zero means 2 minutes.
	StageTimeout time.Duration
	// LockTTL bounds how long a crashed run holds its list lock. Zero
	// means 15 minutes.
	LockTTL time.Duration
}

// Request triggers one maintenance run.
type Request struct {
	CampaignScheduleID string    `json:"campaign_schedule_id"`
	CampaignName       string    `json:"campaign_name"`
	RoundNumber        int       `json:"round_number"`
	ListID             string    `json:"list_id"`
	Since              time.Time `json:"since"`
	// DryRun plans everything but executes nothing.
	DryRun bool `json:"dry_run"`
}

// ErrRunInProgress is returned when the list already has an active run.
var ErrRunInProgress = fmt.Errorf("maintenance already in progress for this list")

// Orchestrator drives the post-campaign maintenance pipeline.
type Orchestrator struct {
	contacts  Contacts
	lists     Lists
	suppress  Suppressor
	source    BounceSource
	planner   recommend.Planner
	audit     AuditLog
	archive   Archiver
	notify    Notifier
	newLock   LockFactory
	workers   int
	stageTime time.Duration
	lockTTL   time.Duration
}

// New creates an orchestrator. archive and notify may be nil.
func New(contacts Contacts, lists Lists, suppress Suppressor, source BounceSource,
	planner recommend.Planner, audit AuditLog, archive Archiver, notify Notifier,
	newLock LockFactory, cfg Config) *Orchestrator {

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	stageTime := cfg.StageTimeout
	if stageTime <= 0 {
		stageTime = 2 * time.Minute
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Orchestrator{
		contacts:  contacts,
		lists:     lists,
		suppress:  suppress,
		source:    source,
		planner:   planner,
		audit:     audit,
		archive:   archive,
		notify:    notify,
		newLock:   newLock,
		workers:   workers,
		stageTime: stageTime,
		lockTTL:   lockTTL,
	}
}

// Run executes the full pipeline for one campaign. It returns a result in
// both the success and failure cases; the error mirrors result.Error for
// callers that prefer error handling.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.MaintenanceResult, error) {
	targetList, err := o.lists.GetList(ctx, req.ListID)
	if err != nil {
		return nil, fmt.Errorf("resolve list %s: %w", req.ListID, err)
	}

	// Audit first. The record exists before any lock or side effect.
	runLog := &domain.MaintenanceLog{
		CampaignScheduleID: req.CampaignScheduleID,
		ListID:             req.ListID,
		MaintenanceType:    "post_campaign",
		Stage:              domain.StageCreated,
		Status:             domain.MaintenanceInProgress,
		ExecutedAt:         time.Now().UTC(),
	}
	if err := o.audit.Create(ctx, runLog); err != nil {
		return nil, fmt.Errorf("create audit log: %w", err)
	}

	lock := o.newLock("maintenance:list:" + req.ListID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return o.fail(ctx, runLog, domain.StageCreated, fmt.Errorf("acquire run lock: %w", err))
	}
	if !acquired {
		return o.fail(ctx, runLog, domain.StageCreated, ErrRunInProgress)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("run lock release failed", "list_id", req.ListID, "error", err.Error())
		}
	}()

	logger.Info("maintenance run started",
		"log_id", runLog.ID,
		"list_id", req.ListID,
		"campaign_schedule_id", req.CampaignScheduleID,
		"campaign", req.CampaignName,
		"round", req.RoundNumber,
		"dry_run", req.DryRun)

	// Stage 1: fetch and apply bounce feedback.
	o.advance(ctx, runLog, domain.StageFetchingBounces)
	candidates, err := o.fetchAndApplyBounces(ctx, targetList, req.Since)
	if err != nil {
		return o.fail(ctx, runLog, domain.StageFetchingBounces, err)
	}

	// Stage 2: plan suppression.
	o.advance(ctx, runLog, domain.StagePlanningSuppression)
	suppressionPlan, err := o.planSuppression(ctx, runLog, req, targetList, candidates)
	if err != nil {
		return o.fail(ctx, runLog, domain.StagePlanningSuppression, err)
	}

	// Stage 3: execute suppressions.
	o.advance(ctx, runLog, domain.StageSuppressing)
	suppressed, suppressedIDs := o.executeSuppressions(ctx, req, suppressionPlan)

	// Stage 4: plan rebalance over the surviving population.
	o.advance(ctx, runLog, domain.StagePlanningRebalance)
	rebalancePlan, err := o.planRebalance(ctx, runLog, suppressedIDs)
	if err != nil {
		return o.fail(ctx, runLog, domain.StagePlanningRebalance, err)
	}

	// Stage 5: execute moves.
	o.advance(ctx, runLog, domain.StageRebalancing)
	rebalanced := o.executeRebalance(ctx, req, rebalancePlan)

	if err := o.audit.UpdateCounts(ctx, runLog.ID, suppressed, rebalanced); err != nil {
		logger.Warn("audit count update failed", "log_id", runLog.ID, "error", err.Error())
	}
	if err := o.audit.Finalize(ctx, runLog.ID, domain.MaintenanceCompleted, domain.StageCompleted, ""); err != nil {
		logger.Warn("audit finalize failed", "log_id", runLog.ID, "error", err.Error())
	}

	runLog.Stage = domain.StageCompleted
	runLog.Status = domain.MaintenanceCompleted
	runLog.ContactsSuppressed = suppressed
	runLog.ContactsRebalanced = rebalanced

	result := &domain.MaintenanceResult{
		Success:            true,
		MaintenanceLogID:   runLog.ID,
		ContactsSuppressed: suppressed,
		ContactsRebalanced: rebalanced,
		Summary: renderSummary(summaryData{
			ListName:       targetList.Name,
			Suppressed:     suppressed,
			Rebalanced:     rebalanced,
			PlannedMoves:   len(rebalancePlan.Moves),
			PlannedSupp:    len(suppressionPlan.Items),
			Recommendation: suppressionPlan.Summary,
			DryRun:         req.DryRun,
		}),
	}

	if o.archive != nil {
		if err := o.archive.Store(ctx, runLog); err != nil {
			logger.Warn("plan archive failed", "log_id", runLog.ID, "error", err.Error())
		}
	}
	if o.notify != nil {
		if err := o.notify.NotifyMaintenanceComplete(ctx, *result); err != nil {
			logger.Warn("completion notify failed", "log_id", runLog.ID, "error", err.Error())
		}
	}

	logger.Info("maintenance run finished",
		"log_id", runLog.ID,
		"suppressed", suppressed,
		"rebalanced", rebalanced,
		"dry_run", req.DryRun)
	return result, nil
}

// advance moves the stage marker. A failed marker write is logged but does
// not abort the run; the work itself is what matters.
func (o *Orchestrator) advance(ctx context.Context, runLog *domain.MaintenanceLog, stage domain.MaintenanceStage) {
	runLog.Stage = stage
	if err := o.audit.UpdateStage(ctx, runLog.ID, stage); err != nil {
		logger.Warn("audit stage update failed",
			"log_id", runLog.ID, "stage", string(stage), "error", err.Error())
	}
}

func (o *Orchestrator) fail(ctx context.Context, runLog *domain.MaintenanceLog, stage domain.MaintenanceStage, cause error) (*domain.MaintenanceResult, error) {
	logger.Error("maintenance run failed",
		"log_id", runLog.ID, "stage", string(stage), "error", cause.Error())

	if err := o.audit.Finalize(ctx, runLog.ID, domain.MaintenanceFailed, domain.StageFailed, cause.Error()); err != nil {
		logger.Error("audit failure finalize failed", "log_id", runLog.ID, "error", err.Error())
	}

	result := &domain.MaintenanceResult{
		Success:          false,
		MaintenanceLogID: runLog.ID,
		Error:            cause.Error(),
	}
	if o.notify != nil {
		if err := o.notify.NotifyMaintenanceComplete(ctx, *result); err != nil {
			logger.Warn("failure notify failed", "log_id", runLog.ID, "error", err.Error())
		}
	}
	return result, fmt.Errorf("maintenance stage %s: %w", stage, cause)
}

// withRetry runs fn under the stage timeout, retrying once on failure.
func (o *Orchestrator) withRetry(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.stageTime)
		lastErr = fn(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		logger.Warn(what+" failed, retrying", "attempt", attempt+1, "error", lastErr.Error())
	}
	return lastErr
}

// fetchAndApplyBounces pulls the provider feed and folds each event into
// the contact store. The returned candidates carry updated counters,
// deduplicated per contact with the last event winning.
func (o *Orchestrator) fetchAndApplyBounces(ctx context.Context, targetList *domain.ContactList, since time.Time) ([]domain.Contact, error) {
	var events []domain.BounceEvent
	err := o.withRetry(ctx, "bounce fetch", func(ctx context.Context) error {
		var err error
		events, err = o.source.FetchBounces(ctx, targetList.ExternalID, since)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch bounces: %w", err)
	}

	byID := make(map[string]domain.Contact)
	order := make([]string, 0, len(events))
	for _, ev := range events {
		c, err := o.contacts.RecordBounce(ctx, ev)
		if err != nil {
			logger.Warn("bounce apply failed", "email", logger.RedactEmail(ev.Email), "error", err.Error())
			continue
		}
		if _, seen := byID[c.ID]; !seen {
			order = append(order, c.ID)
		}
		byID[c.ID] = *c
	}

	candidates := make([]domain.Contact, 0, len(byID))
	for _, id := range order {
		candidates = append(candidates, byID[id])
	}
	logger.Info("bounce feedback applied",
		"events", len(events), "contacts", len(candidates))
	return candidates, nil
}

func (o *Orchestrator) planSuppression(ctx context.Context, runLog *domain.MaintenanceLog, req Request, targetList *domain.ContactList, candidates []domain.Contact) (*domain.SuppressionPlan, error) {
	var plan *domain.SuppressionPlan
	err := o.withRetry(ctx, "suppression planning", func(ctx context.Context) error {
		var err error
		plan, err = o.planner.PlanSuppression(ctx, recommend.SuppressionRequest{
			CampaignID:          req.CampaignScheduleID,
			CampaignName:        req.CampaignName,
			ListName:            targetList.Name,
			CurrentDeliveryRate: targetList.DeliveryRate,
			SoftBounceThreshold: o.suppress.SoftBounceThreshold(),
			Candidates:          candidates,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("plan suppression: %w", err)
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode suppression plan: %w", err)
	}
	if err := o.audit.SaveSuppressionPlan(ctx, runLog.ID, raw, plan.Summary, plan.Confidence); err != nil {
		logger.Warn("suppression plan save failed", "log_id", runLog.ID, "error", err.Error())
	}
	runLog.SuppressionPlan = raw
	runLog.Recommendation = plan.Summary
	runLog.Confidence = plan.Confidence
	return plan, nil
}

// executeSuppressions applies the plan with a bounded worker pool. One
// failing contact never blocks the rest; failures are logged and the
// contact simply stays active. Returns the executed count and the set of
// suppressed contact ids.
func (o *Orchestrator) executeSuppressions(ctx context.Context, req Request, plan *domain.SuppressionPlan) (int, map[string]bool) {
	suppressedIDs := make(map[string]bool, len(plan.Items))
	if req.DryRun || len(plan.Items) == 0 {
		// Dry runs still report what would happen downstream.
		for _, item := range plan.Items {
			suppressedIDs[item.ContactID] = true
		}
		return 0, suppressedIDs
	}

	var (
		mu        sync.Mutex
		succeeded int64
		wg        sync.WaitGroup
		work      = make(chan domain.SuppressionPlanItem)
	)
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				err := o.suppress.Suppress(ctx, domain.SuppressionRequest{
					ContactID:        item.ContactID,
					Reason:           item.Reason,
					SuppressedBy:     "maintenance",
					Rationale:        item.Rationale,
					Confidence:       item.Confidence,
					SourceCampaignID: req.CampaignScheduleID,
				})
				if err != nil {
					logger.Warn("suppression failed",
						"contact_id", item.ContactID, "error", err.Error())
					continue
				}
				if err := o.lists.RemoveContact(ctx, item.ContactID, req.ListID); err != nil && err != list.ErrMembershipNotFound {
					logger.Warn("round list removal failed",
						"contact_id", item.ContactID, "list_id", req.ListID, "error", err.Error())
				}
				atomic.AddInt64(&succeeded, 1)
				mu.Lock()
				suppressedIDs[item.ContactID] = true
				mu.Unlock()
			}
		}()
	}
	for _, item := range plan.Items {
		work <- item
	}
	close(work)
	wg.Wait()

	return int(succeeded), suppressedIDs
}

// planRebalance snapshots the active round lists, drops suppressed
// members, and asks the planner for moves.
func (o *Orchestrator) planRebalance(ctx context.Context, runLog *domain.MaintenanceLog, suppressedIDs map[string]bool) (*domain.RebalancePlan, error) {
	lists, err := o.lists.ActiveRoundLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("load round lists: %w", err)
	}

	members := make(map[string][]domain.ListMembership, len(lists))
	for _, l := range lists {
		all, err := o.lists.AllContacts(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("load members of %s: %w", l.ID, err)
		}
		kept := all[:0]
		for _, m := range all {
			if !suppressedIDs[m.ContactID] {
				kept = append(kept, m)
			}
		}
		members[l.ID] = kept
	}

	var plan *domain.RebalancePlan
	err = o.withRetry(ctx, "rebalance planning", func(ctx context.Context) error {
		var err error
		plan, err = o.planner.PlanRebalance(ctx, recommend.RebalanceRequest{
			Lists:   lists,
			Members: members,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("plan rebalance: %w", err)
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode rebalance plan: %w", err)
	}
	if err := o.audit.SaveRebalancePlan(ctx, runLog.ID, raw); err != nil {
		logger.Warn("rebalance plan save failed", "log_id", runLog.ID, "error", err.Error())
	}
	runLog.RebalancePlan = raw
	return plan, nil
}

// executeRebalance applies moves in plan order. A move appends to the
// destination, so relocated contacts join the destination tail and all
// existing positions stay put. A failed move is logged and skipped.
func (o *Orchestrator) executeRebalance(ctx context.Context, req Request, plan *domain.RebalancePlan) int {
	if req.DryRun {
		return 0
	}

	moved := 0
	for _, mv := range plan.Moves {
		if err := o.lists.RemoveContact(ctx, mv.ContactID, mv.FromListID); err != nil {
			logger.Warn("rebalance removal failed",
				"contact_id", mv.ContactID, "from", mv.FromListID, "error", err.Error())
			continue
		}
		if _, err := o.lists.AddContact(ctx, mv.ContactID, mv.ToListID); err != nil {
			logger.Error("rebalance add failed, contact left off destination",
				"contact_id", mv.ContactID, "to", mv.ToListID, "error", err.Error())
			continue
		}
		moved++
	}
	return moved
}
