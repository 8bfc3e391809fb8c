package domain

import "time"

// MaintenanceStatus enumerates the lifecycle states of a maintenance run.
type MaintenanceStatus string

const (
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceFailed     MaintenanceStatus = "failed"
)

// MaintenanceStage identifies where a run is in the pipeline. Stages advance
// strictly forward; FAILED is reachable from any of them.
type MaintenanceStage string

const (
	StageCreated             MaintenanceStage = "created"
	StageFetchingBounces     MaintenanceStage = "fetching_bounces"
	StagePlanningSuppression MaintenanceStage = "planning_suppression"
	StageSuppressing         MaintenanceStage = "suppressing"
	StagePlanningRebalance   MaintenanceStage = "planning_rebalance"
	StageRebalancing         MaintenanceStage = "rebalancing"
	StageCompleted           MaintenanceStage = "completed"
	StageFailed              MaintenanceStage = "failed"
)

// MaintenanceLog is the audit record for one orchestrator run. Created
// before any side effect, updated as stages complete, never deleted.
type MaintenanceLog struct {
	ID                 string            `json:"id" db:"id"`
	CampaignScheduleID string            `json:"campaign_schedule_id" db:"campaign_schedule_id"`
	ListID             string            `json:"list_id" db:"list_id"`
	MaintenanceType    string            `json:"maintenance_type" db:"maintenance_type"`
	Stage              MaintenanceStage  `json:"stage" db:"stage"`
	Status             MaintenanceStatus `json:"status" db:"status"`
	ContactsSuppressed int               `json:"contacts_suppressed" db:"contacts_suppressed"`
	ContactsRebalanced int               `json:"contacts_rebalanced" db:"contacts_rebalanced"`
	SuppressionPlan    []byte            `json:"suppression_plan,omitempty" db:"suppression_plan"`
	RebalancePlan      []byte            `json:"rebalance_plan,omitempty" db:"rebalance_plan"`
	Recommendation     string            `json:"recommendation" db:"recommendation"`
	Confidence         float64           `json:"confidence" db:"confidence"`
	Error              string            `json:"error,omitempty" db:"error"`
	ExecutedAt         time.Time         `json:"executed_at" db:"executed_at"`
	CompletedAt        *time.Time        `json:"completed_at" db:"completed_at"`
}

// MaintenanceResult is returned to the campaign scheduler that triggered
// the run.
type MaintenanceResult struct {
	Success            bool   `json:"success"`
	MaintenanceLogID   string `json:"maintenance_log_id"`
	ContactsSuppressed int    `json:"contacts_suppressed"`
	ContactsRebalanced int    `json:"contacts_rebalanced"`
	Summary            string `json:"summary"`
	Error              string `json:"error,omitempty"`
}

// SuppressionPlanItem is one proposed suppression from the recommendation
// service.
type SuppressionPlanItem struct {
	ContactID  string            `json:"contact_id"`
	Reason     SuppressionReason `json:"reason"`
	Rationale  string            `json:"rationale"`
	Confidence float64           `json:"confidence"`
}

// SuppressionPlan is the recommendation service's answer to "who should
// stop receiving mail".
type SuppressionPlan struct {
	Items      []SuppressionPlanItem `json:"suppressions"`
	Confidence float64               `json:"confidence"`
	Summary    string                `json:"summary"`
}

// RebalanceMove relocates one contact between round lists.
type RebalanceMove struct {
	ContactID  string `json:"contact_id"`
	FromListID string `json:"from_list_id"`
	ToListID   string `json:"to_list_id"`
}

// RebalancePlan equalizes round list sizes while preserving FIFO order.
type RebalancePlan struct {
	IsBalanced   bool            `json:"is_balanced"`
	Moves        []RebalanceMove `json:"moves"`
	BalanceScore float64         `json:"balance_score"`
	Summary      string          `json:"summary"`
}
