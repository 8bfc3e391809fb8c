package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/pkg/logger"
)

// DefaultModelID is used when no model is configured.
const DefaultModelID = "anthropic.claude-3-sonnet-20240229-v1:0"

// bedrockMessage is a message in the Anthropic Bedrock format.
type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// modelInvoker is the slice of the Bedrock runtime client the planner
// needs.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockPlanner asks a Bedrock-hosted model for plans. The model must
// answer with strict JSON; anything else (transport error, malformed
// output, out-of-range values) falls back to the rule planner so a flaky
// model can never block maintenance.
type BedrockPlanner struct {
	client   modelInvoker
	modelID  string
	fallback *RulePlanner
}

// NewBedrockPlanner creates a model-backed planner in the given region.
func NewBedrockPlanner(ctx context.Context, region, modelID string, fallback *RulePlanner) (*BedrockPlanner, error) {
	if modelID == "" {
		modelID = DefaultModelID
	}
	if fallback == nil {
		fallback = &RulePlanner{}
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockPlanner{
		client:   bedrockruntime.NewFromConfig(cfg),
		modelID:  modelID,
		fallback: fallback,
	}, nil
}

const suppressionSystemPrompt = `You are a list hygiene analyst for an email marketing platform. Given bounced contacts, decide which should be suppressed.

Rules you must respect:
- hard bounces and spam complaints are always suppressed
- soft bouncers are suppressed once at or over the stated threshold
- never suppress a contact that is not in the candidate set

Respond with STRICT JSON only, no prose, matching:
{"suppressions": [{"contact_id": "...", "reason": "hard_bounce|soft_bounce_threshold|spam_complaint|ai_recommended", "rationale": "...", "confidence": 0.0}], "confidence": 0.0, "summary": "..."}`

const rebalanceSystemPrompt = `You are a list hygiene analyst for an email marketing platform. Given round list sizes and their members in send order, propose moves that equalize list sizes.

Rules you must respect:
- only move contacts that appear in the provided member sets
- moves append to the destination list; never reorder existing members
- an oversized earlier list donates its tail to later lists; an oversized later list donates its head to earlier lists
- emit moves in the donor's position order so arrivals keep their original relative order

Respond with STRICT JSON only, no prose, matching:
{"is_balanced": false, "moves": [{"contact_id": "...", "from_list_id": "...", "to_list_id": "..."}], "balance_score": 0.0, "summary": "..."}`

// PlanSuppression asks the model for a suppression plan and validates it
// against the candidate set.
func (p *BedrockPlanner) PlanSuppression(ctx context.Context, req SuppressionRequest) (*domain.SuppressionPlan, error) {
	payload, err := json.Marshal(map[string]any{
		"campaign_id":           req.CampaignID,
		"campaign_name":         req.CampaignName,
		"list_name":             req.ListName,
		"current_delivery_rate": req.CurrentDeliveryRate,
		"soft_bounce_threshold": req.SoftBounceThreshold,
		"candidates":            req.Candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal candidates: %w", err)
	}

	raw, err := p.invoke(ctx, suppressionSystemPrompt, string(payload))
	if err != nil {
		logger.Warn("model suppression plan failed, using rules", "error", err.Error())
		return p.fallback.PlanSuppression(ctx, req)
	}

	var plan domain.SuppressionPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		logger.Warn("model suppression plan malformed, using rules", "error", err.Error())
		return p.fallback.PlanSuppression(ctx, req)
	}
	if err := validateSuppressionPlan(&plan, req.Candidates); err != nil {
		logger.Warn("model suppression plan rejected, using rules", "error", err.Error())
		return p.fallback.PlanSuppression(ctx, req)
	}
	return &plan, nil
}

// PlanRebalance asks the model for a rebalance plan and validates its
// moves against the member sets.
func (p *BedrockPlanner) PlanRebalance(ctx context.Context, req RebalanceRequest) (*domain.RebalancePlan, error) {
	payload, err := json.Marshal(map[string]any{
		"lists":   req.Lists,
		"members": req.Members,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list state: %w", err)
	}

	raw, err := p.invoke(ctx, rebalanceSystemPrompt, string(payload))
	if err != nil {
		logger.Warn("model rebalance plan failed, using rules", "error", err.Error())
		return p.fallback.PlanRebalance(ctx, req)
	}

	var plan domain.RebalancePlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		logger.Warn("model rebalance plan malformed, using rules", "error", err.Error())
		return p.fallback.PlanRebalance(ctx, req)
	}
	if err := validateRebalancePlan(&plan, req); err != nil {
		logger.Warn("model rebalance plan rejected, using rules", "error", err.Error())
		return p.fallback.PlanRebalance(ctx, req)
	}
	return &plan, nil
}

func (p *BedrockPlanner) invoke(ctx context.Context, system, user string) ([]byte, error) {
	request := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        4000,
		System:           system,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContentBlock{{Type: "text", Text: user}},
		}},
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return nil, fmt.Errorf("Bedrock API error: %w", err)
	}

	var response bedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var text string
	for _, content := range response.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}
	logger.Debug("model plan generated",
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens)

	return []byte(extractJSON(text)), nil
}

// extractJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
		text = strings.TrimPrefix(text, "json")
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func validateSuppressionPlan(plan *domain.SuppressionPlan, candidates []domain.Contact) error {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	for _, item := range plan.Items {
		if !known[item.ContactID] {
			return fmt.Errorf("plan names unknown contact %q", item.ContactID)
		}
		switch item.Reason {
		case domain.ReasonHardBounce, domain.ReasonSoftBounceExceeded,
			domain.ReasonComplaint, domain.ReasonRecommended:
		default:
			return fmt.Errorf("plan uses invalid reason %q", item.Reason)
		}
	}
	return nil
}

// validateRebalancePlan rejects plans the orchestrator must not execute:
// moves of unknown contacts or lists, and moves that would break send
// order. Appends at a destination must arrive in registration order, and
// no contact may end up in a later round than a contact registered after
// it.
func validateRebalancePlan(plan *domain.RebalancePlan, req RebalanceRequest) error {
	listKnown := make(map[string]bool, len(req.Lists))
	roundIdx := make(map[string]int, len(req.Lists))
	for i, l := range req.Lists {
		listKnown[l.ID] = true
		roundIdx[l.ID] = i
	}

	// Registration order: round lists ascending, positions ascending.
	memberOf := make(map[string]string)
	ord := make(map[string]int)
	var byOrd []string
	for _, l := range req.Lists {
		for _, m := range req.Members[l.ID] {
			memberOf[m.ContactID] = l.ID
			ord[m.ContactID] = len(byOrd)
			byOrd = append(byOrd, m.ContactID)
		}
	}

	finalList := make(map[string]string, len(memberOf))
	for c, listID := range memberOf {
		finalList[c] = listID
	}
	moved := make(map[string]bool, len(plan.Moves))
	lastArrival := make(map[string]int)
	for _, mv := range plan.Moves {
		if !listKnown[mv.FromListID] || !listKnown[mv.ToListID] {
			return fmt.Errorf("move references unknown list %q -> %q", mv.FromListID, mv.ToListID)
		}
		if memberOf[mv.ContactID] != mv.FromListID {
			return fmt.Errorf("contact %q is not an active member of %q", mv.ContactID, mv.FromListID)
		}
		if moved[mv.ContactID] {
			return fmt.Errorf("contact %q is moved more than once", mv.ContactID)
		}
		moved[mv.ContactID] = true
		if last, ok := lastArrival[mv.ToListID]; ok && ord[mv.ContactID] < last {
			return fmt.Errorf("arrivals at %q are out of registration order at contact %q", mv.ToListID, mv.ContactID)
		}
		lastArrival[mv.ToListID] = ord[mv.ContactID]
		finalList[mv.ContactID] = mv.ToListID
	}

	// Walking the population in registration order, the final round index
	// must never decrease.
	prevRound := -1
	for _, c := range byOrd {
		r := roundIdx[finalList[c]]
		if r < prevRound {
			return fmt.Errorf("contact %q would land in an earlier round than a contact registered before it", c)
		}
		prevRound = r
	}
	return nil
}
