package maintenance

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/ignite/listkeeper/internal/pkg/logger"
)

// summaryTemplate is the operator-facing run summary. Liquid keeps the
// wording editable without touching orchestrator code.
const summaryTemplate = `Maintenance of {{ list_name }}: suppressed {{ suppressed }} of {{ planned_suppressions }} planned, rebalanced {{ rebalanced }} of {{ planned_moves }} planned moves{% if dry_run %} (dry run, nothing executed){% endif %}.{% if recommendation != "" %} Planner: {{ recommendation }}{% endif %}`

var summaryEngine = liquid.NewEngine()

type summaryData struct {
	ListName       string
	Suppressed     int
	Rebalanced     int
	PlannedSupp    int
	PlannedMoves   int
	Recommendation string
	DryRun         bool
}

// renderSummary builds the human-readable run summary. Template trouble
// degrades to a plain sentence rather than failing the run.
func renderSummary(data summaryData) string {
	out, err := summaryEngine.ParseAndRenderString(summaryTemplate, liquid.Bindings{
		"list_name":            data.ListName,
		"suppressed":           data.Suppressed,
		"rebalanced":           data.Rebalanced,
		"planned_suppressions": data.PlannedSupp,
		"planned_moves":        data.PlannedMoves,
		"recommendation":       data.Recommendation,
		"dry_run":              data.DryRun,
	})
	if err != nil {
		logger.Warn("summary render failed", "error", err.Error())
		return fmt.Sprintf("Maintenance of %s: suppressed %d, rebalanced %d",
			data.ListName, data.Suppressed, data.Rebalanced)
	}
	return out
}
