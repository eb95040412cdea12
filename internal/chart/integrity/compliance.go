package integrity

import (
	"fmt"
	"time"

	"orgchart/internal/chart/hierarchy"
	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
)

// Config tunes the validator. Strictness knobs live here rather than in
// code so per-organization policy stays a wiring decision.
type Config struct {
	// AllowMultipleRoots permits more than one parentless area per chart.
	AllowMultipleRoots bool
	// StrictLevelOrdering upgrades level-ordering violations from warning
	// to error. Upstream enforcement of this rule is inconsistent, so it
	// ships as a knob with lax default.
	StrictLevelOrdering bool
	// MaxPositionDepth is the deepest permitted reporting chain.
	MaxPositionDepth int
	// MinAreaDepth is the minimum area-tree depth required in sectors that
	// mandate sub-structure.
	MinAreaDepth int
	// VacancyWarnPercent triggers an informational issue when exceeded.
	VacancyWarnPercent float64
}

// DefaultConfig returns the shipped policy defaults.
func DefaultConfig() Config {
	return Config{
		MaxPositionDepth:   6,
		MinAreaDepth:       1,
		VacancyWarnPercent: 50,
	}
}

// Rule is one compliance check. Rules are data: adding a sector rule means
// appending to the table, not branching in the evaluator.
type Rule struct {
	Code    string
	Sectors []id.Sector // empty = applies to all sectors
	Check   func(tree *hierarchy.Tree, cfg Config) []models.ComplianceIssue
}

func (r Rule) appliesTo(sector id.Sector) bool {
	if len(r.Sectors) == 0 {
		return true
	}
	for _, s := range r.Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// EvaluateCompliance runs the ordered rule table against a built tree and
// scores the result. Issues never abort; they are returned as data.
func EvaluateCompliance(tree *hierarchy.Tree, sector id.Sector, cfg Config, now time.Time) models.ComplianceSummary {
	issues := make([]models.ComplianceIssue, 0)
	for _, rule := range ruleTable {
		if !rule.appliesTo(sector) {
			continue
		}
		issues = append(issues, rule.Check(tree, cfg)...)
	}
	return models.ComplianceSummary{
		Score:       models.ScoreFromIssues(issues),
		Issues:      issues,
		EvaluatedAt: now,
	}
}

var ruleTable = []Rule{
	{
		Code:    "process_owner_required",
		Sectors: []id.Sector{id.SectorHealth},
		Check:   checkProcessOwner,
	},
	{
		Code:  "management_presence",
		Check: checkManagementPresence,
	},
	{
		Code:  "position_code_unique",
		Check: checkPositionCodeUnique,
	},
	{
		Code:  "level_ordering",
		Check: checkLevelOrdering,
	},
	{
		Code:  "max_depth",
		Check: checkMaxDepth,
	},
	{
		Code:    "min_area_depth",
		Sectors: []id.Sector{id.SectorHealth},
		Check:   checkMinAreaDepth,
	},
	{
		Code:  "critical_vacancy",
		Check: checkCriticalVacancy,
	},
	{
		Code:  "vacancy_rate",
		Check: checkVacancyRate,
	},
}

func checkProcessOwner(tree *hierarchy.Tree, _ Config) []models.ComplianceIssue {
	for _, p := range tree.Positions {
		if p.ProcessOwner {
			return nil
		}
	}
	return []models.ComplianceIssue{{
		Severity: models.SeverityError,
		RuleCode: "process_owner_required",
		Message:  "chart must contain at least one process owner position",
	}}
}

func checkManagementPresence(tree *hierarchy.Tree, _ Config) []models.ComplianceIssue {
	if len(tree.Positions) == 0 {
		return []models.ComplianceIssue{{
			Severity: models.SeverityError,
			RuleCode: "management_presence",
			Message:  "chart has no positions",
		}}
	}
	for _, p := range tree.Positions {
		if p.Management {
			return nil
		}
	}
	return []models.ComplianceIssue{{
		Severity: models.SeverityError,
		RuleCode: "management_presence",
		Message:  "chart must contain at least one management position",
	}}
}

func checkPositionCodeUnique(tree *hierarchy.Tree, _ Config) []models.ComplianceIssue {
	type key struct {
		area id.AreaID
		code string
	}
	seen := make(map[key]bool, len(tree.Positions))
	var issues []models.ComplianceIssue
	for _, p := range tree.Positions {
		k := key{area: p.AreaID, code: p.Code}
		if seen[k] {
			issues = append(issues, models.ComplianceIssue{
				Severity:   models.SeverityError,
				RuleCode:   "position_code_unique",
				Message:    fmt.Sprintf("position code %q duplicated within its area", p.Code),
				EntityKind: "position",
				EntityID:   p.ID.String(),
			})
			continue
		}
		seen[k] = true
	}
	return issues
}

func checkLevelOrdering(tree *hierarchy.Tree, cfg Config) []models.ComplianceIssue {
	severity := models.SeverityWarning
	if cfg.StrictLevelOrdering {
		severity = models.SeverityError
	}
	byID := make(map[id.PositionID]hierarchy.PositionNode, len(tree.Positions))
	for _, p := range tree.Positions {
		byID[p.ID] = p
	}
	var issues []models.ComplianceIssue
	for _, p := range tree.Positions {
		if p.ReportsTo == nil {
			continue
		}
		manager, ok := byID[*p.ReportsTo]
		if !ok {
			continue
		}
		if p.Level.Outranks(manager.Level) {
			issues = append(issues, models.ComplianceIssue{
				Severity:   severity,
				RuleCode:   "level_ordering",
				Message:    fmt.Sprintf("position %s (%s) outranks its manager %s (%s)", p.Code, p.Level, manager.Code, manager.Level),
				EntityKind: "position",
				EntityID:   p.ID.String(),
			})
		}
	}
	return issues
}

func checkMaxDepth(tree *hierarchy.Tree, cfg Config) []models.ComplianceIssue {
	if cfg.MaxPositionDepth <= 0 || tree.Metrics.MaxDepth <= cfg.MaxPositionDepth {
		return nil
	}
	return []models.ComplianceIssue{{
		Severity: models.SeverityWarning,
		RuleCode: "max_depth",
		Message:  fmt.Sprintf("reporting chain depth %d exceeds limit %d", tree.Metrics.MaxDepth, cfg.MaxPositionDepth),
	}}
}

func checkMinAreaDepth(tree *hierarchy.Tree, cfg Config) []models.ComplianceIssue {
	if tree.Metrics.MaxAreaDepth >= cfg.MinAreaDepth {
		return nil
	}
	return []models.ComplianceIssue{{
		Severity: models.SeverityWarning,
		RuleCode: "min_area_depth",
		Message:  fmt.Sprintf("area tree depth %d below required minimum %d", tree.Metrics.MaxAreaDepth, cfg.MinAreaDepth),
	}}
}

func checkCriticalVacancy(tree *hierarchy.Tree, _ Config) []models.ComplianceIssue {
	var issues []models.ComplianceIssue
	for _, p := range tree.Positions {
		if p.Critical && p.Vacant {
			issues = append(issues, models.ComplianceIssue{
				Severity:   models.SeverityWarning,
				RuleCode:   "critical_vacancy",
				Message:    fmt.Sprintf("critical position %s is vacant", p.Code),
				EntityKind: "position",
				EntityID:   p.ID.String(),
			})
		}
	}
	return issues
}

func checkVacancyRate(tree *hierarchy.Tree, cfg Config) []models.ComplianceIssue {
	if tree.Metrics.TotalPositions == 0 || tree.Metrics.VacancyRatePercent <= cfg.VacancyWarnPercent {
		return nil
	}
	return []models.ComplianceIssue{{
		Severity: models.SeverityInfo,
		RuleCode: "vacancy_rate",
		Message:  fmt.Sprintf("vacancy rate %.0f%% exceeds %.0f%%", tree.Metrics.VacancyRatePercent, cfg.VacancyWarnPercent),
	}}
}
