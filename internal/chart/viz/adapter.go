// Package viz translates a validated tree into the generic node-list format
// the external rendering layer consumes. The transform is pure: it never
// touches chart state.
package viz

import (
	"orgchart/internal/chart/hierarchy"
	"orgchart/internal/chart/models"
)

// NodeKind distinguishes area and position nodes in the flat list.
type NodeKind string

const (
	KindArea     NodeKind = "area"
	KindPosition NodeKind = "position"
)

// Node is one renderable entry. Areas parent to their parent area;
// positions parent to their manager, falling back to the containing area
// for top-of-chain positions so every non-root node has a parent.
type Node struct {
	ID            string   `json:"id"`
	ParentID      string   `json:"parent_id,omitempty"`
	Kind          NodeKind `json:"kind"`
	Label         string   `json:"label"`
	Depth         int      `json:"depth"`
	Path          []string `json:"path"`
	Vacant        bool     `json:"vacant,omitempty"`
	Critical      bool     `json:"critical,omitempty"`
	Management    bool     `json:"management,omitempty"`
	DirectReports int      `json:"direct_reports,omitempty"`
}

// Metadata summarizes the chart for the rendering layer.
type Metadata struct {
	OrganizationID  string  `json:"organization_id"`
	ChartID         string  `json:"chart_id"`
	Version         int     `json:"version"`
	State           string  `json:"state"`
	NodeCount       int     `json:"node_count"`
	MaxDepth        int     `json:"max_depth"`
	VacancyRate     float64 `json:"vacancy_rate"`
	ComplianceScore int     `json:"compliance_score"`
}

// Payload is the adapter output: flat node list, explicit root, metadata.
type Payload struct {
	RootID   string   `json:"root_id"`
	Nodes    []Node   `json:"nodes"`
	Metadata Metadata `json:"metadata"`
}

// BuildPayload flattens the tree for rendering. Node order follows the
// tree's deterministic ordering: all areas (depth, name), then all
// positions (depth, code).
func BuildPayload(chart *models.Chart, tree *hierarchy.Tree) *Payload {
	nodes := make([]Node, 0, len(tree.Areas)+len(tree.Positions))
	for _, a := range tree.Areas {
		node := Node{
			ID:    a.ID.String(),
			Kind:  KindArea,
			Label: a.Name,
			Depth: a.Depth,
			Path:  a.Path,
		}
		if a.ParentID != nil {
			node.ParentID = a.ParentID.String()
		}
		nodes = append(nodes, node)
	}
	for _, p := range tree.Positions {
		node := Node{
			ID:            p.ID.String(),
			Kind:          KindPosition,
			Label:         p.Code,
			Depth:         p.Depth,
			Path:          p.Path,
			Vacant:        p.Vacant,
			Critical:      p.Critical,
			Management:    p.Management,
			DirectReports: p.DirectReports,
		}
		if p.ReportsTo != nil {
			node.ParentID = p.ReportsTo.String()
		} else {
			node.ParentID = p.AreaID.String()
		}
		nodes = append(nodes, node)
	}

	score := 0
	if chart.Compliance != nil {
		score = chart.Compliance.Score
	}
	return &Payload{
		RootID: tree.RootAreaID.String(),
		Nodes:  nodes,
		Metadata: Metadata{
			OrganizationID:  chart.OrgID.String(),
			ChartID:         chart.ID.String(),
			Version:         chart.Version,
			State:           chart.State.String(),
			NodeCount:       len(nodes),
			MaxDepth:        tree.Metrics.MaxDepth,
			VacancyRate:     tree.Metrics.VacancyRatePercent,
			ComplianceScore: score,
		},
	}
}
