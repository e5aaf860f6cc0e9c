package rfm

import "fmt"

// Segment labels. Every scored customer lands in exactly one of these; the
// labels partition the population.
const (
	SegmentChampions         = "Champions"
	SegmentLoyalCustomers    = "Loyal Customers"
	SegmentNewCustomers      = "New Customers"
	SegmentPotentialLoyalist = "Potential Loyalists"
	SegmentAtRisk            = "At Risk"
	SegmentHibernating       = "Hibernating"
	SegmentNeedAttention     = "Need Attention"
)

// Rule maps an inclusive R/F score range to a segment label. Rules are
// evaluated in order; the first match wins.
type Rule struct {
	MinR, MaxR int
	MinF, MaxF int
	Segment    string
}

// RuleTable is a versioned segment classification table. The version string
// travels with every result row so a dashboard can tell which table
// produced a label.
type RuleTable struct {
	Version string
	Rules   []Rule
	Default string
}

// ruleTableV1 is the production classification table. Recency and frequency
// drive the label; monetary participates in scoring but not in
// classification.
var ruleTableV1 = RuleTable{
	Version: "v1",
	Rules: []Rule{
		{MinR: 4, MaxR: 5, MinF: 4, MaxF: 5, Segment: SegmentChampions},
		{MinR: 3, MaxR: 5, MinF: 3, MaxF: 5, Segment: SegmentLoyalCustomers},
		{MinR: 4, MaxR: 5, MinF: 1, MaxF: 2, Segment: SegmentNewCustomers},
		{MinR: 3, MaxR: 5, MinF: 1, MaxF: 2, Segment: SegmentPotentialLoyalist},
		{MinR: 1, MaxR: 2, MinF: 3, MaxF: 5, Segment: SegmentAtRisk},
		{MinR: 1, MaxR: 2, MinF: 1, MaxF: 2, Segment: SegmentHibernating},
	},
	Default: SegmentNeedAttention,
}

// RuleTableForVersion returns the classification table for a configured
// version.
func RuleTableForVersion(version string) (RuleTable, error) {
	switch version {
	case "v1":
		return ruleTableV1, nil
	default:
		return RuleTable{}, fmt.Errorf("unknown rfm rule table version %q", version)
	}
}

// Classify maps an (R, F) score pair to its segment label. The default
// catch-all guarantees every customer gets a segment.
func (t RuleTable) Classify(r, f int) string {
	for _, rule := range t.Rules {
		if r >= rule.MinR && r <= rule.MaxR && f >= rule.MinF && f <= rule.MaxF {
			return rule.Segment
		}
	}
	return t.Default
}

// SegmentNames lists every label the table can produce, rule order first,
// default last.
func (t RuleTable) SegmentNames() []string {
	names := make([]string, 0, len(t.Rules)+1)
	seen := make(map[string]bool, len(t.Rules)+1)
	for _, rule := range t.Rules {
		if !seen[rule.Segment] {
			names = append(names, rule.Segment)
			seen[rule.Segment] = true
		}
	}
	if !seen[t.Default] {
		names = append(names, t.Default)
	}
	return names
}
