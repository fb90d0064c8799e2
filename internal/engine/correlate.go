package engine

import (
	"sort"
	"time"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// DefaultClusterGap is the temporal gap within which breaches correlate
// into one cluster. Configurable; plateaus wider than the gap stay split.
const DefaultClusterGap = 15 * time.Minute

// Event source ranks used to break timestamp ties so output stays
// deterministic: trigger before job milestones before the three domains.
const (
	rankTrigger = iota
	rankJobRun
	rankCompute
	rankStorage
	rankQueue
)

func domainRank(d models.Domain) int {
	switch d {
	case models.DomainCompute:
		return rankCompute
	case models.DomainStorage:
		return rankStorage
	default:
		return rankQueue
	}
}

// DecisionKind names the outcome of root-cause attribution.
type DecisionKind string

const (
	// DecisionNone: SLA not breached, nothing to attribute.
	DecisionNone DecisionKind = "none"
	// DecisionMarkerDelay: the late trigger outranks all infrastructure.
	DecisionMarkerDelay DecisionKind = "marker-delay"
	// DecisionInfrastructure: an in-window breach cluster is the root.
	DecisionInfrastructure DecisionKind = "infrastructure"
	// DecisionUnexplained: the SLA is breached but no cluster explains it.
	DecisionUnexplained DecisionKind = "unexplained"
)

// Decision is the attribution verdict over the ordered clusters.
type Decision struct {
	Kind DecisionKind
	// RootIndex points at the root cluster for DecisionInfrastructure;
	// -1 otherwise.
	RootIndex int
}

// Correlation is the correlator output: chronologically ordered clusters
// plus the attribution decision.
type Correlation struct {
	Clusters []models.Cluster
	Decision Decision
}

// Correlator orders breaches, groups them into correlated clusters, and
// attributes root-cause vs cascading roles.
type Correlator struct {
	gap time.Duration
}

// NewCorrelator constructs a Correlator with the given cluster gap; zero or
// negative falls back to the default.
func NewCorrelator(gap time.Duration) *Correlator {
	if gap <= 0 {
		gap = DefaultClusterGap
	}
	return &Correlator{gap: gap}
}

// Correlate builds clusters from the scanner's in-window breaches and
// decides attribution. Breaches of the same domain within the gap group
// first; clusters of different domains whose spans then fall within the gap
// of each other merge into one correlated cluster, so a storage spike and
// the queue backup it provokes report as a single cause.
func (c *Correlator) Correlate(bundle *models.Bundle, sla models.SLAStatus, breaches []models.Breach) Correlation {
	clusters := c.cluster(breaches)

	var trigger *models.TriggerEvent
	if bundle != nil {
		trigger = bundle.Trigger
	}
	decision := DecideRootCause(sla, trigger, clusters)
	return Correlation{Clusters: clusters, Decision: decision}
}

func (c *Correlator) cluster(breaches []models.Breach) []models.Cluster {
	if len(breaches) == 0 {
		return nil
	}

	ordered := append([]models.Breach(nil), breaches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return domainRank(ordered[i].Domain) < domainRank(ordered[j].Domain)
	})

	// Stage one: same-domain grouping within the gap.
	perDomain := make(map[models.Domain][]models.Cluster, len(models.Domains))
	for _, breach := range ordered {
		groups := perDomain[breach.Domain]
		if n := len(groups); n > 0 && breach.Timestamp.Sub(groups[n-1].End) <= c.gap {
			groups[n-1].Breaches = append(groups[n-1].Breaches, breach)
			groups[n-1].End = breach.Timestamp
		} else {
			groups = append(groups, models.Cluster{
				Domains:  []models.Domain{breach.Domain},
				Start:    breach.Timestamp,
				End:      breach.Timestamp,
				Breaches: []models.Breach{breach},
			})
		}
		perDomain[breach.Domain] = groups
	}

	var flat []models.Cluster
	for _, domain := range models.Domains {
		flat = append(flat, perDomain[domain]...)
	}
	sort.SliceStable(flat, func(i, j int) bool {
		if !flat[i].Start.Equal(flat[j].Start) {
			return flat[i].Start.Before(flat[j].Start)
		}
		return domainRank(flat[i].Domains[0]) < domainRank(flat[j].Domains[0])
	})

	// Stage two: merge cross-domain clusters whose spans lie within the gap.
	merged := []models.Cluster{flat[0]}
	for _, next := range flat[1:] {
		last := &merged[len(merged)-1]
		if next.Start.Sub(last.End) <= c.gap {
			last.Breaches = append(last.Breaches, next.Breaches...)
			if next.End.After(last.End) {
				last.End = next.End
			}
			last.Domains = appendDomain(last.Domains, next.Domains...)
		} else {
			merged = append(merged, next)
		}
	}

	for i := range merged {
		finalizeCluster(&merged[i])
	}
	return merged
}

// finalizeCluster orders the member breaches, counts severities, and picks
// the representative: peak severity, earliest on ties, then domain rank.
func finalizeCluster(cluster *models.Cluster) {
	sort.SliceStable(cluster.Breaches, func(i, j int) bool {
		a, b := cluster.Breaches[i], cluster.Breaches[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return domainRank(a.Domain) < domainRank(b.Domain)
	})

	rep := cluster.Breaches[0]
	for _, breach := range cluster.Breaches {
		switch breach.Severity {
		case models.SeverityCritical:
			cluster.CriticalCount++
		case models.SeverityWarning:
			cluster.WarningCount++
		}
		if breach.Severity.Rank() > rep.Severity.Rank() {
			rep = breach
		}
	}
	cluster.Representative = rep
}

// DecideRootCause implements the marker delay precedence rule. It is the
// single place attribution branches, kept separate from the merge/sort
// mechanics so it can be tested on its own:
//
//   - SLA not breached: no root cause; clusters are near-miss findings.
//   - SLA breached and the trigger arrived after its scheduled time: the
//     marker delay is always the root cause, and every infrastructure
//     cluster is a cascading effect of that delay.
//   - SLA breached with an on-time trigger: the earliest cluster starting
//     strictly after arrival and strictly before completion is the root;
//     later clusters cascade from it.
//   - SLA breached and nothing qualifies: unexplained.
func DecideRootCause(sla models.SLAStatus, trigger *models.TriggerEvent, clusters []models.Cluster) Decision {
	if sla.State != models.SLABreached {
		return Decision{Kind: DecisionNone, RootIndex: -1}
	}
	if trigger != nil && trigger.Late() {
		return Decision{Kind: DecisionMarkerDelay, RootIndex: -1}
	}
	for i, cluster := range clusters {
		if cluster.Start.After(sla.Arrival) && cluster.Start.Before(sla.Completion) {
			return Decision{Kind: DecisionInfrastructure, RootIndex: i}
		}
	}
	return Decision{Kind: DecisionUnexplained, RootIndex: -1}
}

func appendDomain(existing []models.Domain, additions ...models.Domain) []models.Domain {
	for _, add := range additions {
		found := false
		for _, d := range existing {
			if d == add {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, add)
		}
	}
	return existing
}
