package models

// Archetype is the closed set of role framings a job description can be
// classified into.
type Archetype string

const (
	ArchetypeBuilder    Archetype = "builder"    // Greenfield construction, platform build-out
	ArchetypeFixer      Archetype = "fixer"      // Remediation of broken or legacy systems
	ArchetypeOperator   Archetype = "operator"   // BAU ownership, support, steady-state operations
	ArchetypeTranslator Archetype = "translator" // Stakeholder-facing analysis and enablement
)

// AllArchetypes lists every archetype in tie-break order: when scores are
// equal the earlier entry wins.
var AllArchetypes = []Archetype{
	ArchetypeBuilder,
	ArchetypeFixer,
	ArchetypeOperator,
	ArchetypeTranslator,
}

// Valid reports whether a is a known archetype.
func (a Archetype) Valid() bool {
	switch a {
	case ArchetypeBuilder, ArchetypeFixer, ArchetypeOperator, ArchetypeTranslator:
		return true
	}
	return false
}

func (a Archetype) String() string {
	return string(a)
}

// PrimaryArchetype returns the highest-scoring archetype from a score map,
// breaking ties by AllArchetypes order.
func PrimaryArchetype(scores map[Archetype]float64) Archetype {
	best := AllArchetypes[0]
	bestScore := scores[best]
	for _, a := range AllArchetypes[1:] {
		if scores[a] > bestScore {
			best = a
			bestScore = scores[a]
		}
	}
	return best
}
