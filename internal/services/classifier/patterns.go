package classifier

import "github.com/wmarzella/ronin/internal/models"

// archetypePatterns maps each archetype to its phrase rules. Entries
// containing "{tech}" compile to regexes with a bounded wildcard in
// place of the technology phrase; literal entries match as whole
// phrases with flexible whitespace.
var archetypePatterns = map[models.Archetype]patternSet{
	models.ArchetypeBuilder: {
		VerbPatterns: []string{
			"build {tech}",
			"building {tech}",
			"design {tech}",
			"designing {tech}",
			"design and implement {tech}",
			"designing and implementing {tech}",
			"architect {tech}",
			"architecting {tech}",
			"implement {tech} from scratch",
			"implementing {tech} from scratch",
			"establish {tech}",
			"establishing {tech}",
			"create {tech}",
			"creating {tech}",
			"set up {tech}",
			"setting up {tech}",
			"develop new {tech}",
			"developing new {tech}",
			"stand up {tech}",
			"standing up {tech}",
			"greenfield",
			"from the ground up",
			"define standards",
			"new platform",
			"cloud-native",
			"founding",
			"build out",
			"building out",
			"develop and deploy",
			"developing and deploying",
			"create a new",
			"design the architecture",
			"lead the development of",
		},
		SentenceIndicators: []string{
			"no existing",
			"first hire",
			"new team",
			"newly created",
			"start-up phase",
			"zero to one",
			"ground floor",
			"vision for",
			"shape the direction",
			"greenfield",
		},
	},
	models.ArchetypeFixer: {
		VerbPatterns: []string{
			"migrate {tech}",
			"migrating {tech}",
			"migrate from {tech} to {tech}",
			"consolidate {tech}",
			"refactor {tech}",
			"refactoring {tech}",
			"modernise {tech}",
			"modernising {tech}",
			"modernize {tech}",
			"modernizing {tech}",
			"replace {tech}",
			"uplift {tech}",
			"uplifting {tech}",
			"remediate {tech}",
			"transition from {tech}",
			"transition to {tech}",
			"sunset {tech}",
			"decommission {tech}",
			"decommissioning {tech}",
			"optimise {tech}",
			"re-platform",
			"improve existing",
			"reduce complexity",
			"streamline",
			"transform legacy",
			"clean up",
			"rationalise",
			"data migration",
			"target state",
			"target-state",
			"transformation program",
			"uplift program",
			"platform uplift",
			"system decommissioning",
		},
		SentenceIndicators: []string{
			"legacy",
			"tech debt",
			"technical debt",
			"end of life",
			"current state",
			"pain points",
			"inefficiencies",
			"aging infrastructure",
			"manual processes",
			"existing systems need",
			"outdated",
			"migration",
			"migrating",
			"modernisation",
			"modernization",
			"uplift",
			"target state",
			"target-state",
			"transformation",
			"decommission",
			"decommissioning",
		},
	},
	models.ArchetypeOperator: {
		VerbPatterns: []string{
			"maintain {tech}",
			"maintaining {tech}",
			"support {tech}",
			"supporting {tech}",
			"monitor {tech}",
			"monitoring {tech}",
			"ensure reliability of {tech}",
			"manage {tech}",
			"administer {tech}",
			"troubleshoot {tech}",
			"troubleshooting {tech}",
			"on-call",
			"incident response",
			"production support",
			"bau",
			"run book",
			"sla",
			"ensure uptime",
			"day-to-day management",
			"operational readiness",
			"observability",
			"platform reliability",
			"operational resilience",
			"runbook",
			"slo",
			"sli",
		},
		SentenceIndicators: []string{
			"steady state",
			"ongoing",
			"business as usual",
			"existing environment",
			"mature platform",
			"well-established",
			"ensure continuity",
			"support the team",
			"keep the lights on",
			"incident",
			"runbook",
			"observability",
		},
	},
	models.ArchetypeTranslator: {
		VerbPatterns: []string{
			"enable {tech}",
			"train on {tech}",
			"translate requirements",
			"bridge technical and business",
			"self-serve",
			"data literacy",
			"empower stakeholders",
			"gather requirements",
			"communicate insights",
			"present findings",
			"democratise data",
		},
		SentenceIndicators: []string{
			"stakeholder",
			"non-technical",
			"business users",
			"executive reporting",
			"data-driven culture",
			"enable teams",
			"business intelligence",
			"analytics enablement",
			"self-serve",
			"semantic model",
		},
	},
}

// knownTech is the closed vocabulary used for tech-stack tagging. Order
// determines tag order in extracted metadata.
var knownTech = []string{
	"snowflake",
	"dbt",
	"airflow",
	"spark",
	"kafka",
	"terraform",
	"aws",
	"azure",
	"gcp",
	"python",
	"sql",
	"kubernetes",
	"docker",
	"fivetran",
	"looker",
	"tableau",
	"power bi",
	"databricks",
	"redshift",
	"bigquery",
	"matillion",
	"informatica",
	"talend",
	"ssis",
	"ssas",
	"ssrs",
	"kimball",
	"data vault",
	"medallion",
}

// Boost token lists. Strong tokens fire on a single hit, medium and soft
// tokens need two.
var (
	strongFixerTokens = []string{
		"legacy",
		"tech debt",
		"technical debt",
		"decommission",
		"decommissioning",
		"end of life",
		"uplift program",
		"platform uplift",
		"target state",
		"target-state",
		"transformation program",
		"erp transformation",
		"modernisation",
		"modernization",
		"redesign",
		"re-platform",
		"replatform",
	}
	mediumFixerTokens = []string{
		"migration",
		"migrate",
		"migrating",
		"transition",
		"transform",
		"refactor",
		"uplift",
		"modernis",
		"moderniz",
	}
	hardOperatorTokens = []string{
		"on-call",
		"on call",
		"incident response",
		"production support",
		"runbook",
		"run book",
		"sla",
		"slo",
		"sli",
	}
	softOperatorTokens = []string{
		"observability",
		"operational readiness",
		"operational resilience",
		"platform reliability",
	}
	translatorTokens = []string{
		"self-serve",
		"self serve",
		"semantic model",
		"executive reporting",
		"business intelligence",
		"data literacy",
		"analytics enablement",
	}
	builderTokens = []string{
		"greenfield",
		"from the ground up",
		"from scratch",
		"0->1",
		"zero to one",
		"new platform",
		"first hire",
	}
)

type patternSet struct {
	VerbPatterns       []string
	SentenceIndicators []string
}
