package participants

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// dispatchProgram maps classified intents and entities to responders.
// observed_intent and observed_entity are supplied per decision.
const dispatchProgram = `
Decl observed_intent(Intent).
Decl observed_entity(Category).

intent_route("RecordabilityQuestion", /governance).
intent_route("FirstAidVsMedical", /governance).
intent_route("DaysAwayCalculation", /governance).
intent_route("DefinitionLookup", /governance).
intent_route("FormGeneration", /governance).
intent_route("IndustryRiskProfile", /analytics).
intent_route("ExposureLimits", /sciences).
intent_route("BestPractices", /sciences).
intent_route("IncidentManagement", /experience).
intent_route("PrivacyCase", /experience).

entity_route("NAICSCode", /analytics).
entity_route("Hazard", /sciences).
entity_route("Chemical", /sciences).
entity_route("IncidentID", /experience).
entity_route("EmployeeName", /experience).
entity_route("FormType", /experience).

domain(/governance, "Governance").
domain(/analytics, "Analytics").
domain(/sciences, "Sciences").
domain(/experience, "Experience").

intent_target(T) :- observed_intent(I), intent_route(I, T).
entity_target(T) :- observed_entity(C), entity_route(C, T).

informs(D) :- intent_target(T), domain(T, D).
informs(D) :- entity_target(T), domain(T, D).
`

var targetNames = map[string]types.Participant{
	"/governance": types.Governance,
	"/analytics":  types.Analytics,
	"/sciences":   types.Sciences,
	"/experience": types.Experience,
}

var (
	symObservedIntent = ast.PredicateSym{Symbol: "observed_intent", Arity: 1}
	symObservedEntity = ast.PredicateSym{Symbol: "observed_entity", Arity: 1}
	symIntentTarget   = ast.PredicateSym{Symbol: "intent_target", Arity: 1}
	symEntityTarget   = ast.PredicateSym{Symbol: "entity_target", Arity: 1}
	symInforms        = ast.PredicateSym{Symbol: "informs", Arity: 1}
)

// Route is the outcome of evaluating the dispatch rules.
type Route struct {
	Target     types.Participant
	IRIDomains []string
	Reason     string
}

// DispatchRules evaluates the routing program. The analyzed program is
// read-only and shared; each evaluation gets its own fact store.
type DispatchRules struct {
	program *analysis.ProgramInfo
}

// NewDispatchRules parses and analyzes the routing program.
func NewDispatchRules() (*DispatchRules, error) {
	unit, err := parse.Unit(strings.NewReader(dispatchProgram))
	if err != nil {
		return nil, fmt.Errorf("failed to parse dispatch rules: %w", err)
	}
	program, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze dispatch rules: %w", err)
	}
	return &DispatchRules{program: program}, nil
}

// Route picks the responder for a classification. Intent routes win over
// entity routes, and Governance takes everything else. Ties resolve in
// responder priority order.
func (r *DispatchRules) Route(intent string, entities []types.Entity) (Route, error) {
	store := factstore.NewSimpleInMemoryStore()
	if intent = strings.TrimSpace(intent); intent != "" {
		store.Add(ast.Atom{Predicate: symObservedIntent, Args: []ast.BaseTerm{ast.String(intent)}})
	}
	for _, e := range entities {
		if c := strings.TrimSpace(e.Category); c != "" {
			store.Add(ast.Atom{Predicate: symObservedEntity, Args: []ast.BaseTerm{ast.String(c)}})
		}
	}

	if _, err := engine.EvalProgramWithStats(r.program, store); err != nil {
		return Route{}, fmt.Errorf("dispatch rule evaluation failed: %w", err)
	}

	byIntent, err := targets(store, symIntentTarget)
	if err != nil {
		return Route{}, err
	}
	byEntity, err := targets(store, symEntityTarget)
	if err != nil {
		return Route{}, err
	}
	informs, err := stringFacts(store, symInforms)
	if err != nil {
		return Route{}, err
	}

	route := Route{Target: types.DefaultResponder, Reason: "no route matched; catch-all responder"}
	switch {
	case len(byIntent) > 0:
		route.Target = firstByPriority(byIntent)
		route.Reason = fmt.Sprintf("intent %s routes to %s", intent, route.Target)
	case len(byEntity) > 0:
		route.Target = firstByPriority(byEntity)
		route.Reason = fmt.Sprintf("entity routes to %s", route.Target)
	}
	route.IRIDomains = domainsFor(route.Target, informs)
	return route, nil
}

func targets(store factstore.FactStore, sym ast.PredicateSym) (map[types.Participant]bool, error) {
	out := make(map[types.Participant]bool)
	err := store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
		c, ok := a.Args[0].(ast.Constant)
		if !ok {
			return fmt.Errorf("%s: unexpected term %v", sym.Symbol, a.Args[0])
		}
		p, ok := targetNames[c.Symbol]
		if !ok {
			return fmt.Errorf("%s: unknown responder %s", sym.Symbol, c.Symbol)
		}
		out[p] = true
		return nil
	})
	return out, err
}

func stringFacts(store factstore.FactStore, sym ast.PredicateSym) ([]string, error) {
	var out []string
	err := store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
		c, ok := a.Args[0].(ast.Constant)
		if !ok {
			return fmt.Errorf("%s: unexpected term %v", sym.Symbol, a.Args[0])
		}
		if c.Type != ast.StringType {
			return fmt.Errorf("%s: expected a string, got %v", sym.Symbol, c)
		}
		out = append(out, c.Symbol)
		return nil
	})
	return out, err
}

func firstByPriority(set map[types.Participant]bool) types.Participant {
	for _, p := range types.Responders() {
		if set[p] {
			return p
		}
	}
	return types.DefaultResponder
}

// domainsFor lists the target's own domain first, then every other domain
// the classification touched, alphabetically.
func domainsFor(target types.Participant, informs []string) []string {
	own := domainName(target)
	domains := []string{own}
	var rest []string
	for _, d := range informs {
		if d != own {
			rest = append(rest, d)
		}
	}
	sort.Strings(rest)
	for i, d := range rest {
		if i == 0 || d != rest[i-1] {
			domains = append(domains, d)
		}
	}
	return domains
}

func domainName(p types.Participant) string {
	return strings.TrimSuffix(p.String(), "Agent")
}
