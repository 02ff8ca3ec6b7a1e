package scenario

import "github.com/rkorstad/taintgate/internal/policy"

// Case is one policy assertion within a scenario.
type Case struct {
	Name string `yaml:"name"`
	// Action resolves roles from the policy config's action map.
	// Roles, when set, declares them inline and wins over Action.
	Action string                     `yaml:"action,omitempty"`
	Roles  map[string]policy.RoleDecl `yaml:"roles,omitempty"`
	Params map[string]any             `yaml:"params"`
	// Context is the taint context under test: a level string, a
	// {level, sanitizations} map, or absent for "no context supplied".
	Context any `yaml:"context,omitempty"`
	// Expect is the required outcome status:
	// ok | blocked | missing_sanitization.
	Expect string `yaml:"expect"`
}

// Scenario is a named collection of policy test cases.
type Scenario struct {
	Name  string   `yaml:"name"`
	Mode  string   `yaml:"mode,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
	Cases []Case   `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
	Parameter string `json:"parameter,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
