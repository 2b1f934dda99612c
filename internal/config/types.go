// Package config resolves Ralph's run configuration from two layers — a
// JSON config file and CLI flags — per spec.md §6's precedence:
// step-CLI > global-CLI > step-file > global-file > inferred > hard default.
package config

// AgentConfig names the backend/model pair a single pipeline step should
// use. Either field may be empty, in which case resolution falls through
// to the next layer.
type AgentConfig struct {
	Backend string `json:"backend,omitempty"`
	Model   string `json:"model,omitempty"`
}

// StepAgents carries the optional per-step overrides from the config
// file's "agents" block.
type StepAgents struct {
	Backlog   AgentConfig `json:"backlog,omitempty"`
	Plan      AgentConfig `json:"plan,omitempty"`
	Implement AgentConfig `json:"implement,omitempty"`
	Review    AgentConfig `json:"review,omitempty"`
}

// File is the JSON shape accepted by --config. All fields are optional;
// absent fields fall through to the CLI layer or the hard default.
type File struct {
	Target          *int       `json:"target,omitempty"`
	Parallelism     *int       `json:"parallelism,omitempty"`
	BranchPrefix    string     `json:"branchPrefix,omitempty"`
	MaxTurns        *int       `json:"maxTurns,omitempty"`
	Verbose         *bool      `json:"verbose,omitempty"`
	MinReviewCycles *int       `json:"minReviewCycles,omitempty"`
	MaxReviewCycles *int       `json:"maxReviewCycles,omitempty"`
	Agent           string     `json:"agent,omitempty"`
	Agents          StepAgents `json:"agents,omitempty"`
	// Validate is the project-local validator command (spec.md §6's
	// "validate", e.g. "make check") whose exit status is the sole signal
	// for whether main is green. Empty means no validator is configured.
	Validate string `json:"validate,omitempty"`
}

// Flags is the CLI layer. The *Set fields record whether the user passed
// the flag explicitly (cobra's pflag.Changed), distinguishing "flag left
// at its zero value" from "flag omitted" so a config-file value isn't
// shadowed by an unset flag default.
type Flags struct {
	Target      int
	TargetSet   bool
	Task        string
	Parallelism int
	ParallelismSet bool
	BranchPrefix    string
	BranchPrefixSet bool
	MaxTurns    int
	MaxTurnsSet bool
	Verbose     bool
	ConfigPath  string
	Agent       string
	AgentSet    bool
	Validate    string
	ValidateSet bool
}

// Step names the four pipeline stages that accept a per-step agent
// override, matching spec.md §6's agents.{backlog,plan,implement,review}.
type Step string

const (
	StepBacklog   Step = "backlog"
	StepPlan      Step = "plan"
	StepImplement Step = "implement"
	StepReview    Step = "review"
)

// Resolved is the fully-merged configuration an orchestrator run acts on.
type Resolved struct {
	Target          int // 0 means unset: run until queues drain
	HasTarget       bool
	Parallelism     int
	BranchPrefix    string
	MaxTurns        int
	Verbose         bool
	MinReviewCycles int
	MaxReviewCycles int
	Task            string // one-shot task text; forces Parallelism=1
	Validate        string // project validator command, e.g. "make check"; empty disables validation

	// stepAgent holds the per-step backend/model resolved from file +
	// global agent + inferred + hard default, keyed by Step.
	stepAgent map[Step]AgentConfig
}

// Agent returns the resolved backend/model for step s.
func (r *Resolved) Agent(s Step) AgentConfig {
	return r.stepAgent[s]
}

const (
	defaultParallelism  = 2
	defaultBranchPrefix = "harness-improvement"
	defaultMaxTurns     = 100
	// defaultMinReviewCycles/defaultMaxReviewCycles: spec.md §4.6 names the
	// minReviewCycles/maxReviewCycles knobs but leaves their hard defaults
	// unspecified. Resolved (recorded in DESIGN.md): 1 and 3, matching the
	// "at least one real review pass, escalate well before the agent noise
	// floor dominates" framing spec.md §4.6.2 uses for the loop's intent.
	defaultMinReviewCycles = 1
	defaultMaxReviewCycles = 3
	defaultBackend         = "claude"
)
