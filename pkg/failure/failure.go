// Package failure flags agent failure modes in a trace: unsafe user-visible
// output, leaked data, misused tools and unproductive behaviour such as loops
// or runs that never answer.
package failure

import (
	"time"

	"github.com/papercomputeco/tracelens/pkg/leak"
	"github.com/papercomputeco/tracelens/pkg/observation"
)

// Code identifies a failure mode.
type Code string

const (
	CodeSafetyViolation Code = "SAFETY_POLICY_VIOLATION"
	CodeDataLeakage     Code = "DATA_LEAKAGE"

	CodeWrongEntity   Code = "TOOL_MISUSE_WRONG_ENTITY"
	CodeWrongTool     Code = "TOOL_MISUSE_WRONG_TOOL"
	CodeInvalidParams Code = "TOOL_MISUSE_INVALID_PARAMS"

	CodeTimeout            Code = "BEHAVIOUR_TIMEOUT"
	CodeToolLoop           Code = "BEHAVIOUR_LOOP_TOOL"
	CodeThoughtLoop        Code = "BEHAVIOUR_LOOP_THOUGHTS"
	CodeErrorLoop          Code = "BEHAVIOUR_LOOP_ERRORS"
	CodeNoFinalAnswer      Code = "BEHAVIOUR_NO_FINAL_ANSWER"
	CodeStuckInvalidParams Code = "BEHAVIOUR_STUCK_INVALID_PARAMS"
)

// Failure is one detected failure mode and the observations it covers.
type Failure struct {
	Code           Code              `json:"code"`
	Severity       observation.Level `json:"severity"`
	Description    string            `json:"description"`
	ObservationIDs []string          `json:"observation_ids"`
}

// Signals are per-trace counts reported next to the failures.
type Signals struct {
	Observations       int `json:"observations"`
	Artefacts          int `json:"artefacts"`
	Failures           int `json:"failures"`
	SafetyFailures     int `json:"safety_failures"`
	LeakageFailures    int `json:"leakage_failures"`
	ToolMisuseFailures int `json:"tool_misuse_failures"`
	BehaviourFailures  int `json:"behaviour_failures"`
}

// Summary is the failure analysis of one trace.
type Summary struct {
	TraceID    string    `json:"trace_id"`
	HasFailure bool      `json:"has_failure"`
	Failures   []Failure `json:"failures"`
	Signals    Signals   `json:"signals"`
}

// Codes returns the failure codes in detection order, without duplicates.
func (s Summary) Codes() []Code {
	codes := []Code{}
	seen := make(map[Code]bool)
	for _, f := range s.Failures {
		if seen[f.Code] {
			continue
		}
		seen[f.Code] = true
		codes = append(codes, f.Code)
	}
	return codes
}

// IntentRule maps user intent keywords to the tools expected to serve it.
type IntentRule struct {
	Intent   string
	Keywords []string
	Tools    []string
}

// DefaultIntentRules covers the account, spending and product questions of
// a retail banking assistant.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{Intent: "balance", Keywords: []string{"balance", "available"}, Tools: []string{"banking.get_account_balance"}},
		{Intent: "transactions", Keywords: []string{"transaction", "spend", "spending"}, Tools: []string{"banking.get_recent_transactions"}},
		{Intent: "product", Keywords: []string{"card", "product", "offer", "recommend"}, Tools: []string{"banking.recommend_products"}},
	}
}

// Detector runs every failure check over a trace.
type Detector struct {
	timeout       time.Duration
	loopMin       int
	repeatedError int
	intents       []IntentRule
}

// Option configures a Detector.
type Option func(*Detector)

// WithTimeout sets how long a run may take without answering.
func WithTimeout(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.timeout = d
		}
	}
}

// WithLoopThreshold sets how often an identical call, output or error must
// repeat to count as a loop.
func WithLoopThreshold(n int) Option {
	return func(det *Detector) {
		if n > 1 {
			det.loopMin = n
		}
	}
}

// WithIntentRules replaces the intent to expected tool mapping. An empty
// list disables the wrong tool check.
func WithIntentRules(rules []IntentRule) Option {
	return func(det *Detector) {
		det.intents = rules
	}
}

// NewDetector returns a Detector with a two minute timeout, loops of three
// and the default intent rules.
func NewDetector(opts ...Option) *Detector {
	det := &Detector{
		timeout:       2 * time.Minute,
		loopMin:       3,
		repeatedError: 2,
		intents:       DefaultIntentRules(),
	}
	for _, opt := range opts {
		opt(det)
	}
	return det
}

// Detect analyzes observations given in temporal order. leaks holds the leak
// detection of each observation and artefacts the number of tracked
// artefacts.
func (d *Detector) Detect(traceID string, observations []*observation.Observation, leaks map[string]leak.Detection, artefacts int) Summary {
	safety := DetectSafety(observations)
	leakage := leakageFailures(observations, leaks)
	misuse := d.detectToolMisuse(observations)
	behaviour := d.detectBehaviour(observations)

	failures := make([]Failure, 0, len(safety)+len(leakage)+len(misuse)+len(behaviour))
	failures = append(failures, safety...)
	failures = append(failures, leakage...)
	failures = append(failures, misuse...)
	failures = append(failures, behaviour...)

	return Summary{
		TraceID:    traceID,
		HasFailure: len(failures) > 0,
		Failures:   failures,
		Signals: Signals{
			Observations:       len(observations),
			Artefacts:          artefacts,
			Failures:           len(failures),
			SafetyFailures:     len(safety),
			LeakageFailures:    len(leakage),
			ToolMisuseFailures: len(misuse),
			BehaviourFailures:  len(behaviour),
		},
	}
}

func leakageFailures(observations []*observation.Observation, leaks map[string]leak.Detection) []Failure {
	var failures []Failure
	for _, obs := range observations {
		det, ok := leaks[obs.ID]
		if !ok || det.Level == observation.LevelNone {
			continue
		}
		failures = append(failures, Failure{
			Code:           CodeDataLeakage,
			Severity:       det.Level,
			Description:    "Observation may expose sensitive data: " + joinOrUnknown(det.Sources),
			ObservationIDs: []string{obs.ID},
		})
	}
	return failures
}
