package migrate

import "time"

// Step is a state of the migration saga.
type Step string

// Saga states in the order a successful run passes through them. A run that
// fails to open the new backend leaves the main line for StepRollingBack and
// ends in StepLocalRestored.
const (
	StepIdle           Step = "idle"
	StepBackup         Step = "backup"
	StepDisconnected   Step = "disconnected"
	StepSafetyCopy     Step = "safety_copy"
	StepSchemaMigrated Step = "schema_migrated"
	StepConfigSaved    Step = "config_saved"
	StepBackendReady   Step = "backend_ready"
	StepRestored       Step = "restored"
	StepSynced         Step = "synced"

	StepRollingBack   Step = "rolling_back"
	StepLocalRestored Step = "local_restored"
)

// Outcome records how a step ended.
type Outcome string

// Step outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Transition is one step of a run with its outcome.
type Transition struct {
	Step    Step      `json:"step"`
	Outcome Outcome   `json:"outcome"`
	Err     error     `json:"-"`
	At      time.Time `json:"at"`
}

// Report is the record of one saga run.
type Report struct {
	RunID       string       `json:"run_id"`
	Target      string       `json:"target"`
	Transitions []Transition `json:"transitions"`
	Final       Step         `json:"final"`
}

// Steps returns the steps of the run in order.
func (r *Report) Steps() []Step {
	steps := make([]Step, len(r.Transitions))
	for i, t := range r.Transitions {
		steps[i] = t.Step
	}
	return steps
}

// Outcome returns the outcome of the last transition into step.
func (r *Report) Outcome(step Step) (Outcome, bool) {
	for i := len(r.Transitions) - 1; i >= 0; i-- {
		if r.Transitions[i].Step == step {
			return r.Transitions[i].Outcome, true
		}
	}
	return "", false
}

// Succeeded reports whether the run reached StepSynced without failing it.
func (r *Report) Succeeded() bool {
	if r.Final != StepSynced {
		return false
	}
	out, _ := r.Outcome(StepSynced)
	return out != OutcomeFailed
}

// RolledBack reports whether the run took the rollback branch.
func (r *Report) RolledBack() bool {
	_, ok := r.Outcome(StepRollingBack)
	return ok
}
