// Package phase defines the per-iteration phase sequence and runs each
// phase under timeout supervision.
package phase

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weilyn/cadence/internal/errors"
)

// Canonical phase names in execution order.
const (
	PhasePrepare  = "prepare"
	PhaseExecute  = "execute"
	PhaseReview   = "review"
	PhaseFinalize = "finalize"
)

// Def describes one phase: what to ask the agent and how long to let it run.
type Def struct {
	Name   string
	Prompt string
	// IdleTimeout fires when the agent produces no output for this long.
	// It is independent of TotalTimeout and resets on every output chunk.
	IdleTimeout time.Duration
	// TotalTimeout bounds the phase's wall-clock runtime regardless of
	// how chatty the agent is.
	TotalTimeout time.Duration
}

// RenderPrompt substitutes the target work item into the phase prompt.
// The literal "{{ITEM}}" marks where the ID goes; a prompt without the
// marker is passed through unchanged.
func (d *Def) RenderPrompt(targetID string) string {
	return strings.ReplaceAll(d.Prompt, "{{ITEM}}", targetID)
}

// Defaults returns the built-in definition for a phase name. Unknown names
// get a conservative catch-all so custom sequences never fail on lookup.
func Defaults(name string) Def {
	switch name {
	case PhasePrepare:
		return Def{
			Name:         PhasePrepare,
			Prompt:       "Review work item {{ITEM}} and plan the change. Do not modify code yet.",
			IdleTimeout:  5 * time.Minute,
			TotalTimeout: 15 * time.Minute,
		}
	case PhaseExecute:
		return Def{
			Name:         PhaseExecute,
			Prompt:       "Implement work item {{ITEM}} per the plan. Run the tests before finishing.",
			IdleTimeout:  10 * time.Minute,
			TotalTimeout: 60 * time.Minute,
		}
	case PhaseReview:
		return Def{
			Name:         PhaseReview,
			Prompt:       "Review the changes made for {{ITEM}}. Fix any defects you find.",
			IdleTimeout:  5 * time.Minute,
			TotalTimeout: 30 * time.Minute,
		}
	case PhaseFinalize:
		return Def{
			Name:         PhaseFinalize,
			Prompt:       "Update the status of {{ITEM}} in the work-item store and file follow-up items for anything discovered.",
			IdleTimeout:  3 * time.Minute,
			TotalTimeout: 10 * time.Minute,
		}
	default:
		return Def{
			Name:         name,
			Prompt:       "Work on {{ITEM}}.",
			IdleTimeout:  5 * time.Minute,
			TotalTimeout: 30 * time.Minute,
		}
	}
}

// DefaultSequence returns the built-in prepare/execute/review/finalize
// sequence.
func DefaultSequence() []Def {
	return []Def{
		Defaults(PhasePrepare),
		Defaults(PhaseExecute),
		Defaults(PhaseReview),
		Defaults(PhaseFinalize),
	}
}

// defRaw is the YAML shape of a phase definition. Durations are strings
// ("10m", "1h30m") so the file reads the way people write timeouts.
type defRaw struct {
	Name         string `yaml:"name"`
	Prompt       string `yaml:"prompt"`
	IdleTimeout  string `yaml:"idle_timeout"`
	TotalTimeout string `yaml:"total_timeout"`
}

type sequenceFile struct {
	Phases []defRaw `yaml:"phases"`
}

// LoadSequence reads a phase sequence from a YAML file. Fields left empty
// in the file inherit the per-name defaults, so a file can override just a
// prompt or just a timeout.
func LoadSequence(path string) ([]Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("reading phase file: %v", err)).WithField("phases.file").WithValue(path)
	}

	var file sequenceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("parsing phase file: %v", err)).WithField("phases.file").WithValue(path)
	}
	if len(file.Phases) == 0 {
		return nil, errors.NewConfigError("phase file defines no phases").WithField("phases.file").WithValue(path)
	}

	defs := make([]Def, 0, len(file.Phases))
	for i, raw := range file.Phases {
		if raw.Name == "" {
			return nil, errors.NewConfigError(fmt.Sprintf("phase %d has no name", i)).WithField("phases.file").WithValue(path)
		}

		def := Defaults(raw.Name)
		if raw.Prompt != "" {
			def.Prompt = raw.Prompt
		}
		if raw.IdleTimeout != "" {
			d, err := time.ParseDuration(raw.IdleTimeout)
			if err != nil {
				return nil, errors.NewConfigError(fmt.Sprintf("phase %q: bad idle_timeout: %v", raw.Name, err)).
					WithField("phases.file").WithValue(raw.IdleTimeout)
			}
			def.IdleTimeout = d
		}
		if raw.TotalTimeout != "" {
			d, err := time.ParseDuration(raw.TotalTimeout)
			if err != nil {
				return nil, errors.NewConfigError(fmt.Sprintf("phase %q: bad total_timeout: %v", raw.Name, err)).
					WithField("phases.file").WithValue(raw.TotalTimeout)
			}
			def.TotalTimeout = d
		}
		defs = append(defs, def)
	}
	return defs, nil
}
