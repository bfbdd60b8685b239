// Package scenario holds the fixed catalog of chaos scenarios. The catalog is
// compiled in and immutable; the points table and prompt templates are data,
// not behavior.
package scenario

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionPodDelete and ActionNodeCordon are the only two mechanics the
// dispatcher knows. Four of the five scenarios share pod-delete on purpose;
// they differ only in narrative.
const (
	ActionPodDelete  = "pod-delete"
	ActionNodeCordon = "node-cordon"
)

// Scenario is one card on the dashboard.
type Scenario struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Difficulty  string `yaml:"difficulty" json:"difficulty"`
	Points      int    `yaml:"points" json:"points"`
	Action      string `yaml:"action" json:"-"`
	Prompt      string `yaml:"prompt" json:"-"`
}

type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

//go:embed scenarios.yaml
var catalogYAML []byte

var (
	catalog []Scenario
	byID    map[string]Scenario
)

func init() {
	var f catalogFile
	if err := yaml.Unmarshal(catalogYAML, &f); err != nil {
		panic(fmt.Sprintf("parse embedded scenario catalog: %v", err))
	}
	catalog = f.Scenarios
	byID = make(map[string]Scenario, len(catalog))
	for _, s := range catalog {
		if _, dup := byID[s.ID]; dup {
			panic(fmt.Sprintf("duplicate scenario id %q in catalog", s.ID))
		}
		byID[s.ID] = s
	}
}

// All returns the catalog in file order.
func All() []Scenario {
	out := make([]Scenario, len(catalog))
	copy(out, catalog)
	return out
}

// Get looks up a scenario by id.
func Get(id string) (Scenario, bool) {
	s, ok := byID[id]
	return s, ok
}

// Points returns the static score for an id, zero for unknown ids. The score
// does not depend on whether the action succeeded.
func Points(id string) int {
	return byID[id].Points
}

// RenderPrompt fills the scenario's prompt template with the action outcome.
func (s Scenario) RenderPrompt(message, details string) string {
	r := strings.NewReplacer("{message}", message, "{details}", details)
	return r.Replace(s.Prompt)
}
