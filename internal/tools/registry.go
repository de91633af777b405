// AngelaMos | 2026
// registry.go

package tools

import (
	"time"

	"github.com/siliconforge/eda-backend/internal/plan"
)

// Definition describes one simulated design tool: its route namespace,
// job-id prefix, relative execution weight, artifact name, and the cost
// booked on a completed run.
type Definition struct {
	Name     string
	Route    string
	Prefix   string
	Weight   int
	Cost     float64
	Artifact string
	Analysis string
}

// baseStepDelay is multiplied by a tool's weight to produce the
// artificial execution delay of a simulated run.
const baseStepDelay = 2 * time.Second

var definitions = []Definition{
	{
		Name:     plan.ToolPCBDesign,
		Route:    "pcb",
		Prefix:   "pcb",
		Weight:   1,
		Cost:     0.50,
		Artifact: "pcb-design-report.zip",
		Analysis: "Review this PCB design request and summarize layout, " +
			"routing, and DRC considerations.",
	},
	{
		Name:     plan.ToolChipSynthesis,
		Route:    "chip",
		Prefix:   "chip",
		Weight:   2,
		Cost:     0.75,
		Artifact: "chip-synthesis-report.zip",
		Analysis: "Review this chip synthesis request and summarize timing, " +
			"area, and power tradeoffs.",
	},
	{
		Name:     plan.ToolPlatformSimulation,
		Route:    "platform",
		Prefix:   "platform",
		Weight:   3,
		Cost:     1.00,
		Artifact: "platform-simulation-report.zip",
		Analysis: "Review this platform simulation request and summarize " +
			"expected waveform behavior and coverage.",
	},
}

var (
	byRoute = map[string]Definition{}
	byName  = map[string]Definition{}
)

func init() {
	for _, def := range definitions {
		byRoute[def.Route] = def
		byName[def.Name] = def
	}
}

// ByRoute resolves the URL namespace (pcb, chip, platform).
func ByRoute(route string) (Definition, bool) {
	def, ok := byRoute[route]
	return def, ok
}

// ByName resolves the canonical tool name.
func ByName(name string) (Definition, bool) {
	def, ok := byName[name]
	return def, ok
}
