// Package interpreter provides the command interpreter collaborator: free
// text in, a structured reply plus parameter adjustments out. The broker
// treats this service as unreliable and degrades to a structured unavailable
// result whenever it errors or is unconfigured.
package interpreter

import "context"

// ParameterModification is one normalized adjustment to a game parameter.
type ParameterModification struct {
	Parameter       string  `json:"parameter"`
	NormalizedValue float64 `json:"normalized_value"`
}

// Result is the structured outcome of an interpreter call.
type Result struct {
	Response               string                  `json:"response"`
	Success                bool                    `json:"success"`
	ParameterModifications []ParameterModification `json:"parameter_modifications"`
	// ObstacleType is set by Generate when the interpreter selects an
	// obstacle to place: one of ObstacleTypes.
	ObstacleType string `json:"obstacle_type,omitempty"`
}

// ObstacleTypes is the closed set of obstacles the generator may select.
var ObstacleTypes = []string{
	"dart_wall",
	"platform",
	"spike_platform",
	"oscillator",
	"shield",
	"gap",
}

// Interpreter processes player commands and generates synthetic single-player
// events.
type Interpreter interface {
	// Process interprets free text from a player.
	Process(ctx context.Context, command string) (Result, error)
	// Generate produces a synthetic obstacle command for single-player mode.
	Generate(ctx context.Context) (Result, error)
}

// Unavailable returns the degraded result handed to callers when the
// interpreter collaborator fails. Raw errors never cross the router boundary.
func Unavailable() Result {
	return Result{
		Response: "The command interpreter is currently unavailable. Please try again later.",
		Success:  false,
	}
}

// ValidObstacleType reports whether t is in the closed obstacle set.
func ValidObstacleType(t string) bool {
	for _, o := range ObstacleTypes {
		if o == t {
			return true
		}
	}
	return false
}
