package interpreter

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/goatshell/server/internal/game/params"
)

// Fallback is the interpreter used when no API key is configured. Process
// degrades to the structured unavailable result; Generate draws obstacles
// locally so single-player mode stays playable without the collaborator.
type Fallback struct {
	catalog *params.Catalog
}

// NewFallback creates a local fallback interpreter.
//
// Precondition: catalog must be non-nil.
func NewFallback(catalog *params.Catalog) *Fallback {
	return &Fallback{catalog: catalog}
}

// Process always degrades: there is no remote interpreter to call.
func (f *Fallback) Process(_ context.Context, _ string) (Result, error) {
	return Unavailable(), nil
}

// Generate draws a random obstacle and a small random parameter tweak.
//
// Postcondition: Returns a Result with Success true and a valid ObstacleType.
func (f *Fallback) Generate(_ context.Context) (Result, error) {
	obstacle := ObstacleTypes[rand.Intn(len(ObstacleTypes))]

	var mods []ParameterModification
	keys := f.catalog.Keys()
	if len(keys) > 0 && rand.Intn(2) == 0 {
		mods = append(mods, ParameterModification{
			Parameter:       keys[rand.Intn(len(keys))],
			NormalizedValue: params.Clamp(rand.Float64()*2 - 1),
		})
	}

	return Result{
		Response:               fmt.Sprintf("Incoming %s!", obstacle),
		Success:                true,
		ObstacleType:           obstacle,
		ParameterModifications: mods,
	}, nil
}
