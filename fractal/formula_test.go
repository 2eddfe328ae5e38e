package fractal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFormulaUnknownIdentifier(t *testing.T) {
	_, ok := GetFormula(-1)
	assert.False(t, ok, "GetFormula(-1) should report not-found")
}

func TestM2EscapeRadiusMatchesGeneralFormula(t *testing.T) {
	f, ok := GetFormula(ProcedureM2)
	require.True(t, ok, "ProcedureM2 must be registered")
	assert.Equal(t, 4.0, f.EscapeRadius, "Mandelbrot power 2 escape radius")
}

func TestBurningShipNotGuessable(t *testing.T) {
	f, ok := GetFormula(ProcedureBurningShip)
	require.True(t, ok, "ProcedureBurningShip must be registered")
	assert.False(t, f.IsGuessable, "burning ship must not be guessable (spec.md section 4.2)")
}

func TestEscapeTimeFormulaM3MatchesCubeRecurrence(t *testing.T) {
	z := complex(0.5, 0.25)
	c := complex(0.1, -0.2)
	got := escapeTimeFormula(ProcedureM3, z, c)
	want := cpow(z, 3) + c
	assert.Equal(t, want, got)
}
