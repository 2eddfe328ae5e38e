package fractal

import (
	"math"
	"math/cmplx"
)

// Procedure identifiers, kept numerically identical to the original
// program's menu-option identifiers so parameter files serialize
// compatibly.
const (
	ProcedureM2               = 4
	ProcedureBurningShip      = 5
	ProcedureM3               = 6
	ProcedureM4               = 7
	ProcedureM5               = 8
	ProcedureTripleMatchmaker = 11
	ProcedureCheckers         = 12
	ProcedureHighPower        = 13
	ProcedureTestControl      = 15
	ProcedureBI               = 16
)

// Formula carries the per-procedure metadata the render engine needs to
// pick a kernel and decide whether Mariani-Silver guessing is valid.
type Formula struct {
	ID              int
	Name            string
	IsGuessable     bool
	InflectionPower int
	IsEscapeTime    bool
	EscapeRadius    float64
}

// escapeRadiusForPower is the general formula for the escape radius of a
// power-n Mandelbrot-type iteration: 2^(2/(n-1)).
func escapeRadiusForPower(n float64) float64 {
	return math.Pow(2, 2/(n-1))
}

var formulaTable = map[int]Formula{
	ProcedureM2:               {ID: ProcedureM2, Name: "Mandelbrot power 2", IsGuessable: true, InflectionPower: 2, IsEscapeTime: true, EscapeRadius: 4},
	ProcedureM3:               {ID: ProcedureM3, Name: "Mandelbrot power 3", IsGuessable: true, InflectionPower: 3, IsEscapeTime: true, EscapeRadius: 2},
	ProcedureM4:               {ID: ProcedureM4, Name: "Mandelbrot power 4", IsGuessable: true, InflectionPower: 4, IsEscapeTime: true, EscapeRadius: escapeRadiusForPower(4)},
	ProcedureM5:               {ID: ProcedureM5, Name: "Mandelbrot power 5", IsGuessable: true, InflectionPower: 5, IsEscapeTime: true, EscapeRadius: escapeRadiusForPower(5)},
	ProcedureBurningShip:      {ID: ProcedureBurningShip, Name: "Burning ship", IsGuessable: false, InflectionPower: 2, IsEscapeTime: true, EscapeRadius: 4},
	ProcedureCheckers:         {ID: ProcedureCheckers, Name: "Checkers", IsGuessable: true, InflectionPower: 2, IsEscapeTime: false, EscapeRadius: 4},
	ProcedureTripleMatchmaker: {ID: ProcedureTripleMatchmaker, Name: "Triple Matchmaker", IsGuessable: true, InflectionPower: 2, IsEscapeTime: false, EscapeRadius: 550},
	ProcedureHighPower:        {ID: ProcedureHighPower, Name: "High power Mandelbrot", IsGuessable: true, InflectionPower: 2, IsEscapeTime: true, EscapeRadius: 4},
	ProcedureTestControl:      {ID: ProcedureTestControl, Name: "Test", IsGuessable: true, InflectionPower: 2, IsEscapeTime: false, EscapeRadius: 4},
	ProcedureBI:               {ID: ProcedureBI, Name: "Business Intelligence", IsGuessable: true, InflectionPower: 2, IsEscapeTime: false, EscapeRadius: 4},
}

// GetFormula looks up a procedure by identifier. The second return value
// is false when the identifier is not registered (mirrors the original's
// getFormulaObject returning identifier -1 on failure).
func GetFormula(identifier int) (Formula, bool) {
	f, ok := formulaTable[identifier]
	return f, ok
}

// highPowerExponent is the exponent used by PROCEDURE_HIGH_POWER: 2^25.
const highPowerExponent = 1 << 25

// escapeTimeFormula evaluates one iteration step z -> f(z,c) for the
// escape-time procedures that aren't power-2 Mandelbrot (which has its
// own inlined scalar recurrence for speed, see calcPoint).
func escapeTimeFormula(identifier int, z, c complex128) complex128 {
	switch identifier {
	case ProcedureM3:
		return cpow(z, 3) + c
	case ProcedureM4:
		return cpow(z, 4) + c
	case ProcedureM5:
		return cpow(z, 5) + c
	case ProcedureBurningShip:
		re, im := real(z), imag(z)
		folded := complex(absF(re), absF(im))
		return folded*folded + c
	case ProcedureHighPower:
		return cmplx.Pow(z, complex(highPowerExponent, 0)) + c
	case ProcedureTripleMatchmaker:
		return tripleMatchmakerStep(z, c)
	}
	return 0
}

// cpow computes small positive integer powers by repeated squaring,
// exact and cheap for the n in {2,3,4,5} this package needs.
func cpow(z complex128, n int) complex128 {
	result := complex128(1)
	base := z
	for n > 0 {
		if n&1 == 1 {
			result *= base
		}
		base *= base
		n >>= 1
	}
	return result
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Triple Matchmaker constants, ported verbatim from Render.cpp.
var (
	tripleMatchmakerSqrt3 = math.Sqrt(3)
	tripleMatchmakerA     = 2.2
	tripleMatchmakerB     = 1.4
	tripleMatchmakerD     = 1.1
)

func tripleMatchmakerStep(z, c complex128) complex128 {
	numerator := z + complex(tripleMatchmakerA/tripleMatchmakerSqrt3, 0)
	denominator := complex(tripleMatchmakerB, 0) * (cpow(z, 3) - complex(tripleMatchmakerSqrt3*tripleMatchmakerA, 0)*cpow(z, 2) + c*z + c*complex(tripleMatchmakerA/tripleMatchmakerSqrt3, 0))
	return numerator/denominator + complex(tripleMatchmakerD, 0)
}
