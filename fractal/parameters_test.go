package fractal_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinkydauset/explorefractals/fractal"
)

func TestPixelWidthInvariant(t *testing.T) {
	t.Parallel()
	p := fractal.NewParameters()
	_, err := p.Resize(2, 300, 200)
	require.NoError(t, err)

	got := p.PixelWidth() * float64(p.TargetWidth()) * float64(p.Oversampling())
	assert.InEpsilon(t, p.XRange(), got, 1e-12)
}

func TestRotationRoundTrip(t *testing.T) {
	t.Parallel()
	p := fractal.NewParameters()
	p.SetCenter(complex(0.1, -0.2))
	original := p.Center()

	p.SetRotation(0.25)
	p.SetRotation(0)

	assert.InDelta(t, real(original), real(p.Center()), 1e-9)
	assert.InDelta(t, imag(original), imag(p.Center()), 1e-9)
}

func TestInflectionPushPopIdentity(t *testing.T) {
	t.Parallel()
	p := fractal.NewParameters()
	p.AddInflection(complex(0.1, 0))
	countBefore := p.InflectionCount()
	top := p.Inflections()[countBefore-1]

	p.AddInflection(complex(-0.5, 0.3))
	p.RemoveInflection()

	assert.Equal(t, countBefore, p.InflectionCount())
	assert.Equal(t, top, p.Inflections()[p.InflectionCount()-1])
}

func TestToggleJuliaRoundTrip(t *testing.T) {
	t.Parallel()
	p := fractal.NewParameters()
	wasJulia := p.Julia()

	p.ToggleJulia()
	p.ToggleJulia()

	assert.Equal(t, wasJulia, p.Julia())
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	p := fractal.NewParameters()
	p.AddInflection(complex(0.1, 0))
	p.AddInflection(complex(-0.5, 0.3))
	p.SetMaxIters(2500)
	p.ChangeFormula(fractal.ProcedureM3)

	data, err := p.ToJSON()
	require.NoError(t, err)

	q := fractal.NewParameters()
	require.NoError(t, q.FromJSON(data))

	assert.Equal(t, p.MaxIters(), q.MaxIters())
	assert.Equal(t, p.FormulaID(), q.FormulaID())
	assert.Equal(t, p.InflectionCount(), q.InflectionCount())
	for i, c := range p.Inflections() {
		assert.InDelta(t, real(c), real(q.Inflections()[i]), 1e-9)
		assert.InDelta(t, imag(c), imag(q.Inflections()[i]), 1e-9)
	}
}

func TestAddInflectionRestoresZoomRelation(t *testing.T) {
	t.Parallel()
	p := fractal.NewParameters()
	p.SetInflectionZoomLevel()
	level := p.InflectionZoomLevel()

	p.AddInflection(complex(0.2, 0))

	expected := level / math.Pow(2, 1)
	assert.InDelta(t, expected, p.ZoomLevel(), 1e-9)
}

func TestResizeRejectsNonPositiveOversampling(t *testing.T) {
	t.Parallel()
	p := fractal.NewParameters()
	_, err := p.Resize(0, 100, 100)
	require.Error(t, err)
	var ferr *fractal.Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, fractal.OutOfRange, ferr.Kind)
}
