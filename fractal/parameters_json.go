package fractal

import (
	"encoding/json"
	"image/color"
	"os"
)

// ProgramVersion is written to every serialized parameter file and used
// to decide which legacy schema fallbacks apply on read.
const ProgramVersion = 7.0

type complexJSON struct {
	Re float64 `json:"Re"`
	Im float64 `json:"Im"`
}

func toComplexJSON(c complex128) complexJSON {
	return complexJSON{Re: real(c), Im: imag(c)}
}

func (c complexJSON) complex() complex128 {
	return complex(c.Re, c.Im)
}

type colorJSON struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// paramsDoc is the on-the-wire shape described in spec.md section 4.1.
// Field order matches the original's toJson so the writer's key order is
// stable and reads naturally next to the C++ source.
type paramsDoc struct {
	ProgramVersion         float64       `json:"programVersion"`
	Oversampling           int           `json:"oversampling"`
	ScreenWidth            int           `json:"screenWidth"`
	ScreenHeight           int           `json:"screenHeight"`
	RotationAngle          float64       `json:"rotation_angle"`
	Center                 complexJSON   `json:"center"`
	ZoomLevel              float64       `json:"zoomLevel"`
	MaxIters               int           `json:"maxIters"`
	JuliaSeed              complexJSON   `json:"juliaSeed"`
	Julia                  bool          `json:"julia"`
	FormulaIdentifier      int           `json:"formula_identifier"`
	PostTransformationType int           `json:"post_transformation_type"`
	PreTransformationType  int           `json:"pre_transformation_type"`
	InflectionCount        int           `json:"inflectionCount"`
	InflectionZoomLevel    float64       `json:"inflectionZoomLevel"`
	InflectionCoords       []complexJSON `json:"inflectionCoords"`
	GradientSpeed          float64       `json:"gradientSpeed"`
	GradientOffset         float64       `json:"gradientOffset"`
	GradientColors         []colorJSON   `json:"gradientColors"`

	// legacy (programVersion < 6.0) fields, read-only
	LegacyWidth              *int `json:"width,omitempty"`
	LegacyHeight              *int `json:"height,omitempty"`
	LegacyTransformationType *int `json:"transformation_type,omitempty"`
}

// ToJSON serializes the parameters as pretty-printed JSON with 2-space
// indent and the stable key order above.
func (p *Parameters) ToJSON() ([]byte, error) {
	doc := paramsDoc{
		ProgramVersion:         ProgramVersion,
		Oversampling:           p.oversampling,
		ScreenWidth:            p.targetWidth,
		ScreenHeight:           p.targetHeight,
		RotationAngle:          p.rotationAngle,
		Center:                 toComplexJSON(p.center),
		ZoomLevel:              p.ZoomLevel(),
		MaxIters:               p.maxIters,
		JuliaSeed:              toComplexJSON(p.juliaSeed),
		Julia:                  p.julia,
		FormulaIdentifier:      p.formula.ID,
		PostTransformationType: p.PostTransformationType,
		PreTransformationType:  p.PreTransformationType,
		InflectionCount:        len(p.inflections),
		InflectionZoomLevel:    p.inflectionZoomLevel,
		GradientSpeed:          p.gradientSpeed,
		GradientOffset:         p.gradientOffset,
	}
	for _, c := range p.inflections {
		doc.InflectionCoords = append(doc.InflectionCoords, toComplexJSON(c))
	}
	for _, col := range p.gradientColors {
		doc.GradientColors = append(doc.GradientColors, colorJSON{R: col.R, G: col.G, B: col.B})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// rawParamsDoc mirrors paramsDoc but with every field optional, used to
// replicate the original's document.HasMember(...) checks: a key that is
// absent from the JSON leaves the corresponding Parameters field
// untouched instead of zeroing it.
type rawParamsDoc struct {
	ProgramVersion         *float64      `json:"programVersion"`
	Oversampling           *int          `json:"oversampling"`
	ScreenWidth            *int          `json:"screenWidth"`
	ScreenHeight           *int          `json:"screenHeight"`
	Width                  *int          `json:"width"`
	Height                 *int          `json:"height"`
	RotationAngle          *float64      `json:"rotation_angle"`
	Center                 *complexJSON  `json:"center"`
	ZoomLevel              *float64      `json:"zoomLevel"`
	MaxIters               *int          `json:"maxIters"`
	JuliaSeed              *complexJSON  `json:"juliaSeed"`
	Julia                  *bool         `json:"julia"`
	FormulaIdentifier      *int          `json:"formula_identifier"`
	PostTransformationType *int          `json:"post_transformation_type"`
	PreTransformationType  *int          `json:"pre_transformation_type"`
	TransformationType     *int          `json:"transformation_type"`
	InflectionCount        *int          `json:"inflectionCount"`
	InflectionZoomLevel    *float64      `json:"inflectionZoomLevel"`
	InflectionCoords       []complexJSON `json:"inflectionCoords"`
	GradientSpeed          *float64      `json:"gradientSpeed"`
	GradientOffset         *float64      `json:"gradientOffset"`
	GradientColors         []colorJSON   `json:"gradientColors"`
}

// FromJSON parses a parameter file and applies its contents. On a parse
// error the receiver is left unchanged, matching the "recipient is not
// mutated" guarantee in spec.md section 7.
func (p *Parameters) FromJSON(data []byte) error {
	var doc rawParamsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return newError(ParseError, "%v", err)
	}

	programVersion := ProgramVersion
	if doc.ProgramVersion != nil {
		programVersion = *doc.ProgramVersion
	}

	oversampling := p.oversampling
	if doc.Oversampling != nil {
		oversampling = *doc.Oversampling
	}
	screenWidth := p.targetWidth
	screenHeight := p.targetHeight
	if programVersion >= 6.0 {
		if doc.ScreenWidth != nil {
			screenWidth = *doc.ScreenWidth
		}
		if doc.ScreenHeight != nil {
			screenHeight = *doc.ScreenHeight
		}
	} else {
		if doc.Width != nil {
			screenWidth = *doc.Width
		}
		if doc.Height != nil {
			screenHeight = *doc.Height
		}
	}
	if _, err := p.Resize(oversampling, screenWidth, screenHeight); err != nil {
		return err
	}

	center := p.center
	if doc.Center != nil {
		center = doc.Center.complex()
	}
	zoom := p.ZoomLevel()
	if doc.ZoomLevel != nil {
		zoom = *doc.ZoomLevel
	}
	p.SetCenterAndZoomAbsolute(center, zoom)

	if doc.MaxIters != nil {
		p.SetMaxIters(*doc.MaxIters)
	}

	if doc.JuliaSeed != nil {
		p.juliaSeed = doc.JuliaSeed.complex()
	}
	if doc.Julia != nil {
		p.julia = *doc.Julia
	}

	if doc.FormulaIdentifier != nil {
		p.ChangeFormula(*doc.FormulaIdentifier)
	}

	if programVersion >= 6.0 {
		if doc.PostTransformationType != nil {
			p.PostTransformationType = *doc.PostTransformationType
		}
		if doc.PreTransformationType != nil {
			p.PreTransformationType = *doc.PreTransformationType
		}
	} else {
		if doc.TransformationType != nil {
			p.PostTransformationType = *doc.TransformationType
		}
		p.PreTransformationType = TransformIdentity
	}

	if doc.InflectionCount != nil && doc.InflectionCoords != nil {
		n := *doc.InflectionCount
		if n > len(doc.InflectionCoords) {
			n = len(doc.InflectionCoords)
		}
		inflections := make([]complex128, n)
		for i := 0; i < n; i++ {
			inflections[i] = doc.InflectionCoords[i].complex()
		}
		p.inflections = inflections
	}

	if doc.GradientColors != nil {
		colors := make([]color.RGBA, len(doc.GradientColors))
		for i, c := range doc.GradientColors {
			colors[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
		}
		p.gradientColors = colors
	} else if programVersion < 6.1 {
		p.gradientColors = DefaultGradient()
	}

	gradientSpeed := p.gradientSpeed
	if doc.GradientSpeed != nil {
		gradientSpeed = *doc.GradientSpeed
	}
	gradientOffset := p.gradientOffset
	if doc.GradientOffset != nil {
		gradientOffset = *doc.GradientOffset
	}
	p.SetGradientSpeed(gradientSpeed)
	p.SetGradientOffset(gradientOffset)

	if doc.InflectionZoomLevel != nil {
		p.inflectionZoomLevel = *doc.InflectionZoomLevel
	}

	rotationAngle := p.rotationAngle
	if doc.RotationAngle != nil {
		rotationAngle = *doc.RotationAngle
	} else if programVersion < 7 {
		rotationAngle = 0
	}
	p.centerOfRotation = p.center
	p.SetRotation(rotationAngle)

	return nil
}

// LoadParameters reads an .efp file from disk and parses it into a fresh
// Parameters starting from program defaults, mirroring
// FractalParameters::fromJson's file-reading call sites in
// ExploreFractals.cpp. A read failure is reported as a fractal.Error with
// Kind FileError; a parse failure surfaces FromJSON's own ParseError
// unchanged.
func LoadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(FileError, "%v", err)
	}
	p := NewParameters()
	if err := p.FromJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes the parameters to path as pretty-printed JSON, the
// FractalParameters::toJson file-writing counterpart to LoadParameters.
func (p *Parameters) Save(path string) error {
	data, err := p.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return newError(FileError, "%v", err)
	}
	return nil
}
