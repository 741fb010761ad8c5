// Copyright (C) 2023 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


// Package pipeline drives the raw development sequence: black level and
// gain scaling, raw-domain denoise, demosaic, highlight handling, octave
// pyramid denoise, local tone mapping and output conversion.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"gopkg.in/yaml.v2"
	"github.com/mlnoga/rawlight/internal/nlf"
	"github.com/mlnoga/rawlight/internal/raster"
	"github.com/mlnoga/rawlight/internal/stage"
)

// Demosaic strategy names accepted in parameter files
const (
	DemosaicAdaptive = "adaptive"
	DemosaicMalvar   = "malvar"
	DemosaicFast     = "fast"
)

// Per-octave denoise knobs for the pyramid pass
type DenoiseParameters struct {
	ThresholdMultipliers [3]float32 `json:"thresholdMultipliers" yaml:"thresholdMultipliers"`
	ChromaBoost          float32    `json:"chromaBoost"          yaml:"chromaBoost"`
	GradientBoost        float32    `json:"gradientBoost"        yaml:"gradientBoost"`
	GradientThreshold    float32    `json:"gradientThreshold"    yaml:"gradientThreshold"`
	Guided               bool       `json:"guided"               yaml:"guided"`
	LumaWeight           float32    `json:"lumaWeight"           yaml:"lumaWeight"`
	Sharpening           float32    `json:"sharpening"           yaml:"sharpening"`
}

// All parameters of the develop sequence. Zero values are not useful;
// start from NewDevelopParameters and override
type DevelopParameters struct {
	BayerPattern       string                `json:"bayerPattern"       yaml:"bayerPattern"`
	BlackLevel         float32               `json:"blackLevel"         yaml:"blackLevel"`
	ScaleMul           [4]float32            `json:"scaleMul"           yaml:"scaleMul"`
	CamToRGB           raster.Matrix3x3      `json:"camToRGB"           yaml:"camToRGB"`
	ExposureMultiplier float32               `json:"exposureMultiplier" yaml:"exposureMultiplier"`
	Demosaic           string                `json:"demosaic"           yaml:"demosaic"`
	Estimator          string                `json:"estimator"          yaml:"estimator"`
	RawDenoise         bool                  `json:"rawDenoise"         yaml:"rawDenoise"`
	HighlightQuantile  float64               `json:"highlightQuantile"  yaml:"highlightQuantile"`
	Denoise            [3]DenoiseParameters  `json:"denoise"            yaml:"denoise"`
	LTM                stage.LTMParameters   `json:"ltm"                yaml:"ltm"`
	RGB                stage.RGBConversion   `json:"rgb"                yaml:"rgb"`
	Dither             bool                  `json:"dither"             yaml:"dither"`
}

// Returns development parameters with conservative defaults for a
// normalized RGGB mosaic
func NewDevelopParameters() *DevelopParameters {
	p:=&DevelopParameters{
		BayerPattern:       "RGGB",
		BlackLevel:         0,
		ScaleMul:           [4]float32{1, 1, 1, 1},
		CamToRGB:           raster.Identity3x3(),
		ExposureMultiplier: 1,
		Demosaic:           DemosaicAdaptive,
		Estimator:          "ols",
		RawDenoise:         true,
		HighlightQuantile:  0.999,
		LTM:                stage.LTMParameters{Eps: 0.01, Detail: [3]float32{1.1, 1.2, 1}},
		RGB:                stage.RGBConversion{Saturation: 1, LocalToneMapping: true},
		Dither:             false,
	}
	for i:=range p.Denoise {
		p.Denoise[i]=DenoiseParameters{
			ThresholdMultipliers: [3]float32{1, 1, 1},
			ChromaBoost:          4,
			GradientBoost:        2,
			GradientThreshold:    0.1,
			LumaWeight:           1,
			Sharpening:           1,
		}
	}
	return p
}

// Loads development parameters from a .json or .yaml file, applied on
// top of the defaults
func LoadParameters(path string) (*DevelopParameters, error) {
	data, err:=os.ReadFile(path)
	if err!=nil { return nil, err }

	p:=NewDevelopParameters()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err=yaml.Unmarshal(data, p)
	case ".json":
		err=json.Unmarshal(data, p)
	default:
		return nil, fmt.Errorf("parameter file %s: unknown extension, want .json or .yaml", path)
	}
	if err!=nil { return nil, fmt.Errorf("parameter file %s: %w", path, err) }
	if err:=p.Validate(); err!=nil { return nil, fmt.Errorf("parameter file %s: %w", path, err) }
	return p, nil
}

// Checks cross-field consistency of the parameters
func (p *DevelopParameters) Validate() error {
	if _, err:=raster.ParseBayer(p.BayerPattern); err!=nil { return err }
	switch p.Demosaic {
	case DemosaicAdaptive, DemosaicMalvar, DemosaicFast:
	default:
		return fmt.Errorf("unknown demosaic strategy %q", p.Demosaic)
	}
	switch p.Estimator {
	case "ols", "lmeds":
	default:
		return fmt.Errorf("unknown noise estimator %q", p.Estimator)
	}
	if p.ExposureMultiplier<=0 {
		return fmt.Errorf("exposure multiplier %v must be positive", p.ExposureMultiplier)
	}
	if p.HighlightQuantile<=0 || p.HighlightQuantile>1 {
		return fmt.Errorf("highlight quantile %v outside (0,1]", p.HighlightQuantile)
	}
	return nil
}

func (p *DevelopParameters) estimator() nlf.Estimator {
	if p.Estimator=="lmeds" { return nlf.EstimateLMedS }
	return nlf.EstimateClosedForm
}
