// Package chart renders the electron wavelength curve as an HTML page.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	log "github.com/sirupsen/logrus"

	"diffkit/internal/physics"
)

// ErrInvalidRange is returned for voltage ranges that produce no points
var ErrInvalidRange = errors.New("invalid voltage range")

// Range is an inclusive sweep of accelerating voltages in kV
type Range struct {
	From float64
	To   float64
	Step float64
}

// DefaultRange covers common TEM and SEM voltages
var DefaultRange = Range{From: 10, To: 300, Step: 10}

// maxPoints bounds the sweep so a tiny step cannot exhaust memory
const maxPoints = 100000

// Voltages returns the kV values of the sweep.
func (r Range) Voltages() ([]float64, error) {
	switch {
	case math.IsNaN(r.From) || math.IsNaN(r.To) || math.IsNaN(r.Step):
		return nil, fmt.Errorf("%w: NaN bound", ErrInvalidRange)
	case math.IsInf(r.From, 0) || math.IsInf(r.To, 0) || math.IsInf(r.Step, 0):
		return nil, fmt.Errorf("%w: infinite bound", ErrInvalidRange)
	case r.From <= 0:
		return nil, fmt.Errorf("%w: from must be positive, got %g", ErrInvalidRange, r.From)
	case r.To < r.From:
		return nil, fmt.Errorf("%w: to %g is below from %g", ErrInvalidRange, r.To, r.From)
	case r.Step <= 0:
		return nil, fmt.Errorf("%w: step must be positive, got %g", ErrInvalidRange, r.Step)
	}

	// compare as float; the count of a wide sweep overflows int
	span := math.Floor((r.To-r.From)/r.Step+1e-9) + 1
	if span > maxPoints {
		return nil, fmt.Errorf("%w: %g points exceeds %d", ErrInvalidRange, span, maxPoints)
	}
	n := int(span)
	kv := make([]float64, n)
	for i := range kv {
		kv[i] = r.From + float64(i)*r.Step
	}
	return kv, nil
}

// Curve returns the sweep voltages and the wavelength in pm at each one.
func Curve(r Range) ([]float64, []opts.LineData, error) {
	kv, err := r.Voltages()
	if err != nil {
		return nil, nil, err
	}

	data := make([]opts.LineData, len(kv))
	for i, v := range kv {
		l, err := physics.Wavelength(physics.FromKiloelectronVolts(v))
		if err != nil {
			return nil, nil, err
		}
		data[i] = opts.LineData{Value: physics.Picometres(l)}
	}
	return kv, data, nil
}

// NewWavelengthChart builds a line chart of wavelength against voltage.
func NewWavelengthChart(r Range) (*charts.Line, error) {
	kv, data, err := Curve(r)
	if err != nil {
		return nil, err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			BackgroundColor: "#ffffff",
			Width:           "100%",
			Height:          "600px",
			PageTitle:       "Relativistic electron wavelength",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Electron wavelength",
			Subtitle: fmt.Sprintf("%g to %g kV", r.From, r.To),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "slider",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
			AxisPointer: &opts.AxisPointer{
				Type: "cross",
				Snap: opts.Bool(true),
			},
		}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Top:  "0%",
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
					Show:  opts.Bool(true),
					Type:  "png",
					Name:  "wavelength",
					Title: "Save as image",
				},
				DataZoom: &opts.ToolBoxFeatureDataZoom{
					Show:       opts.Bool(true),
					YAxisIndex: "none",
					Title: map[string]string{
						"zoom": "area zooming",
						"back": "restore area zooming",
					},
				},
				DataView: &opts.ToolBoxFeatureDataView{
					Show:  opts.Bool(true),
					Title: "Data view",
					Lang:  []string{"data view", "turn off", "refresh"},
				},
				Restore: &opts.ToolBoxFeatureRestore{
					Show:  opts.Bool(true),
					Title: "refresh",
				},
			},
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Voltage, kV",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  "Wavelength, pm",
			Type:  "value",
			Show:  opts.Bool(true),
			Scale: opts.Bool(true),
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
	)

	line.SetXAxis(kv).AddSeries("λ", data)
	return line, nil
}

// Render writes the chart page for r to w.
func Render(w io.Writer, r Range) error {
	line, err := NewWavelengthChart(r)
	if err != nil {
		return err
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	log.WithFields(log.Fields{
		"from": r.From,
		"to":   r.To,
		"step": r.Step,
	}).Debug("wavelength chart rendered")
	return nil
}
