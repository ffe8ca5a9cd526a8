// Package report renders speed survey charts of recorded events as HTML.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/swdee/go-speedcam/speed"
)

// DefaultBinKMH is the width of a histogram bin
const DefaultBinKMH = 5.0

// Bin is one bar of a speed histogram covering [LowKMH, HighKMH)
type Bin struct {
	LowKMH  float64 `json:"low_kmh"`
	HighKMH float64 `json:"high_kmh"`
	Count   int     `json:"count"`
}

// Label returns the bin range for an axis label
func (b Bin) Label() string {
	return fmt.Sprintf("%.0f-%.0f", b.LowKMH, b.HighKMH)
}

// Histogram bins the available speeds of the events.  Bins start at 0 and
// run to the bin containing the fastest vehicle.
func Histogram(events []speed.Event, binKMH float64) []Bin {

	if binKMH <= 0 {
		binKMH = DefaultBinKMH
	}

	speeds := speed.Speeds(events)

	if len(speeds) == 0 {
		return nil
	}

	n := int(math.Floor(speeds[len(speeds)-1]/binKMH)) + 1

	dividers := make([]float64, n+1)
	for i := range dividers {
		dividers[i] = float64(i) * binKMH
	}

	counts := stat.Histogram(nil, dividers, speeds, nil)

	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{
			LowKMH:  dividers[i],
			HighKMH: dividers[i+1],
			Count:   int(counts[i]),
		}
	}

	return bins
}

// Options configure Render
type Options struct {
	Title string
	// BinKMH is the histogram bin width
	BinKMH float64
	// AssetsHost overrides the echarts javascript location
	AssetsHost string
}

// Render writes an HTML page with a speed histogram per direction and the
// speed of each vehicle over time
func Render(w io.Writer, events []speed.Event, o Options) error {

	if o.Title == "" {
		o.Title = "Vehicle Speeds"
	}

	var down, up []speed.Event

	for _, ev := range events {
		switch ev.Direction {
		case speed.Down:
			down = append(down, ev)
		case speed.Up:
			up = append(up, ev)
		}
	}

	sum := speed.Summarize(events)

	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.SetPageTitle(o.Title)

	page.AddCharts(
		histogramChart(o, "GoingDown", down, sum),
		histogramChart(o, "GoingUp", up, sum),
		timelineChart(o, events),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	return nil
}

// histogramChart builds the speed distribution bar chart for one direction
func histogramChart(o Options, name string, events []speed.Event, sum speed.Summary) *charts.Bar {

	bins := Histogram(events, o.BinKMH)

	x := make([]string, 0, len(bins))
	y := make([]opts.BarData, 0, len(bins))

	for _, b := range bins {
		x = append(x, b.Label())
		y = append(y, opts.BarData{Value: b.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: o.AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s: %d", name, len(events)),
			Subtitle: fmt.Sprintf("all directions p50 %.0f km/h, p85 %.0f km/h, max %.0f km/h",
				sum.P50KMH, sum.P85KMH, sum.MaxKMH),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "km/h"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "vehicles"}),
	)

	bar.SetXAxis(x).AddSeries(name, y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	return bar
}

// timelineChart plots each available speed against the time it was measured
func timelineChart(o Options, events []speed.Event) *charts.Scatter {

	down := make([]opts.ScatterData, 0, len(events))
	up := make([]opts.ScatterData, 0, len(events))

	for _, ev := range events {
		if !ev.Speed.Available {
			continue
		}

		point := opts.ScatterData{
			Value: []interface{}{ev.At.Format("15:04:05"), math.Round(ev.Speed.KMH*10) / 10},
			Name:  fmt.Sprintf("id %d", ev.ID),
		}

		if ev.Direction == speed.Up {
			up = append(up, point)
		} else {
			down = append(down, point)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: o.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Speed over time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "km/h"}),
	)

	scatter.AddSeries("down", down).AddSeries("up", up)

	return scatter
}
