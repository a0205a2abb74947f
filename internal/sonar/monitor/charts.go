package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fanbeam/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleTransportChart renders the live transport rates as line charts.
func (ws *WebServer) handleTransportChart(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.History == nil {
		httputil.NotFound(w, "no transport stats")
		return
	}
	rates := ws.cfg.History.Rates()

	x := make([]string, len(rates))
	frames := make([]opts.LineData, len(rates))
	datagrams := make([]opts.LineData, len(rates))
	incomplete := make([]opts.LineData, len(rates))
	mb := make([]opts.LineData, len(rates))
	for i, rt := range rates {
		x[i] = rt.Time.Format("15:04:05")
		frames[i] = opts.LineData{Value: rt.FramesPerSec}
		datagrams[i] = opts.LineData{Value: rt.DatagramsPerSec}
		incomplete[i] = opts.LineData{Value: rt.IncompletePerSec}
		mb[i] = opts.LineData{Value: rt.MBPerSec}
	}
	subtitle := fmt.Sprintf("%d samples, %s", len(rates), time.Now().Format(time.RFC3339))

	rateChart := charts.NewLine()
	rateChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Sonar Transport", Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Frames and datagrams (/sec)", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	rateChart.SetXAxis(x).
		AddSeries("frames", frames).
		AddSeries("datagrams", datagrams).
		AddSeries("incomplete", incomplete)

	bwChart := charts.NewLine()
	bwChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "300px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Throughput (MB/sec)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	bwChart.SetXAxis(x).
		AddSeries("MB/s", mb)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(rateChart, bwChart)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
