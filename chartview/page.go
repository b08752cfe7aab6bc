// Package chartview : go-echarts 로 candle / volume / RSI pane 을 한 페이지로 그린다
package chartview

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"klinechart/chart"
	"klinechart/indicator"
	"klinechart/metrics"
	"klinechart/model"
	"klinechart/utils/log"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	PaneCandle = "candle"
	PaneVolume = "volume"
	PaneRSI    = "rsi"

	upColor    = "#00b15d"
	downColor  = "#ff5b5a"
	priceColor = "#2962FF"

	areaOpacity = 0.2
)

// Pane : snapshot 하나로 차트 하나(또는 여러 개)를 만든다. 지표 pane 은 인스턴스마다 하나씩
type Pane struct {
	Name  string
	Build func(snap chart.Snapshot) []components.Charter
}

type Renderer struct {
	title   string
	panes   []Pane
	metrics *metrics.Metrics
}

func NewRenderer(title string, m *metrics.Metrics) *Renderer {
	return &Renderer{
		title:   title,
		metrics: m,
		panes: []Pane{
			{Name: PaneCandle, Build: buildCandlePane},
			{Name: PaneVolume, Build: buildVolumePanes},
			{Name: PaneRSI, Build: buildRSIPanes},
		},
	}
}

// WithPane : pane 추가 (순서대로 그려짐)
func (r *Renderer) WithPane(p Pane) *Renderer {
	r.panes = append(r.panes, p)
	return r
}

// Render : pane 하나가 실패해도 나머지는 그린다. 실패한 pane 은 RenderError 로 돌려주고 페이지 상단에 표시
func (r *Renderer) Render(w io.Writer, snap chart.Snapshot) ([]error, error) {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s %s", r.title, snap.Market)

	var renderErrs []error
	for _, pane := range r.panes {
		built, err := r.build(pane, snap)
		if err != nil {
			renderErrs = append(renderErrs, err)
			continue
		}
		page.AddCharts(built...)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		r.metrics.RenderError()
		return renderErrs, &model.RenderError{Pane: "page", Err: err}
	}

	out := buf.String()
	if len(renderErrs) > 0 {
		banner := errorBanner(renderErrs)
		if strings.Contains(out, "<body>") {
			out = strings.Replace(out, "<body>", "<body>\n"+banner, 1)
		} else {
			out = banner + out
		}
	}
	_, err := io.WriteString(w, out)
	return renderErrs, err
}

// build : pane 빌드 중 panic 은 RenderError 로 바꿔서 삼킨다
func (r *Renderer) build(pane Pane, snap chart.Snapshot) (built []components.Charter, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cause, ok := rec.(error)
			if !ok {
				cause = fmt.Errorf("%v", rec)
			}
			built = nil
			err = &model.RenderError{Pane: pane.Name, Err: cause}
			r.metrics.RenderError()
			log.Errorf("[CHART] %v", err)
		}
	}()
	return pane.Build(snap), nil
}

func errorBanner(errs []error) string {
	var sb strings.Builder
	sb.WriteString(`<div class="render-error" style="color:#ff5b5a;font-family:monospace">`)
	for _, err := range errs {
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(err.Error()))
		sb.WriteString("</p>")
	}
	sb.WriteString("</div>")
	return sb.String()
}

func baseOptions(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	}
}

// buildCandlePane : 가격 pane. snap.ChartType 에 따라 candle / line / area / bar, 위에 overlay 지표
func buildCandlePane(snap chart.Snapshot) []components.Charter {
	x := timeAxis(snap.Candles, snap.Market.Interval)
	global := append(baseOptions(snap.Market.String(), lastUpdate(snap.Candles)),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	var overlays []indicator.IndicatorMetric
	for _, ind := range snap.Indicators {
		if ind.Overlay {
			overlays = append(overlays, ind.Metrics...)
		}
	}

	switch snap.ChartType {
	case model.ChartTypeLine, model.ChartTypeArea:
		line := charts.NewLine()
		line.SetGlobalOptions(global...)
		line.SetXAxis(x)
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineStyleOpts(opts.LineStyle{Color: priceColor, Width: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: priceColor}),
		}
		if snap.ChartType == model.ChartTypeArea {
			seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{Color: withOpacity(priceColor, areaOpacity)}))
		}
		line.AddSeries(snap.Market.Symbol, closeData(snap.Candles), seriesOpts...)
		addLines(line, overlays)
		return []components.Charter{line}

	case model.ChartTypeBar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		bar.SetXAxis(x).AddSeries(snap.Market.Symbol, closeBarData(snap.Candles))
		if line := overlayLine(x, overlays); line != nil {
			bar.Overlap(line)
		}
		return []components.Charter{bar}
	}

	// go-echarts Kline 은 [open, close, low, high] 순서
	values := make([]opts.KlineData, len(snap.Candles))
	for i, c := range snap.Candles {
		values[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(global...)
	kline.SetXAxis(x).
		AddSeries(snap.Market.Symbol, values).
		SetSeriesOptions(charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        upColor,
			Color0:       downColor,
			BorderColor:  upColor,
			BorderColor0: downColor,
		}))
	if line := overlayLine(x, overlays); line != nil {
		kline.Overlap(line)
	}
	return []components.Charter{kline}
}

// overlayLine : 다른 종류의 차트 위에 겹칠 선 지표. 없으면 nil
func overlayLine(x []string, ms []indicator.IndicatorMetric) *charts.Line {
	if len(ms) == 0 {
		return nil
	}
	line := charts.NewLine()
	line.SetXAxis(x)
	addLines(line, ms)
	return line
}

// buildVolumePanes : 거래량 막대 + MA 선
func buildVolumePanes(snap chart.Snapshot) []components.Charter {
	x := timeAxis(snap.Candles, snap.Market.Interval)
	var out []components.Charter
	for _, ind := range snap.Indicators {
		if ind.Kind != model.KindVolume {
			continue
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(baseOptions(ind.GroupName, "")...)
		bar.SetXAxis(x)

		var lines []indicator.IndicatorMetric
		for _, m := range ind.Metrics {
			if m.Style == indicator.StyleBar {
				bar.AddSeries(m.Name, barData(m))
				continue
			}
			lines = append(lines, m)
		}
		if line := overlayLine(x, lines); line != nil {
			bar.Overlap(line)
		}
		out = append(out, bar)
	}
	return out
}

// buildRSIPanes : RSI 인스턴스마다 pane 하나. 과매수/과매도는 점선
func buildRSIPanes(snap chart.Snapshot) []components.Charter {
	x := timeAxis(snap.Candles, snap.Market.Interval)
	var out []components.Charter
	for _, ind := range snap.Indicators {
		if ind.Kind != model.KindRSI {
			continue
		}
		line := charts.NewLine()
		line.SetGlobalOptions(append(baseOptions(ind.GroupName, ""),
			charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100}),
		)...)
		line.SetXAxis(x)
		addLines(line, ind.Metrics)
		for _, lv := range ind.Levels {
			line.AddSeries(lv.Name, levelData(lv.Value, len(x)),
				charts.WithLineStyleOpts(opts.LineStyle{Color: lv.Color, Width: 1, Type: "dashed"}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: lv.Color}),
			)
		}
		out = append(out, line)
	}
	return out
}

func addLines(line *charts.Line, ms []indicator.IndicatorMetric) {
	for _, m := range ms {
		width := m.Width
		if width == 0 {
			width = 1
		}
		line.AddSeries(m.Name, lineData(m),
			charts.WithLineStyleOpts(opts.LineStyle{Color: m.Color, Width: float32(width)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: m.Color}),
		)
	}
}
