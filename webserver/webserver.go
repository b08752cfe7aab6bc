// Package webserver : 차트 페이지 + JSON API + SSE 실시간 업데이트
package webserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"klinechart/chart"
	"klinechart/chartview"
	"klinechart/metrics"
	"klinechart/model"
	fiberhelpers "klinechart/utils/fiberhelper"
	"klinechart/utils/fiberhelper/middleware"
	"klinechart/utils/fiberhelper/response"
	"klinechart/utils/json"
	"klinechart/utils/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/valyala/fasthttp"
)

const sseHeartbeat = 15 * time.Second

// MarketSwitcher : symbol/interval 변경 (history 재로딩 + 스트림 재구독)
type MarketSwitcher interface {
	SwitchMarket(ctx context.Context, market model.Market) error
}

// Timeframes : 상단 바에 고정된 timeframe
type Timeframes interface {
	Pinned() []string
	Pin(ctx context.Context, tf string) ([]string, error)
	Unpin(ctx context.Context, tf string) ([]string, error)
}

type WebServer struct {
	app        *fiber.App
	addr       string
	controller *chart.Controller
	switcher   MarketSwitcher
	timeframes Timeframes
	renderer   *chartview.Renderer
	metrics    *metrics.Metrics

	broker      *broker
	unsubscribe func()
}

func NewWebServer(addr string, controller *chart.Controller, switcher MarketSwitcher, timeframes Timeframes,
	renderer *chartview.Renderer, m *metrics.Metrics) *WebServer {
	ws := &WebServer{
		addr:       addr,
		controller: controller,
		switcher:   switcher,
		timeframes: timeframes,
		renderer:   renderer,
		metrics:    m,
		broker:     newBroker(),
	}
	ws.app = fiber.New(fiber.Config{
		AppName:               "klinechart",
		DisableStartupMessage: true,
		ErrorHandler:          fiberhelpers.DefaultErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	ws.routes()
	ws.unsubscribe = controller.Subscribe(ws.onEvent)
	return ws
}

func (ws *WebServer) routes() {
	app := ws.app
	app.Use(fiberhelpers.NewRecover())
	app.Use(middleware.LogMiddleware("/sse", "/metrics"))

	app.Get("/", ws.indexHandler)
	app.Get("/chart", ws.chartHandler)
	app.Get("/sse", ws.sseHandler)
	if ws.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(ws.metrics.Handler()))
	}

	api := app.Group("/api")
	api.Get("/candles", ws.candlesHandler)
	api.Get("/status", ws.statusHandler)
	api.Get("/market", ws.marketHandler)
	api.Put("/market", ws.switchMarketHandler)

	api.Get("/indicators", ws.indicatorsHandler)
	api.Get("/indicators/config", ws.configsHandler)
	api.Put("/indicators/config", ws.setConfigsHandler)
	api.Post("/indicators/rsi", ws.upsertRSIHandler)
	api.Post("/indicators/volume", ws.upsertVolumeHandler)
	api.Delete("/indicators/:id", ws.removeIndicatorHandler)
	api.Post("/indicators/:id/toggle", ws.toggleIndicatorHandler)

	api.Get("/chart-type", ws.chartTypeHandler)
	api.Put("/chart-type", ws.setChartTypeHandler)

	api.Get("/timeframes", ws.timeframesHandler)
	api.Put("/timeframes/pinned/:tf", ws.pinHandler)
	api.Delete("/timeframes/pinned/:tf", ws.unpinHandler)
}

// App : 테스트에서 app.Test 로 직접 호출
func (ws *WebServer) App() *fiber.App {
	return ws.app
}

// Start : ctx 가 끝날 때까지 block
func (ws *WebServer) Start(ctx context.Context) error {
	defer ws.Close()
	return fiberhelpers.ListenWithGracefulShutdown(ctx, ws.app, ws.addr)
}

// Close : SSE 연결을 모두 끝내고 controller 구독 해제
func (ws *WebServer) Close() {
	ws.unsubscribe()
	ws.broker.close()
}

// onEvent : controller 이벤트 -> SSE
func (ws *WebServer) onEvent(e chart.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Errorf("[WEB] marshal %s event: %v", e.Type, err)
		return
	}
	ws.broker.publish(payload)
}

// httpError : 도메인 에러 -> HTTP status
func httpError(err error) error {
	var fetchErr *model.FetchError
	switch {
	case errors.Is(err, model.ErrInvalidConfig):
		return fiberhelpers.NewError(fiber.StatusBadRequest, "invalid_config", err)
	case errors.Is(err, chart.ErrIndicatorNotFound):
		return fiberhelpers.NewError(fiber.StatusNotFound, "indicator_not_found", err)
	case errors.As(err, &fetchErr):
		return fiberhelpers.NewError(fiber.StatusBadGateway, "history_fetch_failed", err)
	}
	return err
}

// persisted : 저장 실패는 메모리 값으로 계속 가므로 응답은 성공
func persisted(err error) error {
	var perr *model.PersistenceError
	if errors.As(err, &perr) {
		log.Warnf("[WEB] %v (kept in memory)", perr)
		return nil
	}
	return err
}

func (ws *WebServer) indexHandler(c *fiber.Ctx) error {
	snap := ws.controller.Snapshot()
	c.Type("html", "utf-8")
	return c.SendString(fmt.Sprintf(`<html><body>
<h2>klinechart %s</h2>
<p>%s</p>
<p><a href="/chart">Go To Candle Chart</a> | <a href="/api/candles">candles</a> | <a href="/api/indicators">indicators</a></p>
<p>pinned: %v</p>
</body></html>`, snap.Market, snap.Status.Message, ws.timeframes.Pinned()))
}

func (ws *WebServer) chartHandler(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	_, err := ws.renderer.Render(c, ws.controller.Snapshot())
	return err
}

func (ws *WebServer) candlesHandler(c *fiber.Ctx) error {
	snap := ws.controller.Snapshot()
	return response.Ext{Ctx: c}.Ok(fiber.Map{
		"market":  snap.Market,
		"candles": snap.Candles,
	})
}

func (ws *WebServer) indicatorsHandler(c *fiber.Ctx) error {
	snap := ws.controller.Snapshot()
	return response.Ext{Ctx: c}.Ok(fiber.Map{
		"market":     snap.Market,
		"indicators": snap.Indicators,
		"registered": snap.Registered,
	})
}

func (ws *WebServer) statusHandler(c *fiber.Ctx) error {
	return response.Ext{Ctx: c}.Ok(ws.controller.Snapshot().Status)
}

func (ws *WebServer) marketHandler(c *fiber.Ctx) error {
	return response.Ext{Ctx: c}.Ok(ws.controller.Market())
}

func (ws *WebServer) switchMarketHandler(c *fiber.Ctx) error {
	market, err := fiberhelpers.RequestParse[model.Market](c)
	if err != nil {
		return err
	}
	if market.Limit == 0 {
		market.Limit = ws.controller.Market().Limit
	}
	if err := ws.switcher.SwitchMarket(c.UserContext(), market); err != nil {
		return httpError(err)
	}
	snap := ws.controller.Snapshot()
	return response.Ext{Ctx: c}.Ok(fiber.Map{
		"market": snap.Market,
		"status": snap.Status,
	})
}

func (ws *WebServer) configsHandler(c *fiber.Ctx) error {
	return response.Ext{Ctx: c}.Ok(ws.controller.Configs())
}

func (ws *WebServer) setConfigsHandler(c *fiber.Ctx) error {
	cfgs, err := fiberhelpers.RequestParse[model.IndicatorConfigs](c)
	if err != nil {
		return err
	}
	if err := ws.controller.SetConfigs(cfgs); err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.Ok(ws.controller.Configs())
}

func (ws *WebServer) upsertRSIHandler(c *fiber.Ctx) error {
	cfg, err := fiberhelpers.RequestParse[model.RSIConfig](c)
	if err != nil {
		return err
	}
	saved, err := ws.controller.UpsertRSI(cfg)
	if err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.Ok(saved)
}

func (ws *WebServer) upsertVolumeHandler(c *fiber.Ctx) error {
	cfg, err := fiberhelpers.RequestParse[model.VolumeConfig](c)
	if err != nil {
		return err
	}
	saved, err := ws.controller.UpsertVolume(cfg)
	if err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.Ok(saved)
}

func (ws *WebServer) removeIndicatorHandler(c *fiber.Ctx) error {
	if err := ws.controller.RemoveIndicator(c.Params("id")); err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.NoContent()
}

func (ws *WebServer) toggleIndicatorHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	shown, err := ws.controller.ToggleIndicator(id)
	if err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.Ok(fiber.Map{"id": id, "show": shown})
}

type chartTypeRequest struct {
	ChartType model.ChartType `json:"chartType"`
}

func (ws *WebServer) chartTypeHandler(c *fiber.Ctx) error {
	return response.Ext{Ctx: c}.Ok(fiber.Map{
		"chartType": ws.controller.ChartType(),
		"all":       model.ChartTypes,
	})
}

func (ws *WebServer) setChartTypeHandler(c *fiber.Ctx) error {
	req, err := fiberhelpers.RequestParse[chartTypeRequest](c)
	if err != nil {
		return err
	}
	if err := ws.controller.SetChartType(req.ChartType); err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.Ok(fiber.Map{"chartType": ws.controller.ChartType()})
}

func (ws *WebServer) timeframesHandler(c *fiber.Ctx) error {
	return response.Ext{Ctx: c}.Ok(fiber.Map{
		"all":    model.AllTimeframes,
		"pinned": ws.timeframes.Pinned(),
	})
}

func (ws *WebServer) pinHandler(c *fiber.Ctx) error {
	pinned, err := ws.timeframes.Pin(c.UserContext(), c.Params("tf"))
	if err = persisted(err); err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.Ok(fiber.Map{"pinned": pinned})
}

func (ws *WebServer) unpinHandler(c *fiber.Ctx) error {
	pinned, err := ws.timeframes.Unpin(c.UserContext(), c.Params("tf"))
	if err = persisted(err); err != nil {
		return httpError(err)
	}
	return response.Ext{Ctx: c}.Ok(fiber.Map{"pinned": pinned})
}

// sseHandler : /sse. 처음에 snapshot 한 번, 이후 controller 이벤트
func (ws *WebServer) sseHandler(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	initial, err := json.Marshal(fiber.Map{"type": "snapshot", "snapshot": ws.controller.Snapshot()})
	if err != nil {
		return err
	}
	clientChan, ok := ws.broker.add()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if ok {
			defer ws.broker.remove(clientChan)
		}
		if writeSSE(w, initial) != nil || !ok {
			return
		}

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-ws.broker.done:
				return
			case msg := <-clientChan:
				if err := writeSSE(w, msg); err != nil {
					log.Debugf("[WEB] sse client gone: %v", err)
					return
				}
			case <-heartbeat.C:
				// 끊긴 client 는 flush 에서 에러
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeSSE(w *bufio.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
