package fiberhelpers

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"klinechart/utils/log"

	"github.com/gofiber/fiber/v2"
)

// RequestParse : body -> T. 실패하면 400 ErrorBase
func RequestParse[T any](ctx *fiber.Ctx) (T, error) {
	var destination T
	if err := ctx.BodyParser(&destination); err != nil {
		typeName := reflect.TypeOf(destination).Name()
		return destination, NewError(fiber.StatusBadRequest, "invalid_request", fmt.Errorf("parse %s: %w", typeName, err))
	}
	return destination, nil
}

// ListenWithGracefulShutdown : ctx 가 끝나면 app.Shutdown. Listen 이 끝날 때까지 block
func ListenWithGracefulShutdown(ctx context.Context, app *fiber.App, addr string) error {
	if !strings.ContainsAny(addr, ":") {
		addr = fmt.Sprintf(":%s", addr)
	}

	serverShutdown := make(chan struct{})
	go func() {
		defer close(serverShutdown)
		<-ctx.Done()
		log.Info("[WEB] gracefully shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Errorf("[WEB] shutdown: %v", err)
		}
	}()

	log.Infof("[WEB] starting server on %s", addr)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	<-serverShutdown
	return nil
}
