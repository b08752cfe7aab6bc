package fiberhelpers

import (
	"runtime/debug"

	"klinechart/utils/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func NewRecover() fiber.Handler {
	return recover.New(
		recover.Config{
			StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
				log.WithField("stack_trace", string(debug.Stack())).
					Errorf("[WEB] panic on %s %s: %v", c.Method(), c.Path(), e)
			},
			EnableStackTrace: true,
		},
	)
}
