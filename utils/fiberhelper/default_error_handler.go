package fiberhelpers

import (
	"errors"
	"strconv"

	"klinechart/utils/fiberhelper/response"
	"klinechart/utils/log"

	"github.com/gofiber/fiber/v2"
)

func DefaultErrorHandler(ctx *fiber.Ctx, err error) error {
	var errorBase *ErrorBase
	if errors.As(err, &errorBase) {
		if errorBase.Status >= fiber.StatusInternalServerError {
			log.Errorf("[WEB] %s %s: %v", ctx.Method(), ctx.Path(), err)
		}
		return ctx.Status(errorBase.Status).JSON(errorBase.NewErrorResponse())
	}

	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		return ctx.Status(fiberError.Code).JSON(response.ErrorResponse{
			Code:    strconv.Itoa(fiberError.Code),
			Message: fiberError.Message,
		})
	}

	log.Errorf("[WEB] %s %s: %v", ctx.Method(), ctx.Path(), err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(response.NewInternalServerError())
}
