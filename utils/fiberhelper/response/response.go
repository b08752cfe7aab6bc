package response

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestError = "The request is not valid."
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewInternalServerError() ErrorResponse {
	return ErrorResponse{
		Code:    strconv.Itoa(fiber.StatusInternalServerError),
		Message: "Internal Server Error",
	}
}

type Ext struct {
	*fiber.Ctx
}

// Ok : 성공(200) 응답
func (ext Ext) Ok(data interface{}) error {
	return ext.Status(fiber.StatusOK).JSON(data)
}

// Created : 201
func (ext Ext) Created(data interface{}) error {
	return ext.Status(fiber.StatusCreated).JSON(data)
}

func (ext Ext) NoContent() error {
	return ext.SendStatus(fiber.StatusNoContent)
}
