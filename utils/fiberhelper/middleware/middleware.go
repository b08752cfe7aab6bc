package middleware

import (
	"strings"

	"klinechart/utils/json"
	"klinechart/utils/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func LogMiddleware(skipPath ...string) fiber.Handler {
	customTags := map[string]logger.LogFunc{
		"requestBody": getRequestBody(),
	}

	return logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[WEB] ${time} | ${status} | ${latency} | ${method} | ${path} | Query: ${queryParams} | Body: ${requestBody}\n",
		Output:     log.Writer(),
		Next: func(c *fiber.Ctx) bool {
			// Skip the middleware if the request path
			for _, p := range skipPath {
				if c.Path() == p {
					return true
				}
			}
			return false
		},
		CustomTags: customTags,
	})
}

func getRequestBody() logger.LogFunc {
	return func(output logger.Buffer, c *fiber.Ctx, data *logger.Data, extraParam string) (int, error) {
		if json.Valid(c.Body()) {
			body := strings.TrimSpace(string(c.Body()))
			body = strings.ReplaceAll(body, "\n", "")
			return output.WriteString(body)
		}
		return output.WriteString("")
	}
}
