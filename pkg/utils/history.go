package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const maxHistoryLimit = 200

// HistoryLimit extracts the message history limit from the request. Zero
// means the full history; anything above the cap is clamped.
func HistoryLimit(c echo.Context) int {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	if limit <= 0 {
		return 0
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
