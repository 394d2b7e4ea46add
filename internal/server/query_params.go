package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parsePagination(c *gin.Context) (page, limit int, err error) {
	page, err = parsePositiveInt(c.Query("page"), 1)
	if err != nil {
		return 0, 0, newValidationError("page", "invalid_page", "page must be a positive integer")
	}
	limit, err = parsePositiveInt(c.Query("limit"), 20)
	if err != nil {
		return 0, 0, newValidationError("limit", "invalid_limit", "limit must be a positive integer")
	}
	return page, limit, nil
}

func parsePositiveInt(value string, def int) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 1 {
		return 0, ErrInvalidRequest
	}
	return parsed, nil
}

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	parsed, err := snowflake.ParseString(raw)
	if err != nil || parsed == 0 {
		return 0, newValidationError(name, "invalid_id", "invalid identifier")
	}
	return parsed, nil
}
