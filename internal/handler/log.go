package handler

import (
	"github.com/gofiber/fiber/v2"

	"license-signing-system/internal/middleware"
	"license-signing-system/internal/service"
)

type LogHandler struct {
	oplog *service.OperationLogger
}

func NewLogHandler(oplog *service.OperationLogger) *LogHandler {
	return &LogHandler{oplog: oplog}
}

func (h *LogHandler) HandleGetLogs(c *fiber.Ctx) error {
	page, pageSize := pagination(c)

	logs, total, err := h.oplog.GetOperationLogs(c.UserContext(), page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取日志失败",
		})
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"total": total,
		"page":  page,
	})
}

func (h *LogHandler) HandleGetUserLogs(c *fiber.Ctx) error {
	page, pageSize := pagination(c)

	// 从上下文获取用户ID
	userID, _ := middleware.UserID(c)

	logs, total, err := h.oplog.GetUserOperationLogs(c.UserContext(), userID, page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取日志失败",
		})
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"total": total,
		"page":  page,
	})
}
