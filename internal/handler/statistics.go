package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"license-signing-system/internal/service"
)

type StatisticsHandler struct {
	archive *service.Archive
	log     *zap.Logger
}

func NewStatisticsHandler(archive *service.Archive, log *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{archive: archive, log: log}
}

// HandleLicenseStatistics 处理许可证统计信息请求
func (h *StatisticsHandler) HandleLicenseStatistics(c *fiber.Ctx) error {
	// 获取查询参数
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")

	var start, end time.Time
	var err error

	if startDate != "" {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    400,
				"message": "开始日期格式错误",
				"errors": []fiber.Map{
					{"field": "start_date", "message": "日期格式应为 YYYY-MM-DD"},
				},
			})
		}
	} else {
		// 默认为30天前
		start = time.Now().UTC().AddDate(0, 0, -30)
	}

	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    400,
				"message": "结束日期格式错误",
				"errors": []fiber.Map{
					{"field": "end_date", "message": "日期格式应为 YYYY-MM-DD"},
				},
			})
		}
		// 包含结束日期当天
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	} else {
		end = time.Now().UTC()
	}

	if end.Before(start) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    400,
			"message": "结束日期不能早于开始日期",
		})
	}

	stats, err := h.archive.Statistics(c.UserContext(), start, end)
	if err != nil {
		h.log.Error("统计许可证失败", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取统计信息失败",
		})
	}

	return c.JSON(fiber.Map{
		"code":    200,
		"message": "success",
		"data": fiber.Map{
			"statistics":   stats,
			"success_rate": stats.GetSuccessRate(),
			"start_date":   start.Format("2006-01-02"),
			"end_date":     end.Format("2006-01-02"),
		},
	})
}
