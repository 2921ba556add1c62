package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"license-signing-system/internal/middleware"
	"license-signing-system/internal/util"
)

type Handlers struct {
	User       *UserHandler
	License    *LicenseHandler
	Statistics *StatisticsHandler
	Log        *LogHandler
}

// SetupRoutes 注册 /api/v1 下的全部路由
func SetupRoutes(app *fiber.App, h Handlers, tokens *util.TokenManager, db *gorm.DB) {
	authRequired := middleware.Auth(tokens)
	adminOnly := middleware.AdminOnly(db)

	// 路由组
	api := app.Group("/api/v1")

	// 认证路由
	auth := api.Group("/auth")
	auth.Post("/validate-token", h.User.HandleValidateToken)
	auth.Post("/change-password", authRequired, h.User.HandleChangePassword)

	// 用户路由
	users := api.Group("/users")
	users.Post("/login", h.User.HandleUserLogin)
	users.Get("/info", authRequired, h.User.HandleUserInfo)
	users.Get("/login-logs", authRequired, h.User.HandleGetLoginLogs)

	// 许可证路由
	licenses := api.Group("/licenses")

	// 公开路由，验证方无需登录
	licenses.Post("/verify", h.License.HandleLicenseVerify)
	licenses.Get("/public-key", h.License.HandlePublicKey)

	// 管理员专用路由
	licenses.Get("/licenses", authRequired, adminOnly, h.License.HandleGetAllLicenses)
	licenses.Post("/issue", authRequired, adminOnly, h.License.HandleLicenseIssue)
	licenses.Get("/statistics", authRequired, adminOnly, h.Statistics.HandleLicenseStatistics)
	licenses.Post("/sync", authRequired, adminOnly, h.License.HandleLicenseSync)
	licenses.Get("/:key", authRequired, adminOnly, h.License.HandleGetLicense)
	licenses.Put("/:key/revoke", authRequired, adminOnly, h.License.HandleLicenseRevoke)
	licenses.Get("/:key/usage", authRequired, adminOnly, h.License.HandleLicenseUsage)

	// 操作日志
	logs := api.Group("/logs", authRequired)
	logs.Get("/", adminOnly, h.Log.HandleGetLogs)
	logs.Get("/mine", h.Log.HandleGetUserLogs)
}

// ErrorHandler 未处理的错误统一返回 JSON
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
