package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"license-signing-system/internal/license"
	"license-signing-system/internal/middleware"
	"license-signing-system/internal/model"
	"license-signing-system/internal/service"
)

// LicenseHandler 许可证签发、验证与归档查询
type LicenseHandler struct {
	issuer      *service.IssuerService
	archive     *service.Archive
	mirror      *service.SheetSyncService
	oplog       *service.OperationLogger
	defaultMode license.Mode
	validate    *validator.Validate
	log         *zap.Logger
}

// NewLicenseHandler mirror 为 nil 表示未启用表格同步
func NewLicenseHandler(issuer *service.IssuerService, archive *service.Archive, mirror *service.SheetSyncService,
	oplog *service.OperationLogger, defaultMode license.Mode, log *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		issuer:      issuer,
		archive:     archive,
		mirror:      mirror,
		oplog:       oplog,
		defaultMode: defaultMode,
		validate:    NewValidator(),
		log:         log,
	}
}

func (h *LicenseHandler) claimsFromInput(input *model.LicenseInput) (license.Claims, license.Mode, error) {
	claims := license.Claims{
		Version:  license.CurrentVersion,
		Key:      input.Key,
		Customer: input.Customer,
		Product:  input.Product,
		Seats:    input.Seats,
		Notes:    input.Notes,
	}

	claims.IssuedAt = license.DateOf(time.Now())
	if input.IssuedAt != "" {
		d, err := license.ParseDate(input.IssuedAt)
		if err != nil {
			return claims, 0, fmt.Errorf("issued_at: %w", err)
		}
		claims.IssuedAt = d
	}
	if input.ExpiresAt != "" {
		d, err := license.ParseDate(input.ExpiresAt)
		if err != nil {
			return claims, 0, fmt.Errorf("expires_at: %w", err)
		}
		claims.ExpiresAt = &d
	}

	mode := h.defaultMode
	if input.Algorithm != "" {
		m, err := license.ParseMode(input.Algorithm)
		if err != nil {
			return claims, 0, err
		}
		mode = m
	}
	return claims, mode, nil
}

// HandleLicenseIssue 签发许可证
func (h *LicenseHandler) HandleLicenseIssue(c *fiber.Ctx) error {
	input := new(model.LicenseInput)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "无效的输入数据", nil)
	}
	if err := h.validate.Struct(input); err != nil {
		return badRequest(c, "无效的输入数据", err)
	}

	claims, mode, err := h.claimsFromInput(input)
	if err != nil {
		return badRequest(c, "许可证参数无效", err)
	}

	res, err := h.issuer.Issue(c.UserContext(), service.IssueRequest{
		Claims: claims,
		Mode:   mode,
		HWID:   input.HWID,
	})
	if err != nil {
		if license.IsConfigurationError(err) {
			return badRequest(c, "许可证参数无效", err)
		}
		h.log.Error("签发许可证失败", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "签发许可证失败",
		})
	}

	userID, _ := middleware.UserID(c)
	details := fiber.Map{
		"customer":  res.Document.Claims.Customer,
		"product":   res.Document.Claims.Product,
		"algorithm": res.Document.Algorithm,
	}
	if err := h.oplog.LogOperation(c.UserContext(), userID, model.ActionIssueLicense, model.TargetLicense, res.Document.Claims.Key, details); err != nil {
		h.log.Warn("记录操作日志失败", zap.Error(err))
	}

	body := fiber.Map{
		"license":   json.RawMessage(res.Data),
		"file_name": res.Document.FileName(),
		"archived":  res.ArchiveErr == nil && res.Record != nil,
	}
	if res.ArchiveErr != nil {
		body["archive_error"] = res.ArchiveErr.Error()
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// HandleLicenseVerify 验证许可证文件，结论在响应体中，HTTP 状态始终为 200
func (h *LicenseHandler) HandleLicenseVerify(c *fiber.Ctx) error {
	input := new(model.VerifyInput)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "无效的输入数据", nil)
	}
	if err := h.validate.Struct(input); err != nil {
		return badRequest(c, "无效的输入数据", err)
	}

	out := h.issuer.Verify(c.UserContext(), service.VerifyRequest{
		Data:      []byte(input.Document),
		HWID:      input.HWID,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	return c.JSON(out)
}

// HandlePublicKey 返回签发公钥（PEM）
func (h *LicenseHandler) HandlePublicKey(c *fiber.Ctx) error {
	pem, err := h.issuer.PublicKeyPEM()
	if errors.Is(err, service.ErrNoPublicKey) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "未配置签名密钥对",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "导出公钥失败",
		})
	}
	return c.JSON(fiber.Map{
		"algorithm":  license.AlgorithmECDSAP256SHA256,
		"public_key": pem,
	})
}

func (h *LicenseHandler) HandleGetAllLicenses(c *fiber.Ctx) error {
	page, pageSize := pagination(c)
	q := service.ListQuery{
		Page:     page,
		PageSize: pageSize,
		Customer: c.Query("customer"),
		Product:  c.Query("product"),
	}
	switch c.Query("revoked") {
	case "true", "1":
		v := true
		q.Revoked = &v
	case "false", "0":
		v := false
		q.Revoked = &v
	}

	licenses, total, err := h.archive.List(c.UserContext(), q)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取许可证列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"licenses": licenses,
		"total":    total,
		"page":     page,
		"size":     pageSize,
	})
}

func (h *LicenseHandler) HandleGetLicense(c *fiber.Ctx) error {
	l, err := h.archive.Get(c.UserContext(), c.Params("key"))
	if errors.Is(err, service.ErrLicenseNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取许可证失败",
		})
	}
	return c.JSON(l)
}

// HandleLicenseRevoke 撤销或恢复许可证，请求体缺省时撤销
func (h *LicenseHandler) HandleLicenseRevoke(c *fiber.Ctx) error {
	input := new(model.RevokeInput)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(input); err != nil {
			return badRequest(c, "无效的输入数据", nil)
		}
	}
	revoked := input.Revoked == nil || *input.Revoked

	l, err := h.archive.SetRevoked(c.UserContext(), c.Params("key"), revoked)
	if errors.Is(err, service.ErrLicenseNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新许可证状态失败",
		})
	}

	h.issuer.MirrorLicense(c.UserContext(), l)

	action := model.ActionRevokeLicense
	if !revoked {
		action = model.ActionRestoreLicense
	}
	userID, _ := middleware.UserID(c)
	if err := h.oplog.LogOperation(c.UserContext(), userID, action, model.TargetLicense, l.Key, nil); err != nil {
		h.log.Warn("记录操作日志失败", zap.Error(err))
	}

	return c.JSON(l)
}

func (h *LicenseHandler) HandleLicenseUsage(c *fiber.Ctx) error {
	key := c.Params("key")
	if _, err := h.archive.Get(c.UserContext(), key); err != nil {
		if errors.Is(err, service.ErrLicenseNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取许可证失败",
		})
	}

	usage, err := h.archive.Usage(c.UserContext(), key, c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取验证记录失败",
		})
	}
	return c.JSON(fiber.Map{
		"key":   key,
		"usage": usage,
	})
}

// HandleLicenseSync 把整个归档重写到 Google Sheets
func (h *LicenseHandler) HandleLicenseSync(c *fiber.Ctx) error {
	if h.mirror == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "未启用 Google Sheets 同步",
		})
	}

	licenses, err := h.archive.All(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取许可证列表失败",
		})
	}
	if err := h.mirror.BatchSyncLicenses(c.UserContext(), licenses); err != nil {
		h.log.Error("批量同步许可证失败", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "同步到 Google Sheets 失败",
		})
	}

	userID, _ := middleware.UserID(c)
	if err := h.oplog.LogOperation(c.UserContext(), userID, model.ActionSyncLicenses, model.TargetLicense, "", fiber.Map{"count": len(licenses)}); err != nil {
		h.log.Warn("记录操作日志失败", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"message": "同步完成",
		"count":   len(licenses),
	})
}
