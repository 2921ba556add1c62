package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"license-signing-system/internal/middleware"
	"license-signing-system/internal/model"
	"license-signing-system/internal/service"
	"license-signing-system/internal/util"
)

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type TokenInput struct {
	Token string `json:"token"`
}

// UserHandler 操作员登录与账户
type UserHandler struct {
	db     *gorm.DB
	tokens *util.TokenManager
	oplog  *service.OperationLogger
	log    *zap.Logger
}

func NewUserHandler(db *gorm.DB, tokens *util.TokenManager, oplog *service.OperationLogger, log *zap.Logger) *UserHandler {
	return &UserHandler{db: db, tokens: tokens, oplog: oplog, log: log}
}

func (h *UserHandler) HandleUserLogin(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil || input.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	db := h.db.WithContext(c.UserContext())
	var user model.User
	if err := db.Where("username = ?", input.Username).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "用户名或密码错误",
		})
	}

	now := time.Now()
	loginLog := &model.LoginLog{
		UserID:    user.ID,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Status:    model.LoginSuccess,
		CreatedAt: now,
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		loginLog.Status = model.LoginFailed
		h.saveLoginLog(db, loginLog)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "用户名或密码错误",
		})
	}
	if !user.Active() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "账户已停用",
		})
	}
	h.saveLoginLog(db, loginLog)

	// 更新用户最后登录时间
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		h.log.Warn("更新最后登录时间失败", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "令牌生成失败",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *UserHandler) saveLoginLog(db *gorm.DB, entry *model.LoginLog) {
	if err := db.Create(entry).Error; err != nil {
		h.log.Warn("保存登录日志失败", zap.Uint("user_id", entry.UserID), zap.Error(err))
	}
}

func (h *UserHandler) HandleUserInfo(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	var user model.User
	if err := h.db.WithContext(c.UserContext()).First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "用户不存在",
		})
	}
	return c.JSON(user)
}

func (h *UserHandler) HandleGetLoginLogs(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	page, pageSize := pagination(c)

	db := h.db.WithContext(c.UserContext()).Model(&model.LoginLog{}).Where("user_id = ?", userID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取登录日志总数失败",
		})
	}

	var logs []model.LoginLog
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取登录日志失败",
		})
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"total": total,
		"page":  page,
		"size":  pageSize,
	})
}

func (h *UserHandler) HandleChangePassword(c *fiber.Ctx) error {
	input := new(ChangePasswordInput)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "无效的输入数据", nil)
	}
	if err := NewValidator().Struct(input); err != nil {
		return badRequest(c, "无效的输入数据", err)
	}

	userID, _ := middleware.UserID(c)
	db := h.db.WithContext(c.UserContext())

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "用户不存在",
		})
	}

	// 验证当前密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.CurrentPassword)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "当前密码错误",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "密码加密失败",
		})
	}

	if err := db.Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "密码更新失败",
		})
	}

	if err := h.oplog.LogOperation(c.UserContext(), user.ID, model.ActionChangePassword, model.TargetUser, user.Username, nil); err != nil {
		h.log.Warn("记录操作日志失败", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"message": "密码更新成功",
	})
}

// HandleValidateToken 验证token的有效性
func (h *UserHandler) HandleValidateToken(c *fiber.Ctx) error {
	input := new(TokenInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	if input.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "未提供token",
			"valid": false,
		})
	}

	userID, err := h.tokens.ValidateToken(input.Token)
	if err != nil {
		return c.JSON(fiber.Map{
			"valid": false,
			"error": "无效的token",
		})
	}

	var user model.User
	err = h.db.WithContext(c.UserContext()).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.Active()) {
		return c.JSON(fiber.Map{
			"valid": false,
			"error": "用户不存在",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询用户失败",
		})
	}

	return c.JSON(fiber.Map{
		"valid": true,
		"user": fiber.Map{
			"id":       userID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}
