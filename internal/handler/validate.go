package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// NewValidator 错误中的字段名使用 json 标签
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	body := fiber.Map{"error": message}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]fiber.Map, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fiber.Map{"field": fe.Field(), "message": validationMessage(fe)})
		}
		body["errors"] = fields
	} else if err != nil {
		body["details"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "datetime":
		return "日期格式应为 YYYY-MM-DD"
	case "len":
		return "长度应为 " + fe.Param()
	case "hexadecimal":
		return "应为十六进制字符串"
	case "oneof":
		return "取值应为: " + fe.Param()
	case "gte":
		return "不能小于 " + fe.Param()
	case "min":
		return "长度不能少于 " + fe.Param()
	case "max":
		return "长度不能超过 " + fe.Param()
	}
	return "无效的值"
}

func pagination(c *fiber.Ctx) (int, int) {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 10)
	// 限制页面大小
	if pageSize > 100 {
		pageSize = 100
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}
