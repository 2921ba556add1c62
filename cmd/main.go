package main

import (
	"context"
	stdlog "log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"license-signing-system/internal/config"
	"license-signing-system/internal/database"
	"license-signing-system/internal/handler"
	applog "license-signing-system/internal/logger"
	"license-signing-system/internal/service"
	"license-signing-system/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}

	log, err := applog.New(cfg.Logging)
	if err != nil {
		stdlog.Fatalf("初始化日志失败: %v", err)
	}
	defer log.Sync() //nolint:errcheck

	// 初始化数据库
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("初始化数据库失败", zap.Error(err))
	}
	if err := database.EnsureAdmin(db, cfg.Auth.AdminPassword, log); err != nil {
		log.Fatal("初始化管理员账户失败", zap.Error(err))
	}

	keys, err := config.LoadKeyMaterial(afero.NewOsFs(), cfg.Signing)
	if err != nil {
		log.Fatal("加载签名密钥失败", zap.Error(err))
	}
	defaultMode, err := cfg.Signing.DefaultMode()
	if err != nil {
		log.Fatal("签名算法配置错误", zap.Error(err))
	}

	sheets, err := service.NewSheetSyncService(context.Background(), cfg.Sheets, log)
	if err != nil {
		log.Fatal("初始化 Google Sheets 同步失败", zap.Error(err))
	}

	tokens := util.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	archive := service.NewArchive(db)
	oplog := service.NewOperationLogger(db)

	var mirror service.Mirror
	if sheets != nil {
		mirror = sheets
	}
	issuer := service.NewIssuerService(keys, archive, mirror, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler,
	})

	// 中间件
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.Origins(), ","),
	}))

	handler.SetupRoutes(app, handler.Handlers{
		User:       handler.NewUserHandler(db, tokens, oplog, log),
		License:    handler.NewLicenseHandler(issuer, archive, sheets, oplog, defaultMode, log),
		Statistics: handler.NewStatisticsHandler(archive, log),
		Log:        handler.NewLogHandler(oplog),
	}, tokens, db)

	log.Info("服务启动",
		zap.String("addr", cfg.Server.Addr),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("default_algorithm", defaultMode.String()),
		zap.Bool("sheets", sheets != nil),
	)
	if err := app.Listen(cfg.Server.Addr); err != nil {
		issuer.Wait()
		log.Fatal("服务退出", zap.Error(err))
	}
}
