// Package cli 实现 licensectl 的各个子命令。
package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"license-signing-system/internal/config"
	"license-signing-system/internal/database"
	"license-signing-system/internal/hwid"
	"license-signing-system/internal/service"
)

// App 子命令共享的依赖，测试中替换为内存实现
type App struct {
	Fs       afero.Fs
	Out      io.Writer
	Log      *zap.Logger
	Hardware hwid.Provider
	Now      func() time.Time
	// OpenArchive 打开归档数据库，只有需要归档的命令才会调用
	OpenArchive func(cfg config.DatabaseConfig) (*service.Archive, error)
}

func NewApp(log *zap.Logger) *App {
	return &App{
		Fs:       afero.NewOsFs(),
		Out:      os.Stdout,
		Log:      log,
		Hardware: hwid.NewHost(log),
		Now:      time.Now,
		OpenArchive: func(cfg config.DatabaseConfig) (*service.Archive, error) {
			db, err := database.Open(cfg, log)
			if err != nil {
				return nil, err
			}
			return service.NewArchive(db), nil
		},
	}
}

// NewRootCmd 组装 licensectl 命令树
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "licensectl",
		Short: "Issue and verify signed license files",

		// main 负责打印错误
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetOut(app.Out)
	rootCmd.AddCommand(
		newKeygenCmd(app),
		newSecretCmd(app),
		newIssueCmd(app),
		newVerifyCmd(app),
		newHWIDCmd(app),
		newArchiveCmd(app),
	)
	return rootCmd
}

type dbFlags struct {
	driver string
	dsn    string
}

func (f *dbFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.driver, "db-driver", "sqlite", "Archive database driver: sqlite, mysql or postgres.")
	cmd.Flags().StringVar(&f.dsn, "db-dsn", "data/license.db", "Archive database DSN.")
}

func (f *dbFlags) config() config.DatabaseConfig {
	return config.DatabaseConfig{Driver: f.driver, DSN: f.dsn}
}

type signingFlags struct {
	secret     string
	secretFile string
	privateKey string
}

func (f *signingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.secret, "secret", "", "Shared secret for HMAC-SHA256.")
	cmd.Flags().StringVar(&f.secretFile, "secret-file", "", "File holding the shared secret.")
}

func (f *signingFlags) config() config.SigningConfig {
	return config.SigningConfig{Secret: f.secret, SecretFile: f.secretFile, PrivateKeyFile: f.privateKey}
}
