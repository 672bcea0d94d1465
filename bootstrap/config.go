package bootstrap

import (
	"fmt"
	"os"

	"warden/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger with colored console output.
func InitLogger() (*zap.Logger, *zap.SugaredLogger, error) {
	return newConsoleLogger(zapcore.AddSync(os.Stdout), zapcore.DebugLevel)
}

// InitCLILogger writes warnings and above to stderr so command output on
// stdout stays machine readable.
func InitCLILogger() (*zap.Logger, *zap.SugaredLogger, error) {
	return newConsoleLogger(zapcore.AddSync(os.Stderr), zapcore.WarnLevel)
}

func newConsoleLogger(sink zapcore.WriteSyncer, level zapcore.Level) (*zap.Logger, *zap.SugaredLogger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	core := zapcore.NewCore(consoleEncoder, sink, level)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration.
func InitConfig(sugar *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	} else {
		sugar.Infow("Config file loaded", "path", viper.ConfigFileUsed())
	}

	sugar.Infow("Config loaded",
		"redis_addr", cfg.Redis.Addr,
		"database_enabled", cfg.Database.Enabled,
		"api_port", cfg.API.Port,
		"allowed_tables", len(cfg.Guard.AllowedTables),
		"notify_channels", len(cfg.Notify.Channels),
		"secrets_provider", cfg.Secrets.Provider)

	return cfg, nil
}
