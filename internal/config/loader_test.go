package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/sentiment/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"SENTIMENT_CONFIG",
	"SENTIMENT_ADDR",
	"SENTIMENT_PREDICTOR_BASE_URL",
	"SENTIMENT_PREDICTOR_REQUEST_TIMEOUT_MS",
	"SENTIMENT_ADMISSION_CAPACITY",
	"SENTIMENT_DB_DRIVER",
	"SENTIMENT_DB_DSN",
	"SENTIMENT_ANALYTICS_HIGH_CONFIDENCE",
	"SENTIMENT_ANALYTICS_EMPTY_ON_ERROR",
	"SENTIMENT_RATE_LIMIT_RPS",
	"SENTIMENT_CORS_ALLOWED_ORIGINS",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PredictorConnectTimeoutMS, convey.ShouldEqual, 10_000)
				convey.So(cfg.PredictorRequestTimeoutMS, convey.ShouldEqual, 30_000)
				convey.So(cfg.PredictorMaxConnections, convey.ShouldEqual, 50)
				convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverSQLite)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SENTIMENT_ADDR", ":9000")
			_ = os.Setenv("SENTIMENT_PREDICTOR_BASE_URL", "http://ml:5000")
			_ = os.Setenv("SENTIMENT_ADMISSION_CAPACITY", "3")
			_ = os.Setenv("SENTIMENT_ANALYTICS_HIGH_CONFIDENCE", "0.75")
			_ = os.Setenv("SENTIMENT_ANALYTICS_EMPTY_ON_ERROR", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env overrides defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
				convey.So(cfg.PredictorBaseURL, convey.ShouldEqual, "http://ml:5000")
				convey.So(cfg.AdmissionCapacity, convey.ShouldEqual, 3)
				convey.So(cfg.AnalyticsHighConfidence, convey.ShouldEqual, 0.75)
				convey.So(cfg.AnalyticsEmptyOnError, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeTempFile(t, "config.yaml", `
addr: ":9090"
admission_capacity: 7
db_driver: mysql
db_dsn: "user:pass@tcp(db:3306)/sentiment?parseTime=true"
`)
			_ = os.Setenv("SENTIMENT_CONFIG", path)
			_ = os.Setenv("SENTIMENT_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.AdmissionCapacity, convey.ShouldEqual, 7)
				convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverMySQL)
				convey.So(cfg.HistoryMaxPageSize, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := writeTempFile(t, "broken.yaml", `invalid: yaml: content: [`)
			_ = os.Setenv("SENTIMENT_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SENTIMENT_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("SENTIMENT_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When loading config with an unknown driver", func() {
			_ = os.Setenv("SENTIMENT_DB_DRIVER", "oracle")

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SENTIMENT_ADMISSION_CAPACITY", "many")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestLoadDotEnv(t *testing.T) {
	convey.Convey("Given a .env file", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()
		path := writeTempFile(t, ".env", "SENTIMENT_ADMISSION_CAPACITY=4\nSENTIMENT_DB_DSN=file.db\n")

		convey.Convey("When it is loaded before Load", func() {
			_ = os.Setenv("SENTIMENT_DB_DSN", "already-set.db")
			err := config.LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
			convey.So(err, convey.ShouldBeNil)

			cfg, err := config.Load(context.Background())

			convey.Convey("Then its values are visible but do not override the environment", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.AdmissionCapacity, convey.ShouldEqual, 4)
				convey.So(cfg.DBDSN, convey.ShouldEqual, "already-set.db")
			})
		})
	})
}
