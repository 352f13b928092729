package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "storefront", cfg.DBName)
	assert.Equal(t, "storefront", cfg.OTELServiceName)
	assert.True(t, cfg.OTELExporterOTLPInsecure)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.False(t, cfg.OTELExporterOTLPInsecure)
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "3306",
		DBUser:     "root",
		DBPassword: "secret",
		DBName:     "storefront",
	}
	assert.Equal(t, "root:secret@tcp(localhost:3306)/storefront?parseTime=true&charset=utf8mb4", cfg.GetDSN())
}

func TestGetAppPortInt(t *testing.T) {
	assert.Equal(t, 9090, (&Config{AppPort: "9090"}).GetAppPortInt())
	assert.Equal(t, 8080, (&Config{AppPort: "not-a-port"}).GetAppPortInt())
}
