package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COLLECTOR_SECRET_KEY", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, []string{"Slider", "Heading", "Button", "Image2"}, cfg.Analytics.TrackingElementTypes)
	assert.Equal(t, 15*time.Second, cfg.Analytics.QueryTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("COLLECTOR_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("COLLECTOR_SECRET_KEY", "s3cret")
	t.Setenv("COLLECTOR_STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
}

func TestTrackingElementTypesOverride(t *testing.T) {
	t.Setenv("COLLECTOR_SECRET_KEY", "s3cret")
	t.Setenv("COLLECTOR_TRACKING_ELEMENT_TYPES", "Button, Banner ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Button", "Banner"}, cfg.Analytics.TrackingElementTypes)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "collector", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/collector?sslmode=disable", d.DSN())
}
