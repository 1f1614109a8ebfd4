package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforge/internal/config"
	"skuforge/internal/core/sku"
	"skuforge/internal/domain/assignment"
	v1 "skuforge/internal/infrastructure/http/v1"
	"skuforge/internal/infrastructure/storage/memory"
	"skuforge/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{Mode: "test"},
		Sequence:    config.SequenceConfig{Backend: config.BackendMemory, Namespace: "skus", KeyPrefix: "seq_", Atomic: true, Format: "hex"},
		Catalog:     config.CatalogConfig{Backend: config.BackendMemory},
		Assign:      config.AssignConfig{Concurrency: 2},
		Idempotency: config.IdempotencyConfig{Enabled: true},
		Auth:        config.AuthConfig{Enabled: true, APIKey: "key", APISecret: "secret"},
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Journal)
	assert.Nil(t, a.Shopify)
	assert.IsType(t, &memory.SequenceStore{}, a.Store)
	assert.IsType(t, &memory.Catalog{}, a.Catalog)
	assert.IsType(t, &memory.IdempotencyStore{}, a.Idempotency)
	assert.NotNil(t, a.Sessions)
	assert.Equal(t, sku.FormatHex, a.Formatter.Version())

	rc := a.RouterConfig()
	assert.Nil(t, rc.History)
	assert.NotNil(t, rc.SessionValidator)
	assert.Empty(t, rc.ReadinessChecks)
}

func TestNew_ServiceAssigns(t *testing.T) {
	cfg := memoryConfig()
	cfg.Sequence.Initial = 9
	cfg.Sequence.Format = "decimal"

	a, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	a.Catalog.(*memory.Catalog).Put(assignment.Item{
		ID: "p1", Vendor: "Acme Tools", ProductType: "Bag",
		Targets: []assignment.Target{{ID: "v1"}},
	})

	res := a.Service.AssignByID(context.Background(), "p1", false)
	require.Equal(t, assignment.OutcomeUpdated, res.Outcome, res.Errors)
	assert.Equal(t, "BAG-ACT-010", res.Changes[0].SKU)
}

func TestNew_RouterRequiresSession(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logger.Nop())
	require.NoError(t, err)

	router := v1.NewRouter(a.RouterConfig())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/skus/preview?type=Bag&vendor=Acme", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNew_PostgresConnectFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Sequence.Backend = config.BackendPostgres
	cfg.Database.URL = "not a dsn ::"

	_, err := New(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}
