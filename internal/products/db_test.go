package products

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

func openPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("WACART_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("WACART_TEST_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("automigrate products: %v", err)
	}
	return conn
}

func TestDecrementStockConcurrentPostgres(t *testing.T) {
	conn := openPostgresTestDB(t)
	repo := NewRepository(conn)
	product := mustCreateTestProduct(t, conn, uuid.New(), "C"+uuid.NewString()[:6], 5)
	t.Cleanup(func() { conn.Delete(&models.Product{}, "id = ?", product.ID) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.DecrementStock(context.Background(), product.ID, 1, product.CreatedAt)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reloaded, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.Stock)
}
