package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"mealrun/internal/infrastructure/mysql"
)

// SetupTestDB abre la BD de prueba.
// Espera que exista una BD MySQL en localhost:3306 llamada 'mealrun_test'
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := "root:@tcp(localhost:3306)/mealrun_test?parseTime=true&loc=UTC&clientFoundRows=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Verify connection
	err = db.Ping()
	if err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// SetupTestTables crea las tablas necesarias para los tests y las deja vacías
func SetupTestTables(t *testing.T, db *sql.DB) {
	if err := mysql.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	truncate(t, db)
}

// CleanupTestDB limpia la BD de prueba
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}
	truncate(t, db)
	db.Close()
}

func truncate(t *testing.T, db *sql.DB) {
	for _, table := range mysql.TableNames() {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
