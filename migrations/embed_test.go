package migrations

import (
	"strings"
	"testing"

	"github.com/hospital/hms/internal/platform/db"
)

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := db.NewMigratorFS(nil, FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 embedded migrations, got %d", len(migrations))
	}
	for i, mig := range migrations {
		if mig.Version != i+1 {
			t.Errorf("migration %s: expected version %d, got %d", mig.Name, i+1, mig.Version)
		}
	}
	if !strings.Contains(migrations[1].SQL, "appointment_doctor_slot_key") {
		t.Error("scheduling migration must name the doctor slot constraint")
	}
	if !strings.Contains(migrations[0].SQL, "users_username_key") {
		t.Error("users migration must name the username constraint")
	}
}
