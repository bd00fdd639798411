package mysql

import (
	"strings"
	"testing"
	"time"

	appDomain "accelerator-portal/internal/domain/application"
	"accelerator-portal/pkg/id"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&appDomain.Application{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func makeApplication(name string, submitted time.Time) *appDomain.Application {
	return &appDomain.Application{
		ApplicationID:      id.NewID32(),
		Email:              "founder@" + strings.ToLower(name) + ".io",
		Phone:              "+62 811 000 000",
		StartupName:        name,
		TeamSize:           "2",
		Sector:             "Fintech",
		Description:        strings.Repeat("d", 100),
		Problem:            "p",
		Differentiation:    "d",
		PotentialCustomers: "c",
		Milestones:         "m",
		Progress:           3,
		SupportNeeded:      appDomain.SupportSet{"Mentorship", "Funding"},
		Status:             appDomain.StatusPending,
		SubmissionDate:     submitted.UTC(),
		StatusUpdatedAt:    submitted.UTC(),
	}
}
