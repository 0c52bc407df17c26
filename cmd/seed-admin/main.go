// seed-admin creates or updates the admin user and, when the database is
// empty, a first company to attach it to.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	adminUsername = "boekhoudenAdmin"
	adminName     = "Boekhouden Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required.")
		os.Exit(1)
	}

	var company models.Company
	err := db.WithContext(ctx).Model(&models.Company{}).First(&company).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup company: %v\n", err)
			os.Exit(1)
		}
		company = models.Company{
			ID:      uuid.New(),
			Name:    "Default Company",
			Country: "NL",
		}
		if err := db.WithContext(ctx).Create(&company).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create company: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created company %q (%s)\n", company.Name, company.ID)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			CompanyId: company.ID.String(),
			Username:  adminUsername,
			Name:      adminName,
			Password:  hashedStr,
			Role:      models.UserRoleAdmin,
			IsActive:  utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", adminUsername)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":  hashedStr,
		"name":      adminName,
		"is_active": utils.NewTrue(),
		"role":      models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = config.RemoveRedisKey("User:" + adminUsername)
	fmt.Printf("Updated admin user: username=%q\n", adminUsername)
}
