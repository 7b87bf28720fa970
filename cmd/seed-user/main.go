package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/database"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

// Provisions a user with a fresh API key. Account management proper lives in
// the external auth service; this tool only exists so local and staging
// environments have a principal to call the payment API with.
func main() {
	name := flag.String("name", "PayFox User", "display name")
	email := flag.String("email", "", "email address (required)")
	role := flag.String("role", "user", "role: user or admin")
	flag.Parse()

	if *email == "" {
		log.Fatal("usage: go run cmd/seed-user/main.go -email <email> [-name <name>] [-role user|admin]")
	}

	env.SetupEnvFile()
	database.SetupDatabase()

	repo := repository.NewUserRepository(database.GetDB())

	user, err := repo.GetByEmail(*email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("user lookup failed: %v", err)
		}
		user = &models.User{
			Name:   *name,
			Email:  *email,
			Role:   models.ParseRole(*role),
			Status: models.STATUS_ACTIVE,
		}
		if err := user.Validate(); err != nil {
			log.Fatalf("invalid user: %v", err)
		}
		if err := repo.Create(user); err != nil {
			log.Fatalf("user creation failed: %v", err)
		}
		log.Printf("created user %d (%s) with role %s", user.ID, user.Email, user.Role)
	} else {
		log.Printf("user %d (%s) already exists, rotating API key", user.ID, user.Email)
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		log.Fatalf("api key generation failed: %v", err)
	}
	if err := repo.Update(user); err != nil {
		log.Fatalf("api key persistence failed: %v", err)
	}

	fmt.Printf("API key for %s (shown once, store it now):\n%s\n", user.Email, rawKey)
}
