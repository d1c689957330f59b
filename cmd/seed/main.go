package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"papertrade/internal/database"
)

// Seeds a demo account with cash and a starter position so the API has
// something to show right after a fresh migration.
func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := database.New(db, logrus.New())

	username := "demo"
	password := "demo-password-1!"
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	userID, err := repo.CreateUser(ctx, username, string(hash), decimal.NewFromInt(10000))
	if err != nil {
		log.Fatalf("create demo user: %v", err)
	}

	// a starter position at a fixed reference price
	if err := repo.ExecuteBuy(ctx, userID, "AAPL", 10, decimal.RequireFromString("150.00")); err != nil {
		log.Fatalf("seed starter position: %v", err)
	}

	fmt.Printf("Seeded user %q (id %d) with password %q\n", username, userID, password)
	fmt.Println("Log in via POST /login and explore /portfolio and /history.")
}
