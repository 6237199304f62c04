package main

import (
	"context"
	"fmt"
	"log"
	"order_engine/internal/auth"
	"order_engine/internal/config"
	"order_engine/internal/database"
	"order_engine/internal/migrations"
	"order_engine/internal/repository"
)

func main() {
	fmt.Println("Initializing database...")

	cfg := config.Load()
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	db, err := database.Initialize(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := migrations.RunMigrations(db, logger); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	store := repository.NewStore(db)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	created, err := migrations.SeedDemoData(context.Background(), store, logger)
	if err != nil {
		log.Fatal("Failed to seed demo data:", err)
	}
	if len(created) == 0 {
		fmt.Println("Demo tenant already seeded")
		return
	}

	fmt.Printf("Tenant: %s\n", migrations.DemoTenantID)
	fmt.Printf("Password for every user: %s\n", migrations.DemoPassword)
	for _, user := range created {
		token, err := tokens.Sign(*user)
		if err != nil {
			log.Fatal("Failed to sign token:", err)
		}
		fmt.Printf("%-8s %-8s %s\n", user.Username, user.Role, token)
	}
	fmt.Println("Database initialization completed successfully!")
}
