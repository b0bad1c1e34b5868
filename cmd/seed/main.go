package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"homeaura-subscription/internal/config"
	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/infra/api"
	pg "homeaura-subscription/internal/infra/db/postgres"
	"homeaura-subscription/internal/infra/logging"
	"homeaura-subscription/internal/usecase"
)

// seed creates an account (optionally an admin) and prints a bearer token for it.
// An existing email is reused after checking the password.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	name := flag.String("name", "Admin", "display name")
	email := flag.String("email", "", "account email (required)")
	password := flag.String("password", "", "account password (required)")
	phone := flag.String("phone", "9000000000", "primary phone")
	admin := flag.Bool("admin", false, "create the account with the admin role")
	grant := flag.String("grant", "", "plan id to activate without payment (admin accounts only)")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("-email and -password are required")
	}

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database.URL, 10*time.Second)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	userRepo := pg.NewUserRepo(pool)
	tm := pg.NewTxManager(pool)
	accessUC := usecase.NewAccessUseCase(userRepo, logger)
	userUC := usecase.NewUserUseCase(userRepo, accessUC, tm, logger)

	role := model.RoleUser
	if *admin {
		role = model.RoleAdmin
	}
	usr, err := userUC.Register(ctx, usecase.RegisterInput{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Phone:    model.Phone{Primary: *phone},
		Role:     role,
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		usr, err = userUC.Authenticate(ctx, *email, *password)
		if err != nil {
			log.Fatalf("account exists and login failed: %v", err)
		}
		fmt.Printf("account already present: %s (role=%s)\n", usr.ID, usr.Role)
	case err != nil:
		log.Fatalf("register: %v", err)
	default:
		fmt.Printf("seeded: %s <%s> (id=%s, role=%s)\n", usr.Name, usr.Email, usr.ID, usr.Role)
	}

	if *grant != "" {
		// Grant needs the payment collaborators only for renewals; none are used here.
		subUC := usecase.NewSubscriptionUseCase(userRepo, pg.NewPaymentRepo(pool), tm, nil, nil, usecase.SubscriptionConfig{}, logger)
		sub, err := subUC.Grant(ctx, usr.ID, usr.ID, *grant)
		if err != nil {
			log.Fatalf("grant %s: %v", *grant, err)
		}
		fmt.Printf("granted: %s until %s\n", sub.PlanName, sub.EndDate.Format(time.RFC3339))
	}

	tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Mint(usr.ID, usr.Role)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Printf("token: %s\n", tok)
}
