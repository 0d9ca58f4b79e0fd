package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cursivehq/revenue/internal/config"
	"github.com/cursivehq/revenue/internal/domain/enums"
	"github.com/cursivehq/revenue/internal/pkg/validate"
	redrepo "github.com/cursivehq/revenue/internal/repo/redis"
	authsvc "github.com/cursivehq/revenue/internal/services/auth"
)

func main() {
	subject := flag.String("sub", "", "admin subject, usually an email")
	role := flag.String("role", string(enums.AdminRoleOwner), "admin role")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to auth.jwt_access_ttl")
	revoke := flag.String("revoke", "", "revoke the given access token instead of issuing one")
	flag.Parse()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	service := authsvc.NewService(authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL), cfg.Auth.AdminRoles)

	if validate.Required(*revoke) {
		client := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		service.AttachRevocations(redrepo.NewTokenRevocationRepo(client))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := service.Revoke(ctx, *revoke); err != nil {
			log.Fatalf("revoke token: %v", err)
		}
		fmt.Println("revoked")
		return
	}

	if !validate.Required(*subject) {
		log.Fatal("use -sub to pass the admin subject")
	}

	token, claims, err := service.IssueAdminToken(*subject, *role, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "sid=%s role=%s expires=%s\n", claims.SID, claims.Role, claims.ExpiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
