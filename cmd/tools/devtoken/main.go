package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/config"
	"github.com/noah-isme/gastro-rechner/internal/identity"
)

func main() {
	var (
		subject = flag.String("sub", "1", "user id carried in the sub claim")
		name    = flag.String("name", "Dev", "display name")
		roles   = flag.String("roles", authz.RoleAuthor, "comma separated roles (administrator, author)")
		ttl     = flag.Duration("ttl", 12*time.Hour, "token lifetime")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("refusing to mint tokens in production")
	}

	tokens, err := identity.NewTokens(identity.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      *ttl,
	})
	if err != nil {
		log.Fatalf("init tokens: %v", err)
	}

	actor := authz.Actor{ID: strings.TrimSpace(*subject), DisplayName: strings.TrimSpace(*name)}
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			actor.Roles = append(actor.Roles, r)
		}
	}

	signed, expiresAt, err := tokens.Issue(actor)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(signed)
	log.Printf("expires %s", expiresAt.Format(time.RFC3339))
}
