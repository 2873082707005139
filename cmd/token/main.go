// Command token mints a bearer token for the prediction history endpoint.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	jwtmw "github.com/Kyalo-Caleb/teabot/internal/platform/jwt"
)

func main() {
	subject := flag.String("subject", "operator", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	scopes := flag.String("scopes", jwtmw.ScopeReadPredictions, "space separated scopes")
	flag.Parse()

	_ = godotenv.Load(".env")

	secret := os.Getenv(jwtmw.EnvKeyJWTSecret)
	if secret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := jwtmw.NewGenerator(secret, *ttl).GenerateToken(*subject, strings.Fields(*scopes)...)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
