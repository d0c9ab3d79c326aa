package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-oidc/pkg/bootstrap"
	"github.com/tendant/simple-oidc/pkg/config"
	"github.com/tendant/simple-oidc/pkg/tokengenerator"
)

// Mints tokens with the server's signing configuration (JWT_* variables), or
// checks one with -verify. Meant for local testing of relying parties.
func main() {
	subject := flag.String("subject", "test-subject", "Subject of the token (user subject)")
	audience := flag.String("audience", "test-client", "Audience of the token (client id)")
	scope := flag.String("scope", "openid profile email", "Scope granted to the access token")
	userType := flag.String("user-type", "customer", "userType claim")
	email := flag.String("email", "", "email claim of the id token")
	name := flag.String("name", "", "name claim of the id token")
	expiry := flag.Duration("expiry", 0, "Token lifetime (defaults to TOKEN_EXPIRY)")
	verify := flag.String("verify", "", "Validate this token instead of minting one")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	var cfg config.JWTConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fail("Failed to read JWT configuration", err)
	}
	if *expiry > 0 {
		cfg.TokenExpiry = *expiry
	}

	issuer, _, err := bootstrap.NewIssuer(cfg)
	if err != nil {
		fail("Failed to create token issuer", err)
	}

	if *verify != "" {
		claims, err := issuer.Validate(*verify)
		if err != nil {
			fail("Token is not valid", err)
		}
		printJSON("Token Claims", claims)
		return
	}

	accessToken, exp, err := issuer.IssueAccessToken(*subject, *audience, *scope, *userType)
	if err != nil {
		fail("Failed to generate access token", err)
	}
	idToken, _, err := issuer.IssueIDToken(*subject, *audience, tokengenerator.ProfileClaims{Email: *email, Name: *name})
	if err != nil {
		fail("Failed to generate id token", err)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(accessToken)
	case "full":
		fmt.Printf("Access token: %s\nID token: %s\nAlgorithm: %s\nExpires: %s\n",
			accessToken, idToken, issuer.Algorithm(), exp.Format(time.RFC3339))
	case "debug":
		claims, err := issuer.Validate(accessToken)
		if err != nil {
			fail("Failed to parse generated token", err)
		}
		fmt.Printf("=== Access Token ===\n%s\n\n", accessToken)
		printJSON("Access Token Claims", claims)
		fmt.Printf("=== ID Token ===\n%s\n\n", idToken)
		fmt.Printf("Expires: %s\n", exp.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}

func printJSON(title string, v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("=== %s ===\n%s\n\n", title, out)
}

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
