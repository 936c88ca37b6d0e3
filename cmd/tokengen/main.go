package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tendant/simple-access/pkg/hasher"
	"github.com/tendant/simple-access/pkg/tokengenerator"
)

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "Secret key for signing and verifying tokens")
	issuer := flag.String("issuer", "simple-access", "Issuer of the token")
	accountID := flag.Int64("account", 0, "Account id placed in the subject claim")
	kind := flag.String("type", "access", "Token type: access, refresh or reset_password")
	roles := flag.String("roles", "", "Comma separated role names embedded in access tokens")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	verify := flag.String("verify", "", "Verify this token and print its claims instead of issuing one")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt digest of this password and exit")
	flag.Parse()

	if *hashPassword != "" {
		digest, err := hasher.NewBcryptHasher().Hash(*hashPassword)
		if err != nil {
			fail("Failed to hash password", err)
		}
		fmt.Println(digest)
		return
	}

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Error: -secret or JWT_SECRET is required")
		os.Exit(1)
	}
	gen := tokengenerator.NewJwtTokenGenerator(*secret, *issuer,
		tokengenerator.WithAccessTokenExpiry(*expiry),
		tokengenerator.WithRefreshTokenExpiry(*expiry),
		tokengenerator.WithResetTokenExpiry(*expiry),
	)

	if *verify != "" {
		claims, err := gen.Verify(*verify)
		if err != nil {
			fail("Token rejected", err)
		}
		out, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Println(string(out))
		return
	}

	if *accountID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -account is required")
		flag.Usage()
		os.Exit(1)
	}

	var (
		issued tokengenerator.IssuedToken
		err    error
	)
	switch tokengenerator.TokenType(*kind) {
	case tokengenerator.TokenTypeAccess:
		var claims []tokengenerator.RoleClaim
		for _, name := range strings.Split(*roles, ",") {
			if name = strings.TrimSpace(name); name != "" {
				claims = append(claims, tokengenerator.RoleClaim{Name: name})
			}
		}
		issued, err = gen.CreateAccessToken(*accountID, claims)
	case tokengenerator.TokenTypeRefresh:
		issued, err = gen.CreateRefreshToken(*accountID)
	case tokengenerator.TokenTypeReset:
		issued, err = gen.CreateResetToken(*accountID)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown token type: %s\n", *kind)
		os.Exit(1)
	}
	if err != nil {
		fail("Failed to generate token", err)
	}

	fmt.Printf("Token: %s\nJTI: %s\nExpires: %s\n", issued.Token, issued.JTI, issued.ExpiresAt.Format(time.RFC3339))
}
