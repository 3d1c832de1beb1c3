package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tendant/device-gate/pkg/tokengenerator"
)

// Mints admin tokens for the device gate admin API.
func main() {
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key for signing the token")
	issuer := flag.String("issuer", "device-gate", "Issuer of the token")
	audience := flag.String("audience", "device-gate-api", "Audience of the token")
	subject := flag.String("subject", "admin", "Subject of the token (usually user ID)")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token expiry duration (e.g., 30m, 1h, 24h)")
	extraClaimsJSON := flag.String("claims", "{}", "Extra claims in JSON format")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	tokenGen := tokengenerator.NewJwtTokenGenerator(*secret, *issuer, *audience)

	var extraClaims map[string]interface{}
	if err := json.Unmarshal([]byte(*extraClaimsJSON), &extraClaims); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to parse extra claims JSON: %v\n", err)
		os.Exit(1)
	}

	tokenStr, expiryTime, err := tokenGen.GenerateToken(*subject, *expiry, nil, extraClaims)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to generate token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiryTime.Format(time.RFC3339))
	case "debug":
		token, err := tokenGen.ParseToken(tokenStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to parse generated token: %v\n", err)
			os.Exit(1)
		}
		claims, ok := token.Claims.(*tokengenerator.Claims)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: Failed to get claims from token\n")
			os.Exit(1)
		}
		fmt.Printf("=== Token ===\n%s\n\n", tokenStr)
		fmt.Printf("=== Header ===\n")
		headerJSON, _ := json.MarshalIndent(token.Header, "", "  ")
		fmt.Printf("%s\n\n", headerJSON)
		fmt.Printf("=== Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", expiryTime.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}
