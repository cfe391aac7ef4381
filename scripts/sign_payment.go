//go:build ignore

// Prints a shopper bearer token and, when an order id is given, the payment
// signature the gateway would send back. Both use the secrets from the
// environment.
//
//	go run scripts/sign_payment.go -user user-1 -order order_ABC -payment pay_XYZ
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/payment"
)

func main() {
	userID := flag.String("user", "local-user", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	orderID := flag.String("order", "", "remote order id")
	paymentID := flag.String("payment", "pay_local_001", "remote payment id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	token, err := middleware.SignToken(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Authorization: Bearer %s\n", token)

	if *orderID != "" {
		signature := payment.NewSignatureVerifier(cfg.Payment.KeySecret).Sign(*orderID, *paymentID)
		fmt.Printf(`{"remoteOrderId":%q,"remotePaymentId":%q,"signature":%q}`+"\n", *orderID, *paymentID, signature)
	}
}
