package main

import (
	"flag"
	"fmt"
	"os"

	"uplus-loyalty/internal/config"
	"uplus-loyalty/internal/infra/api/apiv1"
)

// stafftoken prints a bearer token for the counter-staff endpoints.
func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	staffID := flag.String("staff", "", "staff member id (required)")
	outlet := flag.String("outlet", "", "outlet the token is bound to")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.Staff.Secret == "" {
		fmt.Fprintln(os.Stderr, "staff.secret (or LOYALTY_STAFF_SECRET) is not set")
		os.Exit(1)
	}

	tok, err := apiv1.NewStaffAuth(cfg.Staff.Secret, cfg.Staff.TokenTTL).Mint(*staffID, *outlet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
