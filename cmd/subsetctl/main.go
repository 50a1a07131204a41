// Command subsetctl manages the user store directly on disk. It is meant for
// operators working on the same host as the service; remote administration
// goes through the /v1/admin endpoints instead.
//
// Usage:
//
//	subsetctl -db users.json list
//	subsetctl -db users.json details alice
//	subsetctl -db users.json register -user alice -password s3cret -email alice@example.com
//	subsetctl -db users.json update-limits -user alice -daily 50 -monthly 500
//	subsetctl -db users.json set-tier -user alice -tier premium
//	subsetctl -db users.json activate -user alice
//	subsetctl -db users.json deactivate -user alice
//	subsetctl -db users.json create-admin -user admin -password s3cret -email ops@example.com
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hydromet/imerg-subset-service/internal/quota"
)

func main() {
	dbPath := flag.String("db", "users.json", "path to the user store")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: subsetctl [-db path] <list|details|register|update-limits|set-tier|activate|deactivate|create-admin> [options]")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger, err := quota.Open(*dbPath, logger)
	if err != nil {
		fatal("open user store: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "list":
		runList(ledger)
	case "details":
		runDetails(ledger, args)
	case "register":
		runRegister(ledger, args, false)
	case "create-admin":
		runRegister(ledger, args, true)
	case "update-limits":
		runUpdateLimits(ledger, args)
	case "set-tier":
		runSetTier(ledger, args)
	case "activate":
		runActive(ledger, args, true)
	case "deactivate":
		runActive(ledger, args, false)
	default:
		fatal("unknown command %q", cmd)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runList(ledger *quota.Ledger) {
	users := ledger.ListUsers()
	if len(users) == 0 {
		fmt.Println("no users registered")
		return
	}
	fmt.Printf("%-20s %-30s %-10s %12s %14s %8s\n", "USERNAME", "EMAIL", "TIER", "DAILY", "MONTHLY", "ACTIVE")
	for _, u := range users {
		fmt.Printf("%-20s %-30s %-10s %5d/%-6d %7d/%-6d %8v\n",
			u.Username, u.Email, u.Tier, u.DailyUsed, u.DailyLimit, u.MonthlyUsed, u.MonthlyLimit, u.IsActive)
	}
}

func runDetails(ledger *quota.Ledger, args []string) {
	if len(args) != 1 {
		fatal("usage: subsetctl details <username>")
	}
	info, ok := ledger.Info(args[0])
	if !ok {
		fatal("user %q not found", args[0])
	}
	fmt.Printf("username:        %s\n", info.Username)
	fmt.Printf("email:           %s\n", info.Email)
	fmt.Printf("tier:            %s\n", info.Tier)
	fmt.Printf("active:          %v\n", info.IsActive)
	fmt.Printf("created:         %s\n", info.CreatedAt)
	fmt.Printf("daily usage:     %d/%d (%d remaining)\n", info.DailyUsed, info.DailyLimit, info.DailyRemaining)
	fmt.Printf("monthly usage:   %d/%d (%d remaining)\n", info.MonthlyUsed, info.MonthlyLimit, info.MonthlyRemaining)
	fmt.Printf("total downloads: %d\n", info.TotalDownloads)
}

func runRegister(ledger *quota.Ledger, args []string, admin bool) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	user := fs.String("user", "", "username")
	password := fs.String("password", "", "password")
	email := fs.String("email", "", "email address")
	daily := fs.Int("daily", 10, "daily download limit")
	monthly := fs.Int("monthly", 100, "monthly download limit")
	fs.Parse(args)

	if *user == "" || *password == "" {
		fatal("register requires -user and -password")
	}
	if admin {
		*daily, *monthly = 100, 1000
	}
	if err := ledger.Register(*user, *password, *email, *daily, *monthly); err != nil {
		fatal("register %q: %v", *user, err)
	}
	fmt.Printf("registered %q (daily %d, monthly %d)\n", *user, *daily, *monthly)
}

func runUpdateLimits(ledger *quota.Ledger, args []string) {
	fs := flag.NewFlagSet("update-limits", flag.ExitOnError)
	user := fs.String("user", "", "username")
	daily := fs.Int("daily", -1, "new daily limit (-1 keeps current)")
	monthly := fs.Int("monthly", -1, "new monthly limit (-1 keeps current)")
	fs.Parse(args)

	if *user == "" {
		fatal("update-limits requires -user")
	}
	var dp, mp *int
	if *daily >= 0 {
		dp = daily
	}
	if *monthly >= 0 {
		mp = monthly
	}
	if dp == nil && mp == nil {
		fatal("update-limits requires -daily or -monthly")
	}
	if !ledger.SetLimits(*user, dp, mp) {
		fatal("user %q not found", *user)
	}
	fmt.Printf("updated limits for %q\n", *user)
}

func runSetTier(ledger *quota.Ledger, args []string) {
	fs := flag.NewFlagSet("set-tier", flag.ExitOnError)
	user := fs.String("user", "", "username")
	tierName := fs.String("tier", "", "tier: free, standard, or premium")
	fs.Parse(args)

	if *user == "" || *tierName == "" {
		fatal("set-tier requires -user and -tier")
	}
	tier, err := quota.ParseTier(*tierName)
	if err != nil {
		fatal("%v", err)
	}
	if !ledger.SetTier(*user, tier) {
		fatal("user %q not found", *user)
	}
	plan := tier.Plan()
	fmt.Printf("set %q to %s (daily %d, monthly %d)\n", *user, tier, plan.DailyLimit, plan.MonthlyLimit)
}

func runActive(ledger *quota.Ledger, args []string, active bool) {
	fs := flag.NewFlagSet("activate", flag.ExitOnError)
	user := fs.String("user", "", "username")
	fs.Parse(args)

	if *user == "" {
		fatal("requires -user")
	}
	var changed bool
	if active {
		changed = ledger.Activate(*user)
	} else {
		changed = ledger.Deactivate(*user)
	}
	if !changed {
		fatal("user %q not found", *user)
	}
	fmt.Printf("user %q active=%v\n", *user, active)
}
