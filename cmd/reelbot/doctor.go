package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"reelbot/internal/audit"
	"reelbot/internal/config"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your reelbot setup",
		Long: `Verifies that reelbot's configuration, credentials, listen address and
audit database are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

type doctorReport struct {
	w                      io.Writer
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	fmt.Fprintf(r.w, "  [PASS] %-20s %s\n", check, detail)
	r.passed++
}

func (r *doctorReport) fail(check, detail string) {
	fmt.Fprintf(r.w, "  [FAIL] %-20s %s\n", check, detail)
	r.failed++
}

func (r *doctorReport) warn(check, detail string) {
	fmt.Fprintf(r.w, "  [WARN] %-20s %s\n", check, detail)
	r.warned++
}

func runDoctor(ctx context.Context, w io.Writer, cfgPath string) error {
	fmt.Fprintf(w, "reelbot doctor v%s\n", version)
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	r := &doctorReport{w: w}

	// 1. Config file (optional)
	if _, err := os.Stat(cfgPath); err != nil {
		r.warn("Config file", fmt.Sprintf("not found at %s (using defaults and environment)", cfgPath))
	} else {
		r.pass("Config file", cfgPath)
	}

	// 2. Config loads and validates
	cfg, err := config.Read(cfgPath)
	if err != nil {
		r.fail("Config", err.Error())
		return r.summary()
	}
	if err := config.Validate(cfg); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			r.fail("Config validation", line)
		}
	} else {
		r.pass("Config validation", "valid")
	}

	// 3. Credentials
	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token != "" {
			r.pass("Telegram token", "set")
		}
		if len(cfg.Telegram.AllowFrom) > 0 {
			r.pass("Telegram allowFrom", strings.Join(cfg.Telegram.AllowFrom, ","))
		} else {
			r.warn("Telegram allowFrom", "empty: anyone can use the bot")
		}
	}
	if strings.TrimSpace(cfg.RapidAPI.Key) == "" {
		r.warn("RapidAPI key", "not set: links will be answered with \"RapidAPI key is not configured.\"")
	} else {
		r.pass("RapidAPI key", "set")
	}
	r.pass("RapidAPI endpoint", "https://"+cfg.RapidAPI.Host+cfg.RapidAPI.Path)

	// 4. HTTP listen address
	if cfg.HTTP.Enabled {
		if err := checkListen(cfg.HTTP.Addr()); err != nil {
			r.warn("HTTP address", fmt.Sprintf("%s may be in use: %v", cfg.HTTP.Addr(), err))
		} else {
			r.pass("HTTP address", cfg.HTTP.Addr()+" available")
		}
	}

	// 5. Audit database writable
	if cfg.Audit.Enabled {
		if err := checkAuditDB(ctx, cfg.Audit.DBPath); err != nil {
			r.fail("Audit database", err.Error())
		} else {
			r.pass("Audit database", cfg.Audit.DBPath)
		}
	}

	return r.summary()
}

func (r *doctorReport) summary() error {
	fmt.Fprintf(r.w, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(r.w, "Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		fmt.Fprintf(r.w, "\nPlease fix the failed checks before running reelbot.\n")
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Fprintf(r.w, "\nreelbot should work but consider fixing the warnings.\n")
	} else {
		fmt.Fprintf(r.w, "\nAll checks passed! reelbot is ready to run.\n")
	}
	return nil
}

// checkAuditDB opens the store, which creates the file and runs migrations.
func checkAuditDB(ctx context.Context, dbPath string) error {
	store, err := audit.NewSQLiteStore(dbPath, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := store.Recent(ctx, 1); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	return nil
}

func checkListen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
