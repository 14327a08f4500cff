package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"chatbridge/internal/adapter"
	"chatbridge/internal/config"
)

func doctorCmd() *cobra.Command {
	var checkAuth bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your ChatBridge installation",
		Long: `Verifies that ChatBridge's configuration, platform credentials, database,
and listen port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("ChatBridge Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'chatbridge init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Platform credentials
			platformCount := 0
			p := cfg.Platforms
			if p.Slack.Enabled {
				platformCount++
				if p.Slack.BotToken == "" || p.Slack.SigningSecret == "" {
					printFail("Platform: slack", "missing botToken or signingSecret")
					failed++
				} else {
					printPass("Platform: slack", "credentials configured")
					passed++
				}
			}
			if p.WhatsApp.Enabled {
				platformCount++
				if p.WhatsApp.AccessToken == "" || p.WhatsApp.PhoneNumberID == "" {
					printFail("Platform: whatsapp", "missing accessToken or phoneNumberId")
					failed++
				} else if p.WhatsApp.AppSecret == "" {
					printWarn("Platform: whatsapp", "no appSecret, webhook signatures will not be verified")
					warned++
				} else {
					printPass("Platform: whatsapp", "credentials configured")
					passed++
				}
			}
			if p.Telegram.Enabled {
				platformCount++
				if p.Telegram.Token == "" {
					printFail("Platform: telegram", "missing token")
					failed++
				} else {
					printPass("Platform: telegram", "credentials configured")
					passed++
				}
			}
			if p.Discord.Enabled {
				platformCount++
				if p.Discord.Token == "" {
					printFail("Platform: discord", "missing token")
					failed++
				} else {
					printPass("Platform: discord", "credentials configured")
					passed++
				}
			}
			if p.Webchat.Enabled {
				platformCount++
				printPass("Platform: webchat", p.Webchat.Path)
				passed++
			}
			if platformCount == 0 {
				printFail("Platforms", "no platforms enabled")
				failed++
			}

			// 4. Identity store writable
			if cfg.Store.Enabled {
				if err := checkDatabase(cfg.Store.DBPath); err != nil {
					printFail("Database", err.Error())
					failed++
				} else {
					printPass("Database", cfg.Store.DBPath)
					passed++
				}
			}

			// 5. Listen port available
			if err := checkPort(cfg.Server.Port); err != nil {
				printWarn("Listen port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("Listen port", fmt.Sprintf(":%d available", cfg.Server.Port))
				passed++
			}

			// 6. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// 7. Optional live Slack auth check
			if checkAuth && p.Slack.Enabled && p.Slack.BotToken != "" {
				if botID, err := slackAuthTest(cfg); err != nil {
					printFail("Slack auth.test", err.Error())
					failed++
				} else {
					printPass("Slack auth.test", "bot user "+botID)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running ChatBridge.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nChatBridge should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! ChatBridge is ready to run.\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkAuth, "auth", false, "also call the Slack auth.test API with the configured token")
	return cmd
}

func slackAuthTest(cfg *config.Config) (string, error) {
	s, err := adapter.NewSlack(cfg.Platforms.Slack.Platform(), logger)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.AuthTest(ctx)
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
