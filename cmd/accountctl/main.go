// Command accountctl is an interactive admin CLI over the OAuth account
// pool: show the number of loaded accounts, force a reload, clear sticky
// session bindings, and probe one token acquisition. It does not list
// individual accounts or show lockout/quota state. Grounded on klein/main.go's flag-parsing
// + promptui.Select interactive-menu pattern, adapted from a coding-agent
// REPL to a pool admin tool.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/manifoldco/promptui"

	"github.com/fpt/klein-cli/internal/config"
	"github.com/fpt/klein-cli/internal/server"
	"github.com/fpt/klein-cli/internal/tokenpool"
	pkgLogger "github.com/fpt/klein-cli/pkg/logger"
)

type menuItem struct {
	Name        string
	Description string
}

func main() {
	configPath := flag.String("config", "", "Path to proxy config")
	flag.Parse()

	pkgLogger.SetGlobalLoggerWithConsoleWriter(pkgLogger.LogLevelInfo, os.Stdout)

	cfg, err := config.LoadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	refresher := server.NewGoogleOAuthRefresher(httpClient, os.Getenv("GOOGLE_OAUTH_CLIENT_ID"), os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"))
	resolver := server.NewCloudCodeProjectResolver(httpClient)

	pool := tokenpool.New(cfg.Accounts.Dir, refresher, resolver, tokenpool.ModeBalance)
	if err := pool.LoadAccounts(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load accounts from %s: %v\n", cfg.Accounts.Dir, err)
		os.Exit(1)
	}

	ctx := context.Background()
	runMenu(ctx, pool, cfg)
}

func runMenu(ctx context.Context, pool *tokenpool.Pool, cfg *config.Settings) {
	items := []menuItem{
		{"list", "Show the number of loaded accounts"},
		{"reload", "Reload accounts from disk"},
		{"clear-sessions", "Clear all sticky session bindings"},
		{"probe", "Acquire one token to exercise the selection algorithm"},
		{"quit", "Exit"},
	}

	for {
		prompt := promptui.Select{
			Label: "accountctl",
			Items: items,
			Templates: &promptui.SelectTemplates{
				Label:    "{{ . }}?",
				Active:   "▸ {{ .Name | cyan }} - {{ .Description | faint }}",
				Inactive: "  {{ .Name | cyan }} - {{ .Description | faint }}",
				Selected: "{{ .Name | cyan }}",
			},
			Size: len(items),
		}

		i, _, err := prompt.Run()
		if err != nil {
			if err == promptui.ErrInterrupt {
				fmt.Println("\nbye")
				return
			}
			fmt.Fprintf(os.Stderr, "menu error: %v\n", err)
			return
		}

		switch items[i].Name {
		case "list":
			fmt.Printf("pool size: %d\n", pool.Size())
		case "reload":
			if err := pool.LoadAccounts(); err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
				continue
			}
			fmt.Printf("reloaded, pool size now %d\n", pool.Size())
		case "clear-sessions":
			pool.ClearAllSessions()
			fmt.Println("sticky session bindings cleared")
		case "probe":
			sel, err := pool.GetToken(ctx, "", true, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "token acquisition failed: %v\n", err)
				continue
			}
			fmt.Printf("selected account %s (%s), project=%s\n", sel.AccountID, sel.Email, sel.ProjectID)
		case "quit":
			return
		}

		fmt.Print("\npress enter to continue...")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}
}
