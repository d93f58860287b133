package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/IamSamk/Portfolify/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL string `json:"api_base_url"`
	AdminToken string `json:"admin_token"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "deploy":
		err = commandDeploy(args)
	case "accounts":
		err = commandAccounts(args)
	case "account":
		err = commandAccount(args)
	case "reset":
		err = commandReset(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var apiErr apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", apiErr.Suggestion)
		}
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	password := fs.String("password", "", "Admin password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	secret := strings.TrimSpace(*password)
	if secret == "" {
		fmt.Print("Admin password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	token, err := client.Login(ctx, secret)
	if err != nil {
		return err
	}
	cfg.AdminToken = token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func commandDeploy(args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	name := fs.String("name", "", "Project name")
	file := fs.String("file", "", "Path to the HTML file to publish")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	if strings.TrimSpace(*file) == "" {
		return errors.New("--file is required")
	}
	html, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	client, err := apiClient()
	if err != nil {
		return err
	}
	fmt.Printf("deploying %q...\n", *name)
	resp, err := client.Deploy(context.Background(), *name, string(html))
	if err != nil {
		return err
	}
	fmt.Printf("deployed: %s\n", resp.URL)
	fmt.Printf("account: %s (%s)\n", resp.AccountUsed, resp.AccountUsage)
	if resp.Warning != "" {
		fmt.Printf("warning: %s\n", resp.Warning)
	}
	return nil
}

func commandAccounts(args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	fs.Parse(args)

	client, err := apiClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Accounts(ctx)
	if err != nil {
		return err
	}
	for _, account := range resp.Accounts {
		state := "active"
		if !account.Active {
			state = "inactive"
		}
		fmt.Printf("%-12s %-24s %8s %4d%% %s\n",
			account.ID, account.MaskedCredential, account.Usage, account.Percentage, state)
	}
	fmt.Printf("total: %s (%d%%), %d active account(s)\n",
		resp.Summary.OverallUsage, resp.Summary.OverallPercentage, resp.Summary.ActiveAccounts)
	return nil
}

func commandAccount(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: portfolify account [add|remove]")
	}
	sub := args[0]
	switch sub {
	case "add":
		return accountAdd(args[1:])
	case "remove":
		return accountRemove(args[1:])
	default:
		return fmt.Errorf("unknown account command: %s", sub)
	}
}

func accountAdd(args []string) error {
	fs := flag.NewFlagSet("account add", flag.ExitOnError)
	id := fs.String("id", "", "Account identifier")
	credential := fs.String("token", "", "Provider API token")
	teamID := fs.String("team", "", "Provider team identifier")
	max := fs.Int("max", 0, "Deployment quota (default from server)")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	if strings.TrimSpace(*credential) == "" {
		return errors.New("--token is required")
	}

	cfg, client, err := adminClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.AddAccount(ctx, cfg.AdminToken, *id, *credential, *teamID, *max); err != nil {
		return err
	}
	fmt.Printf("account %s registered\n", *id)
	return nil
}

func accountRemove(args []string) error {
	fs := flag.NewFlagSet("account remove", flag.ExitOnError)
	id := fs.String("id", "", "Account identifier")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	cfg, client, err := adminClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.RemoveAccount(ctx, cfg.AdminToken, *id); err != nil {
		return err
	}
	fmt.Printf("account %s removed\n", *id)
	return nil
}

func commandReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	id := fs.String("id", "", "Account identifier (omit to reset all)")
	fs.Parse(args)

	cfg, client, err := adminClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Reset(ctx, cfg.AdminToken, strings.TrimSpace(*id)); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		fmt.Println("all accounts reset")
	} else {
		fmt.Printf("account %s reset\n", *id)
	}
	return nil
}

func apiClient() (*apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return apiclient.New(cfg.APIBaseURL)
}

func adminClient() (cliConfig, *apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, err
	}
	if strings.TrimSpace(cfg.AdminToken) == "" {
		return cliConfig{}, nil, errors.New("not logged in; run: portfolify login")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, client, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: "http://localhost:4000"}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "portfolify", "config.json"), nil
}

func printUsage() {
	fmt.Printf("portfolify CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	portfolify login [--password secret] [--api http://localhost:4000]
	portfolify deploy --name <project> --file <index.html>
	portfolify accounts
	portfolify account add --id <id> --token <token> [--team <team-id>] [--max N]
	portfolify account remove --id <id>
	portfolify reset [--id <account-id>]
	portfolify version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
