// aliasctl 管理基于真实邮箱 plus / dot 寻址的站点别名，数据保存在本地 SQLite。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"datavault/backend/internal/sitealias"
)

// clientConfig 客户端配置，全部来自环境变量
type clientConfig struct {
	DatabasePath string `env:"DATAVAULT_CLIENT_DB" envDefault:"./data/datavault-client.db"`
	Output       string `env:"DATAVAULT_CLIENT_OUTPUT" envDefault:"table"` // table 或 json
}

func loadConfig() (*clientConfig, error) {
	_ = godotenv.Load()

	cfg := &clientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Output != "table" && cfg.Output != "json" {
		return nil, fmt.Errorf("DATAVAULT_CLIENT_OUTPUT must be table or json, got %q", cfg.Output)
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "create data dir: %v\n", err)
			os.Exit(1)
		}
	}
	store, err := sitealias.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	cli := &cli{svc: sitealias.NewService(store), out: os.Stdout, json: cfg.Output == "json"}
	if err := cli.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

const usage = `usage: aliasctl <command> [args]

commands:
  generate [-format standard|dots|clean] <site>   create a new alias for a site
  get <site>                                      show the remembered alias
  list                                            list all site aliases
  delete <site>                                   forget a site alias
  target [email]                                  show or set the real address
  settings [-format f] [-compat true|false]       show or update settings`

var errUsage = errors.New("invalid arguments")

type cli struct {
	svc  *sitealias.Service
	out  io.Writer
	json bool
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(c.out, usage)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "generate":
		fs := flag.NewFlagSet("generate", flag.ContinueOnError)
		fs.SetOutput(c.out)
		formatName := fs.String("format", "", "alias format")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		format, err := sitealias.ParseFormat(*formatName)
		if err != nil {
			return err
		}
		alias, err := c.svc.Generate(ctx, fs.Arg(0), format)
		if err != nil {
			return err
		}
		return c.printAliases(*alias)

	case "get":
		if len(rest) != 1 {
			return errUsage
		}
		alias, err := c.svc.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		return c.printAliases(*alias)

	case "list":
		aliases, err := c.svc.List(ctx)
		if err != nil {
			return err
		}
		return c.printAliases(aliases...)

	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		return c.svc.Delete(ctx, rest[0])

	case "target":
		if len(rest) == 1 {
			return c.svc.SetTargetEmail(ctx, rest[0])
		}
		email, err := c.svc.TargetEmail(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, email)
		return nil

	case "settings":
		return c.settings(ctx, rest)

	default:
		fmt.Fprintln(c.out, usage)
		return errUsage
	}
}

func (c *cli) settings(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.SetOutput(c.out)
	formatName := fs.String("format", "", "default alias format")
	compat := fs.String("compat", "", "compatibility mode (true or false)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var update sitealias.SettingsUpdate
	if *formatName != "" {
		format, err := sitealias.ParseFormat(*formatName)
		if err != nil {
			return err
		}
		update.DefaultFormat = &format
	}
	if *compat != "" {
		on, err := strconv.ParseBool(*compat)
		if err != nil {
			return fmt.Errorf("compat: %w", err)
		}
		update.CompatibilityMode = &on
	}
	if update.DefaultFormat != nil || update.CompatibilityMode != nil {
		if err := c.svc.UpdateSettings(ctx, update); err != nil {
			return err
		}
	}

	settings, err := c.svc.Settings(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return json.NewEncoder(c.out).Encode(settings)
	}
	fmt.Fprintf(c.out, "target:        %s\nformat:        %s\ncompatibility: %t\n",
		settings.TargetEmail, settings.DefaultFormat, settings.CompatibilityMode)
	return nil
}

func (c *cli) printAliases(aliases ...sitealias.SiteAlias) error {
	if c.json {
		return json.NewEncoder(c.out).Encode(aliases)
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tALIAS\tFORMAT\tLAST USED")
	for _, a := range aliases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Domain, a.Address, a.Format, a.LastUsed.Local().Format(time.DateTime))
	}
	return w.Flush()
}
