package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ideaflow/internal/app"
	"ideaflow/internal/config"
	"ideaflow/internal/db"
	"ideaflow/internal/domain"
	"ideaflow/internal/logging"
	"ideaflow/internal/repo"
	"ideaflow/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ideaflow",
	Short: "ideaflow CLI",
	Long: `ideaflow manages product ideas from first draft to decision.
Core concepts:
- Workspace: a directory holding ideaflow.yml, the .ideaflow database and (fs driver) stored attachments.
- Idea: moves Geração -> Em Definição -> Pronta para Avaliação -> Aprovada/Arquivada.
- Owner/author: only they change an idea's status; anyone may claim an unowned open idea.
- Evaluation: scores plus a decision; the only way out of Pronta para Avaliação.
- Definition: the structured document whose filled fields give the progress percentage.
- Event log: every change is recorded, view it with 'ideaflow log tail'.`,
	SilenceUsage: true,
}

func main() {
	loadDotEnv()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadDotEnv reads .env from the working directory when present.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}
}

func initConfig() {
	viper.SetEnvPrefix("IDEAFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor", "", "acting user id or email")
	flags.String("log-level", "", "log level (overrides config)")
	flags.String("jwt-secret", "", "JWT signing secret (overrides config)")
	flags.String("session-store", "", "session store: memory or redis (overrides config)")
	flags.String("redis-url", "", "redis URL for the session store (overrides config)")
	flags.String("storage-driver", "", "object store: fs or minio (overrides config)")
	for _, name := range []string{"workspace", "json", "actor", "log-level", "jwt-secret", "session-store", "redis-url", "storage-driver"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(ideaCmd())
	rootCmd.AddCommand(voteCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(definitionCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(attachmentCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// loadConfig reads the workspace config and applies flag and IDEAFLOW_* overrides.
func loadConfig(workspace string) (*config.Config, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("session-store"); v != "" {
		cfg.Auth.SessionStore = v
	}
	if v := viper.GetString("redis-url"); v != "" {
		cfg.Auth.RedisURL = v
	}
	if v := viper.GetString("storage-driver"); v != "" {
		cfg.Storage.Driver = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := loadConfig(workspace)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	ws, err := app.Open(ctx, app.Options{Workspace: workspace, Config: cfg, Log: log})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

// actorID resolves --actor. Emails are looked up, anything else is taken as a user id.
func actorID(ctx context.Context, ws *app.Workspace) (string, error) {
	actor := strings.TrimSpace(viper.GetString("actor"))
	if actor == "" {
		return "", fmt.Errorf("--actor (or IDEAFLOW_ACTOR) is required")
	}
	if !strings.Contains(actor, "@") {
		return actor, nil
	}
	u, err := ws.Engine.Repo.GetUserByEmail(ctx, nil, actor)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("no user with email %s", actor)
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create ideaflow.yml and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				abs, _ := filepath.Abs(workspace)
				fmt.Printf("Initialized ideaflow workspace in %s\n", abs)
				fmt.Println("Set auth.jwt_secret in ideaflow.yml (or IDEAFLOW_JWT_SECRET) before 'ideaflow serve'.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing ideaflow.yml")
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			cfg.Auth.JWTSecret = redact(cfg.Auth.JWTSecret)
			cfg.Storage.Minio.SecretKey = redact(cfg.Storage.Minio.SecretKey)
			return printJSON(cfg)
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate ideaflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfgCmd
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				svc, err := ws.Auth()
				if err != nil {
					return err
				}
				if addr == "" {
					addr = ws.Config.Server.Addr
				}
				if basePath == "" {
					basePath = ws.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{
					Engine:      ws.Engine,
					Auth:        svc,
					BasePath:    basePath,
					CORSOrigins: ws.Config.Server.CORSOrigins,
					Log:         ws.Log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{
					Addr:         addr,
					Handler:      handler,
					ReadTimeout:  ws.Config.Server.ReadTimeout,
					WriteTimeout: ws.Config.Server.WriteTimeout,
				}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				ws.Log.WithField("addr", addr).Info("server starting")
				fmt.Printf("Serving ideaflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Idea counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				counts, err := ws.Engine.CountByStatus(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Status", "Ideas"})
				for _, s := range domain.Statuses {
					tw.AppendRow(table.Row{s, counts.ByStatus[s]})
				}
				tw.AppendFooter(table.Row{"Total", counts.Total})
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Event log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id filter")
	return cmd
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	rows, err := keyValueRows(v)
	if err != nil {
		return err
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRows(rows)
	tw.Render()
	return nil
}

// keyValueRows flattens the JSON form of v into one row per top-level field,
// in field order. Nested values are shown as compact JSON and nulls as blanks.
func keyValueRows(v any) ([]table.Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return []table.Row{{"value", string(b)}}, nil
	}
	var rows []table.Row
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		rows = append(rows, table.Row{key, rawValue(raw)})
	}
	return rows, nil
}

func rawValue(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
