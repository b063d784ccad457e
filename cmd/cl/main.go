package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"checkline/internal/config"
	"checkline/internal/db"
	"checkline/internal/domain"
	"checkline/internal/engine"
	"checkline/internal/migrate"
	"checkline/internal/repo"
	"checkline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Checkline CLI",
	Long: `Checkline tracks checklist work from template to signed-off round.
- Workspace: your .checkline directory holding the database; checkline.yml is optional.
- Checklist: a reusable template of items (checkbox, text, number, select) built by a supervisor.
- Assignment: a checklist delegated to one collaborator, with priority and due date.
- Execution: one run of an assignment; it records responses, notes and location,
  and drives the assignment status pending -> in_progress -> completed.
- An assignment carries at most one in-progress execution at a time.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CHECKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("email", "local@checkline", "caller email")
	rootCmd.PersistentFlags().String("name", "", "caller display name")
	rootCmd.PersistentFlags().String("role", "supervisor", "caller role (supervisor, collaborator)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
	_ = viper.BindPFlag("name", rootCmd.PersistentFlags().Lookup("name"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
}

func registerCommands() {
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(assignmentCmd())
	rootCmd.AddCommand(executionCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func checklistCmd() *cobra.Command {
	cl := &cobra.Command{
		Use:   "checklist",
		Short: "Manage checklist templates",
	}
	cl.AddCommand(checklistCreateCmd())
	cl.AddCommand(checklistListCmd())
	cl.AddCommand(checklistShowCmd())
	cl.AddCommand(checklistUpdateCmd())
	cl.AddCommand(checklistDeleteCmd())
	return cl
}

func checklistCreateCmd() *cobra.Command {
	var title, description, category, itemsJSON string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a checklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseItems(itemsJSON)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateChecklist(ctx, engine.ChecklistCreateOptions{
					Title:       title,
					Description: description,
					Items:       items,
					Category:    category,
					CreatedBy:   viper.GetString("email"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "checklist title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category (defaults from config)")
	cmd.Flags().StringVar(&itemsJSON, "items", "", `items as JSON, e.g. '[{"id":"a","text":"Check A","type":"checkbox"}]'`)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("items")
	return cmd
}

func checklistListCmd() *cobra.Command {
	var category, title string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checklists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListChecklists(ctx, repo.ChecklistFilters{Category: category, Title: title})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Items", "Created By"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Title, c.Category, len(c.Items), c.CreatedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&title, "title", "", "filter by title substring")
	return cmd
}

func checklistShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetChecklist(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func checklistUpdateCmd() *cobra.Command {
	var title, description, category, itemsJSON string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ChecklistUpdateOptions{}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("category") {
				opts.Category = &category
			}
			if cmd.Flags().Changed("items") {
				items, err := parseItems(itemsJSON)
				if err != nil {
					return err
				}
				opts.Items = items
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateChecklist(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "checklist title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&itemsJSON, "items", "", "items as JSON (replaces the full list)")
	return cmd
}

func checklistDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteChecklist(ctx, args[0])
			})
		},
	}
	return cmd
}

func assignmentCmd() *cobra.Command {
	as := &cobra.Command{
		Use:   "assignment",
		Short: "Manage assignments",
	}
	as.AddCommand(assignmentCreateCmd())
	as.AddCommand(assignmentListCmd())
	as.AddCommand(assignmentShowCmd())
	as.AddCommand(assignmentUpdateCmd())
	as.AddCommand(assignmentDeleteCmd())
	return as
}

func assignmentCreateCmd() *cobra.Command {
	var opts engine.AssignmentCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Assign a checklist to a collaborator",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.AssignedBy = viper.GetString("email")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAssignment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ChecklistID, "checklist", "", "checklist id")
	cmd.Flags().StringVar(&opts.CollaboratorEmail, "collaborator", "", "collaborator email")
	cmd.Flags().StringVar(&opts.CollaboratorName, "collaborator-name", "", "collaborator display name")
	cmd.Flags().StringVar(&opts.Title, "title", "", "assignment title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, medium, high)")
	_ = cmd.MarkFlagRequired("checklist")
	_ = cmd.MarkFlagRequired("collaborator")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func assignmentListCmd() *cobra.Command {
	var collaborator, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAssignments(ctx, repo.AssignmentFilters{
					CollaboratorEmail: collaborator,
					Status:            status,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Collaborator", "Priority", "Status", "Due"})
				for _, a := range items {
					due := ""
					if a.DueDate != nil {
						due = *a.DueDate
					}
					tw.AppendRow(table.Row{a.ID, a.Title, a.CollaboratorEmail, a.Priority, a.Status, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collaborator, "collaborator", "", "filter by collaborator email")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func assignmentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.GetAssignment(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func assignmentUpdateCmd() *cobra.Command {
	var collaborator, collaboratorName, title, description, due, priority, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.AssignmentUpdateOptions{}
			if cmd.Flags().Changed("collaborator") {
				opts.CollaboratorEmail = &collaborator
			}
			if cmd.Flags().Changed("collaborator-name") {
				opts.CollaboratorName = &collaboratorName
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateAssignment(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&collaborator, "collaborator", "", "collaborator email")
	cmd.Flags().StringVar(&collaboratorName, "collaborator-name", "", "collaborator display name")
	cmd.Flags().StringVar(&title, "title", "", "assignment title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&status, "status", "", "status override (pending, in_progress, completed, reviewed)")
	return cmd
}

func assignmentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAssignment(ctx, args[0])
			})
		},
	}
	return cmd
}

func executionCmd() *cobra.Command {
	ex := &cobra.Command{
		Use:   "execution",
		Short: "Run assignments",
	}
	ex.AddCommand(executionStartCmd())
	ex.AddCommand(executionListCmd())
	ex.AddCommand(executionShowCmd())
	ex.AddCommand(executionUpdateCmd())
	ex.AddCommand(executionCompleteCmd())
	return ex
}

func executionStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <assignment-id>",
		Short: "Start executing an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ex, err := e.StartExecution(ctx, args[0], viper.GetString("email"), viper.GetString("name"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ex)
			})
		},
	}
	return cmd
}

func executionListCmd() *cobra.Command {
	var assignment, collaborator string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListExecutions(ctx, repo.ExecutionFilters{
					AssignmentID:      assignment,
					CollaboratorEmail: collaborator,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Assignment", "Collaborator", "Status", "Started", "Completed"})
				for _, ex := range items {
					completed := ""
					if ex.CompletedAt != nil {
						completed = *ex.CompletedAt
					}
					tw.AppendRow(table.Row{ex.ID, ex.AssignmentTitle, ex.CollaboratorEmail, ex.Status, ex.StartedAt, completed})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&assignment, "assignment", "", "filter by assignment id")
	cmd.Flags().StringVar(&collaborator, "collaborator", "", "filter by collaborator email")
	return cmd
}

func executionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ex, err := e.GetExecution(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ex)
			})
		},
	}
	return cmd
}

func executionUpdateCmd() *cobra.Command {
	var responsesJSON, notes, status string
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Save progress on an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ExecutionUpdateOptions{}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("responses") {
				responses, err := parseResponses(responsesJSON)
				if err != nil {
					return err
				}
				opts.Responses = &responses
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				opts.Location = &engine.LocationPatch{}
				if cmd.Flags().Changed("lat") {
					opts.Location.Latitude = &lat
				}
				if cmd.Flags().Changed("lng") {
					opts.Location.Longitude = &lng
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ex, err := e.UpdateExecution(ctx, args[0], opts, viper.GetString("email"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ex)
			})
		},
	}
	cmd.Flags().StringVar(&responsesJSON, "responses", "", `responses as JSON, e.g. '[{"item_id":"a","value":true}]'`)
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	cmd.Flags().StringVar(&status, "status", "", "status override (in_progress, completed, reviewed)")
	return cmd
}

func executionCompleteCmd() *cobra.Command {
	var responsesJSON, notes string
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ExecutionCompleteOptions{}
			if cmd.Flags().Changed("responses") {
				responses, err := parseResponses(responsesJSON)
				if err != nil {
					return err
				}
				opts.Responses = &responses
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				opts.Location = &engine.LocationPatch{}
				if cmd.Flags().Changed("lat") {
					opts.Location.Latitude = &lat
				}
				if cmd.Flags().Changed("lng") {
					opts.Location.Longitude = &lng
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ex, err := e.CompleteExecution(ctx, args[0], opts, viper.GetString("email"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ex)
			})
		},
	}
	cmd.Flags().StringVar(&responsesJSON, "responses", "", "responses as JSON (required; '[]' for nothing to report)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	_ = cmd.MarkFlagRequired("responses")
	return cmd
}

func keyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
	}
	key.AddCommand(keyCreateCmd())
	key.AddCommand(keyListCmd())
	key.AddCommand(keyDeleteCmd())
	return key
}

func keyCreateCmd() *cobra.Command {
	var email, name, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, plaintext, err := e.CreateAPIKey(ctx, email, name, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": plaintext, "id": k.ID, "email": k.Email, "role": k.Role})
				}
				fmt.Printf("API key for %s (%s): %s\n", k.Email, k.Role, plaintext)
				fmt.Println("Store it now; only the hash is kept.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "principal email")
	cmd.Flags().StringVar(&name, "name", "", "principal display name")
	cmd.Flags().StringVar(&role, "role", "collaborator", "role (supervisor, collaborator)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func keyListCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, email)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Role", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.Email, k.Role, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "filter by email")
	return cmd
}

func keyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default checkline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("CHECKLINE_JWT_SECRET"),
				AllowLegacyEmailHeader: allowLegacy || cfg.Auth.AllowLegacyEmailHeader,
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyEmailHeader {
				return fmt.Errorf("CHECKLINE_JWT_SECRET is required for bearer auth (or enable --allow-legacy-email-header)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Checkline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-email-header", false, "accept X-User-Email header auth (development only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseItems(raw string) ([]domain.ChecklistItem, error) {
	var items []domain.ChecklistItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("invalid items JSON: %w", err)
	}
	return items, nil
}

func parseResponses(raw string) ([]domain.Response, error) {
	var responses []domain.Response
	if err := json.Unmarshal([]byte(raw), &responses); err != nil {
		return nil, fmt.Errorf("invalid responses JSON: %w", err)
	}
	if responses == nil {
		responses = []domain.Response{}
	}
	return responses, nil
}
