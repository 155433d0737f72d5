package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdeck/internal/app"
	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/notify"
	"taskdeck/internal/repo"
	"taskdeck/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdeck CLI",
	Long: `Taskdeck ranks team tasks and distributes workload.
- Workspace: a .taskdeck directory holding the database; taskdeck.yml next to it configures the server.
- Tasks: work items with a priority, status, planned/actual labor, a work size and a roadmap.
- Assignments: exactly one assignee plus up to five partners per task; notified users just watch.
- Optimize: scores every task under a strategy (priority, work_size, completion_date), ranks them
  with completed tasks last, and groups labor into daily buckets per user.
- History: every mutation appends an audit entry; view with 'td task history'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("TASKDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "acting user identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, closer, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer closer()
	return fn(ctx, e)
}

func actorID() string {
	return viper.GetString("user-id")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default taskdeck.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Manage teams"}
	team.AddCommand(teamCreateCmd())
	team.AddCommand(teamListCmd())
	team.AddCommand(teamPerformanceCmd())
	return team
}

func teamCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t := domain.Team{
					ID:        id,
					Name:      name,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if t.ID == "" {
					t.ID = uuid.NewString()
				}
				if err := e.Repo.InsertTeam(ctx, t); err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "team id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "team name")
	return cmd
}

func teamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				teams, err := e.Repo.ListTeams(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(teams)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, t := range teams {
					tw.AppendRow(table.Row{t.ID, t.Name, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func teamPerformanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "performance <team-id>",
		Short: "Planned versus actual labor per member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.TeamPerformance(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Tasks", "Completed", "Planned", "Actual"})
				for _, s := range stats {
					tw.AppendRow(table.Row{s.User.Name, s.TaskCount, s.CompletedCount, s.PlannedLabor, s.ActualLabor})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var id, name, email, role, teamID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || email == "" {
				return fmt.Errorf("--name and --email required")
			}
			if role != domain.RoleManager && role != domain.RoleEmployee {
				return fmt.Errorf("--role must be manager or employee")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u := domain.User{
					ID:        id,
					Name:      name,
					Email:     email,
					Role:      role,
					TeamID:    teamID,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if u.ID == "" {
					u.ID = uuid.NewString()
				}
				if err := e.Repo.InsertUser(ctx, u); err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", domain.RoleEmployee, "manager or employee")
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	return cmd
}

func userListCmd() *cobra.Command {
	var teamID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx, teamID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Team"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Role, u.TeamID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "filter by team")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskEffortCmd())
	task.AddCommand(taskHistoryCmd())
	return task
}

// parseLaborRef parses "user-id:hours" flag values.
func parseLaborRef(s string) (string, float64, error) {
	userID, hours, found := strings.Cut(s, ":")
	if !found || userID == "" {
		return "", 0, fmt.Errorf("expected user-id:hours, got %q", s)
	}
	v, err := strconv.ParseFloat(hours, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad hours in %q: %w", s, err)
	}
	return userID, v, nil
}

func rosterFromFlags(assignee string, partners, notified []string) ([]domain.Assignment, error) {
	var roster []domain.Assignment
	if assignee != "" {
		userID, hours, err := parseLaborRef(assignee)
		if err != nil {
			return nil, err
		}
		roster = append(roster, domain.Assignment{UserID: userID, Role: domain.AssignmentAssignee, PlannedLabor: hours})
	}
	for _, p := range partners {
		userID, hours, err := parseLaborRef(p)
		if err != nil {
			return nil, err
		}
		roster = append(roster, domain.Assignment{UserID: userID, Role: domain.AssignmentPartner, PlannedLabor: hours})
	}
	for _, n := range notified {
		roster = append(roster, domain.Assignment{UserID: n, Role: domain.AssignmentNotified})
	}
	return roster, nil
}

func taskCreateCmd() *cobra.Command {
	var (
		opts        engine.TaskCreateOptions
		assignee    string
		partners    []string
		notified    []string
		roadmapFile string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if roadmapFile != "" {
				data, err := os.ReadFile(roadmapFile)
				if err != nil {
					return err
				}
				opts.Roadmap = string(data)
			}
			roster, err := rosterFromFlags(assignee, partners, notified)
			if err != nil {
				return err
			}
			opts.Assignments = roster
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (generated when empty)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "task description")
	cmd.Flags().StringVar(&opts.Priority, "priority", domain.PriorityMedium, "High, Medium or Low")
	cmd.Flags().StringVar(&opts.Status, "status", domain.StatusNotStarted, "initial status")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.CompletionDate, "due", "", "completion date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&opts.PlannedLabor, "planned", 0, "planned labor hours")
	cmd.Flags().Float64Var(&opts.WorkSize, "size", 0, "work size")
	cmd.Flags().StringVar(&opts.Roadmap, "roadmap", "", "roadmap text")
	cmd.Flags().StringVar(&roadmapFile, "roadmap-file", "", "file with the roadmap text")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team id (defaults to the creator's team)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee as user-id:hours")
	cmd.Flags().StringArrayVar(&partners, "partner", nil, "partner as user-id:hours (repeatable)")
	cmd.Flags().StringArrayVar(&notified, "notify", nil, "notified user id (repeatable)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Description", "Priority", "Status", "Start", "Planned", "Actual"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Description, t.Priority, t.Status, t.StartDate, t.PlannedLabor, t.ActualLabor})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.TeamID, "team", "", "team filter")
	cmd.Flags().StringVar(&f.UserID, "user", "", "user filter (any assignment role)")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var (
		description, priority, status   string
		startDate, completionDate, note string
		plannedLabor, workSize          float64
		assignee                        string
		partners, notified              []string
	)
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:      args[0],
				Note:    note,
				ActorID: actorID(),
			}
			flags := cmd.Flags()
			if flags.Changed("description") {
				opts.Description = &description
			}
			if flags.Changed("priority") {
				opts.Priority = &priority
			}
			if flags.Changed("status") {
				opts.Status = &status
			}
			if flags.Changed("start") {
				opts.StartDate = &startDate
			}
			if flags.Changed("due") {
				opts.CompletionDate = &completionDate
			}
			if flags.Changed("planned") {
				opts.PlannedLabor = &plannedLabor
			}
			if flags.Changed("size") {
				opts.WorkSize = &workSize
			}
			if flags.Changed("assignee") || flags.Changed("partner") || flags.Changed("notify") {
				roster, err := rosterFromFlags(assignee, partners, notified)
				if err != nil {
					return err
				}
				opts.Assignments = roster
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "High, Medium or Low")
	cmd.Flags().StringVar(&status, "status", "", "task status")
	cmd.Flags().StringVar(&startDate, "start", "", "start date")
	cmd.Flags().StringVar(&completionDate, "due", "", "completion date")
	cmd.Flags().Float64Var(&plannedLabor, "planned", 0, "planned labor hours")
	cmd.Flags().Float64Var(&workSize, "size", 0, "work size")
	cmd.Flags().StringVar(&assignee, "assignee", "", "replace assignee as user-id:hours")
	cmd.Flags().StringArrayVar(&partners, "partner", nil, "replace partners (user-id:hours, repeatable)")
	cmd.Flags().StringArrayVar(&notified, "notify", nil, "replace notified users (repeatable)")
	cmd.Flags().StringVar(&note, "note", "", "history note describing the change")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0], actorID())
			})
		},
	}
}

func taskEffortCmd() *cobra.Command {
	var (
		hours   float64
		version int64
		note    string
	)
	cmd := &cobra.Command{
		Use:   "effort <task-id>",
		Short: "Log worked hours on your own assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.EffortOptions{
				TaskID:      args[0],
				ActorID:     actorID(),
				ActualLabor: hours,
				Note:        note,
			}
			if cmd.Flags().Changed("expect-version") {
				opts.ExpectedVersion = &version
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.LogEffort(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().Float64Var(&hours, "hours", 0, "total worked hours on this task")
	cmd.Flags().Int64Var(&version, "expect-version", 0, "fail if the assignment version changed")
	cmd.Flags().StringVar(&note, "note", "", "history note")
	return cmd
}

func taskHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <task-id>",
		Short: "Show task history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Repo.ListTaskHistory(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Kind", "Actor", "Note"})
				for _, h := range entries {
					tw.AppendRow(table.Row{h.TS, h.Kind, h.ActorID, h.Note})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	return cmd
}

func optimizeCmd() *cobra.Command {
	var opts engine.OptimizeOptions
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Rank tasks and distribute workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.Optimize(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				for _, plan := range out.Plans {
					fmt.Printf("%s (%s): planned %.1f, actual %.1f, remaining %.1f\n",
						plan.User.Name, plan.User.ID,
						plan.Result.TotalPlanned, plan.Result.TotalActual, plan.Result.TotalRemaining)
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"#", "Description", "Priority", "Status", "Start", "Planned"})
					for i, t := range plan.Result.OrderedTasks {
						tw.AppendRow(table.Row{i + 1, t.Description, t.Priority, t.Status, t.StartDate, t.PlannedLabor})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "priority, work_size or completion_date")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "plan for one user")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "plan for a whole team")
	cmd.Flags().StringVar(&opts.StartDate, "from", "", "window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "to", "", "window end (YYYY-MM-DD)")
	return cmd
}

func apikeyCmd() *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	apikey.AddCommand(apikeyCreateCmd())
	apikey.AddCommand(apikeyListCmd())
	apikey.AddCommand(apikeyDeleteCmd())
	return apikey
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				userID = actorID()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetUser(ctx, userID); err != nil {
					return err
				}
				plaintext := uuid.NewString() + uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(plaintext),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				return printJSON(map[string]string{"id": key.ID, "user_id": key.UserID, "key": plaintext})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user (defaults to --user-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(keys)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by user")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closer, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer closer()
			cfg := e.Config
			log := app.Logger(cfg)
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			jwtSecret := cfg.Auth.JWTSecret
			if env := os.Getenv("TASKDECK_JWT_SECRET"); env != "" {
				jwtSecret = env
			}
			if jwtSecret == "" && !cfg.Auth.DevUserHeader {
				return fmt.Errorf("set auth.jwt_secret (or TASKDECK_JWT_SECRET), or enable auth.dev_user_header for local use")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:     jwtSecret,
					DevUserHeader: cfg.Auth.DevUserHeader,
					Log:           log,
				},
			})
			if err != nil {
				return err
			}
			dispatcher := &notify.Dispatcher{
				Repo:     e.Repo,
				Webhooks: cfg.Notify.Webhooks,
				Log:      log,
			}
			if dispatcher.Start(cmd.Context()) {
				log.Info().Int("webhooks", len(cfg.Notify.Webhooks)).Msg("webhook dispatcher started")
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving Taskdeck API")
			fmt.Printf("Serving Taskdeck API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}
