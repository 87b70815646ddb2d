package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcrescenzo/task-crusader-mcp/internal/app"
	"github.com/mcrescenzo/task-crusader-mcp/internal/config"
	"github.com/mcrescenzo/task-crusader-mcp/internal/db"
	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/mcpserver"
	"github.com/mcrescenzo/task-crusader-mcp/internal/repo"
	"github.com/mcrescenzo/task-crusader-mcp/internal/server"
	"github.com/mcrescenzo/task-crusader-mcp/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "crusade",
	Short: "Task Crusader CLI",
	Long: `Task Crusader tracks campaigns and their task graphs for AI coding agents.
- Campaign: a unit of work holding tasks; active -> completed -> archived.
- Task: pending -> in-progress -> blocked/done/cancelled; done needs every
  acceptance criterion met.
- Dependencies: tasks wait on other tasks; the graph stays acyclic and the
  resolver picks what to work on next.
- Attachments: acceptance criteria, testing steps, research and
  implementation notes hang off tasks (research also off campaigns).
- Serve the same engine over HTTP ('crusade serve') or MCP ('crusade mcp').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
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
	viper.SetEnvPrefix("CRUSADE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(campaignCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(browseCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
}

func campaignCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "campaign", Short: "Manage campaigns"}
	cmd.AddCommand(
		campaignCreateCmd(),
		campaignListCmd(),
		campaignShowCmd(),
		campaignUpdateCmd(),
		campaignDeleteCmd(),
		campaignProgressCmd(),
		campaignNextCmd(),
		campaignActionableCmd(),
		campaignBulkCmd(),
		campaignResearchCmd(),
	)
	return cmd
}

func campaignCreateCmd() *cobra.Command {
	var description, priority string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCampaign(ctx, engine.CampaignCreateOptions{
					Name:        args[0],
					Description: description,
					Priority:    priority,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "campaign description")
	cmd.Flags().StringVar(&priority, "priority", "", "critical|high|medium|low")
	return cmd
}

func campaignListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cs, err := e.ListCampaigns(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Priority", "Status", "Created"})
				for _, c := range cs {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Priority, c.Status, c.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func campaignShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show a campaign with progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCampaign(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := e.ProgressSummary(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"campaign": c, "progress": p})
			})
		},
	}
}

func campaignUpdateCmd() *cobra.Command {
	var name, description, priority, status string
	cmd := &cobra.Command{
		Use:   "update <campaign-id>",
		Short: "Update campaign fields or status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.CampaignUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("priority") {
					opts.Priority = &priority
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				c, err := e.UpdateCampaign(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&priority, "priority", "", "critical|high|medium|low")
	cmd.Flags().StringVar(&status, "status", "", "active|completed|archived")
	return cmd
}

func campaignDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <campaign-id>",
		Short: "Delete a campaign and everything under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteCampaign(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func campaignProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <campaign-id>",
		Short: "Progress summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ProgressSummary(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func campaignNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next <campaign-id>",
		Short: "Next actionable task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.NextActionableTask(ctx, args[0])
				if err != nil {
					return err
				}
				if t == nil {
					fmt.Println("no actionable task")
					return nil
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func campaignActionableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actionable <campaign-id>",
		Short: "All actionable tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ts, err := e.AllActionableTasks(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Created"})
				for _, t := range ts {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Priority, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func campaignBulkCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create-with-tasks",
		Short: "Create a campaign and its task graph from a JSON file",
		Long: `The file holds {"name": ..., "description": ..., "priority": ..., "tasks": [...]}.
Each task needs temp_id and title; depends_on lists temp ids from the same
file. The whole graph is created in one transaction or not at all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var req struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				Priority    string `json:"priority"`
				Tasks       []struct {
					TempID             string   `json:"temp_id"`
					Title              string   `json:"title"`
					Description        string   `json:"description"`
					Priority           string   `json:"priority"`
					DependsOn          []string `json:"depends_on"`
					AcceptanceCriteria []string `json:"acceptance_criteria"`
				} `json:"tasks"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.CampaignWithTasksOptions{
					Name:        req.Name,
					Description: req.Description,
					Priority:    req.Priority,
					ActorID:     viper.GetString("actor-id"),
				}
				for _, t := range req.Tasks {
					opts.Tasks = append(opts.Tasks, engine.BulkTask{
						TempID:             t.TempID,
						Title:              t.Title,
						Description:        t.Description,
						Priority:           t.Priority,
						DependsOn:          t.DependsOn,
						AcceptanceCriteria: t.AcceptanceCriteria,
					})
				}
				res, err := e.CreateCampaignWithTasks(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file describing the campaign")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func campaignResearchCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "research", Short: "Campaign research notes"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <campaign-id> <content>",
		Short: "Attach a research note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddAttachment(ctx, engine.AttachmentAddOptions{
					Kind:       domain.KindResearchNote,
					CampaignID: args[0],
					Content:    args[1],
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <campaign-id>",
		Short: "List research notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ms, err := e.ListAttachments(ctx, "", args[0], domain.KindResearchNote)
				if err != nil {
					return err
				}
				return printJSONOrTable(ms)
			})
		},
	})
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(
		taskCreateCmd(),
		taskListCmd(),
		taskShowCmd(),
		taskUpdateCmd(),
		taskDeleteCmd(),
		taskCompleteCmd(),
		taskCriteriaCmd(),
		taskStepCmd(),
		taskNoteCmd(),
	)
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var campaignID, description, priority string
	var dependsOn []string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					CampaignID:  campaignID,
					Title:       args[0],
					Description: description,
					Priority:    priority,
					DependsOn:   dependsOn,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "critical|high|medium|low")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "task ids this task waits on")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func taskListCmd() *cobra.Command {
	var campaignID, status, priority string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.GetCampaign(ctx, campaignID); err != nil {
					return err
				}
				ts, err := e.ListTasks(ctx, repo.TaskFilters{
					CampaignID: campaignID,
					Status:     status,
					Priority:   priority,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Status"})
				for _, t := range ts {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Priority, t.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&priority, "priority", "", "priority filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max tasks")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.TaskDetails(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, priority, status string
	var addDeps, removeDeps []string
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task fields, status or dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskUpdateOptions{
					ID:              args[0],
					AddDependsOn:    addDeps,
					RemoveDependsOn: removeDeps,
					ActorID:         viper.GetString("actor-id"),
				}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("priority") {
					opts.Priority = &priority
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&priority, "priority", "", "critical|high|medium|low")
	cmd.Flags().StringVar(&status, "status", "", "pending|in-progress|blocked|done|cancelled")
	cmd.Flags().StringSliceVar(&addDeps, "add-depends-on", nil, "dependency ids to add")
	cmd.Flags().StringSliceVar(&removeDeps, "remove-depends-on", nil, "dependency ids to remove")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTask(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func taskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark an in-progress task done (requires criteria met)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskCriteriaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "criteria", Short: "Acceptance criteria"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <task-id> <content>",
		Short: "Attach a criterion (starts unmet)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddAttachment(ctx, engine.AttachmentAddOptions{
					Kind:    domain.KindAcceptanceCriterion,
					TaskID:  args[0],
					Content: args[1],
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "met <criterion-id>",
		Short: "Mark a criterion met",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.MarkCriterionMet(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unmet <criterion-id>",
		Short: "Mark a criterion unmet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.MarkCriterionUnmet(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	})
	return cmd
}

func taskStepCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "step", Short: "Testing steps"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <task-id> <content>",
		Short: "Attach a testing step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddAttachment(ctx, engine.AttachmentAddOptions{
					Kind:    domain.KindTestingStep,
					TaskID:  args[0],
					Content: args[1],
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "result <step-id> <passed|failed|skipped|unset>",
		Short: "Record a step result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SetTestingStepResult(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	})
	return cmd
}

func taskNoteCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "note", Short: "Research and implementation notes"}
	addNote := func(use, short, kind string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					m, err := e.AddAttachment(ctx, engine.AttachmentAddOptions{
						Kind:    kind,
						TaskID:  args[0],
						Content: args[1],
						ActorID: viper.GetString("actor-id"),
					})
					if err != nil {
						return err
					}
					return printJSONOrTable(m)
				})
			},
		}
	}
	cmd.AddCommand(addNote("research <task-id> <content>", "Attach a research note", domain.KindResearchNote))
	cmd.AddCommand(addNote("impl <task-id> <content>", "Attach an implementation note", domain.KindImplementationNote))
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default crusade.yml",
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
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate crusade.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.FromFile(config.Path(viper.GetString("workspace")))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noAuth bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, conn, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer conn.Close()
			if addr == "" {
				addr = e.Config.Server.Addr
			}
			if basePath == "" {
				basePath = e.Config.Server.BasePath
			}
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CRUSADE_JWT_SECRET"), Disabled: noAuth}
			if !noAuth && authCfg.JWTSecret == "" {
				return fmt.Errorf("CRUSADE_JWT_SECRET is required for bearer auth (or pass --no-auth for loopback use)")
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
			fmt.Printf("Serving Task Crusader API on http://%s%s (OpenAPI at /openapi.json)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "disable authentication")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, conn, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer conn.Close()
			return mcpserver.ServeStdio(mcpserver.New(e, e.Config))
		},
	}
}

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse campaigns and tasks interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, conn, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer conn.Close()
			return tui.Run(e)
		},
	}
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP server"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				raw, err := randomKey()
				if err != nil {
					return err
				}
				k := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, k); err != nil {
					return err
				}
				return printJSON(map[string]any{"id": k.ID, "actor_id": k.ActorID, "key": raw})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	cmd.AddCommand(create)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ks, err := e.Repo.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range ks {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.DeleteAPIKey(ctx, nil, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	var n int
	var campaignID, evtType, entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, campaignID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&campaignID, "campaign", "", "campaign id filter")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.AddCommand(tail)
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
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

func randomKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ck_" + hex.EncodeToString(buf), nil
}
