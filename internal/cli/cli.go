package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/brewline/internal/app"
	"github.com/Additional-Code/brewline/internal/migration"
	"github.com/Additional-Code/brewline/internal/seeder"
	accountsvc "github.com/Additional-Code/brewline/internal/service/account"
	"github.com/Additional-Code/brewline/internal/worker"
	workerorder "github.com/Additional-Code/brewline/internal/worker/order"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root brewline CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "brewline",
		Short:         "Brewline coffee shop ordering backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newAccountCmd())

	return root
}

// Execute runs the brewline CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run", "serve"},
		Short:   "Run the HTTP API with the in-process worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Module)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				version, err := mig.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample menu and, when a password is given, an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := adminRequest(cmd)
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				n, err := seed.Menu(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "menu items added: %d\n", n)

				if req.Password == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "admin account skipped (no --admin-password)")
					return nil
				}
				created, err := seed.Admin(ctx, req)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "admin account %q created\n", req.Username)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "admin account %q already exists\n", req.Username)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("admin-username", "admin", "Username of the seeded admin account")
	cmd.Flags().String("admin-email", "admin@brewline.local", "Email of the seeded admin account")
	cmd.Flags().String("admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "Password of the seeded admin account")
	return cmd
}

func adminRequest(cmd *cobra.Command) accountsvc.RegisterRequest {
	username, _ := cmd.Flags().GetString("admin-username")
	email, _ := cmd.Flags().GetString("admin-email")
	password, _ := cmd.Flags().GetString("admin-password")
	return accountsvc.RegisterRequest{Username: username, Email: email, Password: password}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume order events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			var engine *worker.Engine
			opts := fx.Options(
				app.Core,
				fx.Provide(worker.NewEngine),
				workerorder.Module,
				fx.Populate(&engine),
			)
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if !engine.Enabled() {
					return fmt.Errorf("worker disabled: enable MESSAGING_ENABLED and WORKER_ENABLED")
				}
				return engine.Run(ctx)
			})
		},
	})
	return cmd
}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	create := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			phone, _ := cmd.Flags().GetString("phone")

			var svc *accountsvc.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				account, err := svc.CreateAdmin(ctx, accountsvc.RegisterRequest{
					Username: username,
					Email:    email,
					Password: password,
					Phone:    phone,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin account %q created with id %d\n", account.Username, account.ID)
				return nil
			})
		},
	}
	create.Flags().String("username", "", "Username")
	create.Flags().String("email", "", "Email address")
	create.Flags().String("password", "", "Password")
	create.Flags().String("phone", "", "Phone number")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

// runUntilDone starts the application and stops it once ctx is cancelled.
func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
