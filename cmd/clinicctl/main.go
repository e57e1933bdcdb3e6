package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jwalitptl/clinic-flow/internal/app"
	"github.com/jwalitptl/clinic-flow/internal/config"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Operator commands for the clinic flow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yml (defaults to the usual search paths)")

	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(seedCmd(&configPath))
	rootCmd.AddCommand(staffCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfig()
}

// withStore opens the configured Postgres store, applies the schema and
// runs fn against it.
func withStore(ctx context.Context, configPath string, fn func(*config.Config, *repository.Store) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		return fmt.Errorf("clinicctl requires the postgres storage driver, got %q", cfg.Storage.Driver)
	}
	store, closeStore, err := app.OpenStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(cfg, store)
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *configPath, func(cfg *config.Config, _ *repository.Store) error {
				logger.Info().Str("database", cfg.Database.Name).Msg("schema applied")
				return nil
			})
		},
	}
}

type seedFile struct {
	Catalog []struct {
		Name  string `mapstructure:"name"`
		Price int64  `mapstructure:"price"`
	} `mapstructure:"catalog"`
	Medications []struct {
		Name  string `mapstructure:"name"`
		Unit  string `mapstructure:"unit"`
		Price *int64 `mapstructure:"price"`
	} `mapstructure:"medications"`
}

func seedCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load service catalog and medication entries from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			v := viper.New()
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read seed file: %w", err)
			}
			var seed seedFile
			if err := v.Unmarshal(&seed); err != nil {
				return fmt.Errorf("failed to parse seed file: %w", err)
			}

			return withStore(cmd.Context(), *configPath, func(cfg *config.Config, store *repository.Store) error {
				svc := app.NewServices(cfg, store, nil, nil).Admin
				ctx := cmd.Context()

				var created, skipped int
				for _, c := range seed.Catalog {
					_, err := svc.CreateCatalogEntry(ctx, &model.CreateCatalogEntryRequest{Name: c.Name, Price: c.Price})
					if ok, err := seedResult(err, "catalog", c.Name); err != nil {
						return err
					} else if ok {
						created++
					} else {
						skipped++
					}
				}
				for _, m := range seed.Medications {
					_, err := svc.CreateMedication(ctx, &model.CreateMedicationRequest{Name: m.Name, Unit: m.Unit, Price: m.Price})
					if ok, err := seedResult(err, "medication", m.Name); err != nil {
						return err
					} else if ok {
						created++
					} else {
						skipped++
					}
				}

				logger.Info().Int("created", created).Int("skipped", skipped).Msg("seed complete")
				return nil
			})
		},
	}
	cmd.Flags().StringP("file", "f", "config/seed.yml", "Seed file")
	return cmd
}

// seedResult treats rejected entries such as duplicate names as skips so
// seeding can be rerun against a populated database.
func seedResult(err error, kind, name string) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.KindInternal) {
		return false, err
	}
	logger.Warn().Str("kind", kind).Str("name", name).Err(err).Msg("skipped")
	return false, nil
}

func staffCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff member, typically the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			pin, _ := cmd.Flags().GetString("pin")

			return withStore(cmd.Context(), *configPath, func(cfg *config.Config, store *repository.Store) error {
				svc := app.NewServices(cfg, store, nil, nil).Admin
				staff, err := svc.CreateStaff(cmd.Context(), &model.CreateStaffRequest{
					Name: name,
					Role: model.Role(role),
					PIN:  pin,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), staff.ID.String())
				logger.Info().Str("staff_id", staff.ID.String()).Str("role", string(staff.Role)).Msg("staff created")
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("role", string(model.RoleAdmin), "Receptionist, Doctor, Technician or Admin")
	createCmd.Flags().String("pin", "", "Login PIN (at least 4 digits)")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("pin")
	cmd.AddCommand(createCmd)

	return cmd
}
