package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dinein-pos/api/internal/auth"
	"github.com/dinein-pos/api/internal/config"
	"github.com/dinein-pos/api/internal/enum"
	"github.com/dinein-pos/api/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	root := &cobra.Command{
		Use:          "seed",
		Short:        "Database maintenance for the dine-in POS",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), seedCmd(), tokenCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// --- migrate ---

func migrateCmd() *cobra.Command {
	var dir string
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runMigrations(cfg.DatabaseURL, dir, down)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "migrations directory")
	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration")
	return cmd
}

func runMigrations(dbURL, dir string, down bool) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// --- seed ---

type seedMenuItem struct {
	name      string
	price     string
	taxRate   *string
	modifiers []seedModifier
	recipe    map[string]string // ingredient name -> quantity per unit
}

type seedModifier struct {
	name  string
	price string
}

type seedIngredient struct {
	name      string
	unit      string
	stock     string
	threshold string
}

func ptr(s string) *string { return &s }

var (
	seedIngredients = []seedIngredient{
		{"Paneer", "kg", "10.000", "1.000"},
		{"Dosa batter", "kg", "8.000", "0.500"},
		{"Curd", "kg", "5.000", "0.500"},
		{"Basmati rice", "kg", "20.000", "2.000"},
	}
	seedMenu = []seedMenuItem{
		{
			name: "Paneer Tikka", price: "240.00", taxRate: ptr("5.00"),
			modifiers: []seedModifier{{"Extra cheese", "20.00"}, {"No onion", "0.00"}},
			recipe:    map[string]string{"Paneer": "0.150"},
		},
		{
			name: "Masala Dosa", price: "120.00", taxRate: ptr("5.00"),
			modifiers: []seedModifier{{"Ghee roast", "30.00"}},
			recipe:    map[string]string{"Dosa batter": "0.200"},
		},
		{
			name: "Veg Biryani", price: "220.00", taxRate: ptr("5.00"),
			recipe: map[string]string{"Basmati rice": "0.180", "Curd": "0.050"},
		},
		{
			name: "Sweet Lassi", price: "80.00",
			recipe: map[string]string{"Curd": "0.200"},
		},
		{name: "Mineral Water", price: "20.00", taxRate: ptr("18.00")},
	}
)

func seedCmd() *cobra.Command {
	var tables int
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Seed tables, menu, ingredients and sample customers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			return seed(cmd.Context(), cfg.DatabaseURL, tables, log)
		},
	}
	cmd.Flags().IntVar(&tables, "tables", 12, "number of restaurant tables")
	return cmd
}

func seed(ctx context.Context, dbURL string, tables int, log *zap.Logger) error {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	// Everything or nothing.
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := seedTables(ctx, tx, tables, log); err != nil {
		return err
	}
	ingredientIDs, err := seedIngredientRows(ctx, tx, log)
	if err != nil {
		return err
	}
	if err := seedMenuRows(ctx, tx, ingredientIDs, log); err != nil {
		return err
	}
	if err := seedCustomers(ctx, tx, log); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Info("seed completed")
	return nil
}

func seedTables(ctx context.Context, tx pgx.Tx, count int, log *zap.Logger) error {
	for n := 1; n <= count; n++ {
		location := "Main hall"
		if n > count*3/4 {
			location = "Patio"
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO restaurant_tables (table_number, capacity, location)
			VALUES ($1, $2, $3)
			ON CONFLICT (table_number) DO NOTHING
		`, n, 2+2*(n%3), location)
		if err != nil {
			return fmt.Errorf("insert table %d: %w", n, err)
		}
		if tag.RowsAffected() > 0 {
			log.Info("created table", zap.Int("table_number", n))
		}
	}
	return nil
}

func seedIngredientRows(ctx context.Context, tx pgx.Tx, log *zap.Logger) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(seedIngredients))
	for _, ing := range seedIngredients {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO ingredients (name, unit, stock_quantity, low_stock_threshold)
			VALUES ($1, $2, $3::text::numeric, $4::text::numeric)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, ing.name, ing.unit, ing.stock, ing.threshold).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert ingredient %q: %w", ing.name, err)
		}
		ids[ing.name] = id
		log.Debug("ingredient ready", zap.String("name", ing.name), zap.Stringer("id", id))
	}
	return ids, nil
}

func seedMenuRows(ctx context.Context, tx pgx.Tx, ingredientIDs map[string]uuid.UUID, log *zap.Logger) error {
	for _, item := range seedMenu {
		var existing uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM menu_items WHERE name = $1 LIMIT 1`, item.name).Scan(&existing)
		if err == nil {
			log.Info("menu item exists, skipping", zap.String("name", item.name))
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check menu item %q: %w", item.name, err)
		}

		var itemID uuid.UUID
		err = tx.QueryRow(ctx, `
			INSERT INTO menu_items (name, price, tax_rate) VALUES ($1, $2::text::numeric, $3::text::numeric) RETURNING id
		`, item.name, item.price, item.taxRate).Scan(&itemID)
		if err != nil {
			return fmt.Errorf("insert menu item %q: %w", item.name, err)
		}

		for _, mod := range item.modifiers {
			if _, err := tx.Exec(ctx, `
				INSERT INTO menu_modifiers (menu_item_id, name, price) VALUES ($1, $2, $3::text::numeric)
			`, itemID, mod.name, mod.price); err != nil {
				return fmt.Errorf("insert modifier %q: %w", mod.name, err)
			}
		}

		for ingredient, qty := range item.recipe {
			ingredientID, ok := ingredientIDs[ingredient]
			if !ok {
				return fmt.Errorf("recipe for %q references unknown ingredient %q", item.name, ingredient)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO menu_ingredients (menu_item_id, ingredient_id, quantity_required) VALUES ($1, $2, $3::text::numeric)
			`, itemID, ingredientID, qty); err != nil {
				return fmt.Errorf("insert recipe %q/%q: %w", item.name, ingredient, err)
			}
		}
		log.Info("created menu item", zap.String("name", item.name), zap.Stringer("id", itemID))
	}
	return nil
}

func seedCustomers(ctx context.Context, tx pgx.Tx, log *zap.Logger) error {
	customers := []struct {
		name, phone string
		gstin       *string
		state       string
	}{
		{"Walk-in Regular", "9800000001", nil, "29"},
		{"Lotus Traders", "9800000002", ptr("27AAAPL1234C1ZV"), "27"},
	}
	for _, c := range customers {
		var existing uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM customers WHERE phone = $1 LIMIT 1`, c.phone).Scan(&existing)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check customer %q: %w", c.name, err)
		}
		var id uuid.UUID
		if err := tx.QueryRow(ctx, `
			INSERT INTO customers (name, phone, gstin, state_code) VALUES ($1, $2, $3, $4) RETURNING id
		`, c.name, c.phone, c.gstin, c.state).Scan(&id); err != nil {
			return fmt.Errorf("insert customer %q: %w", c.name, err)
		}
		log.Info("created customer", zap.String("name", c.name), zap.Stringer("id", id))
	}
	return nil
}

// --- token ---

func tokenCmd() *cobra.Command {
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a staff JWT for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch role {
			case enum.StaffRoleManager, enum.StaffRoleCashier, enum.StaffRoleWaiter, enum.StaffRoleKitchen:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, uuid.New(), role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", enum.StaffRoleManager, "staff role")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
