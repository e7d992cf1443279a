// Command migrate applies schema migrations to the wallet database.
//
// Usage:
//
//	migrate [-path ./migrations] [-database-url URL] [command] [steps]
//
// Commands: up, down, force <version>, version, drop, create <name>.
// The database URL falls back to DATABASE_URL, then to the service
// configuration (WALLETCORE_DATABASE_PRIMARY_* or the DB_* shorthand).
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/Haleralex/walletcore/internal/config"
)

func main() {
	var (
		migrationsPath string
		databaseURL    string
		command        string
		steps          int
	)

	flag.StringVar(&migrationsPath, "path", "./migrations", "Path to migrations directory")
	flag.StringVar(&databaseURL, "database-url", "", "Database connection URL")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, force, version, drop")
	flag.IntVar(&steps, "steps", 0, "Number of steps for up/down (0 = all)")
	flag.Parse()

	// Positional arguments override the flags: `migrate down 1`.
	args := flag.Args()
	if len(args) > 0 {
		command = args[0]
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			steps = n
		}
	}

	m, err := migrate.New("file://"+migrationsPath, resolveDatabaseURL(databaseURL))
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}
	defer m.Close()
	m.Log = &migrationLogger{}

	if err := run(m, command, args, steps); err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

// resolveDatabaseURL picks the connection string: the flag, DATABASE_URL,
// or the DSN built from the service configuration.
func resolveDatabaseURL(fromFlag string) string {
	if fromFlag != "" {
		return fromFlag
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	return cfg.Database.Primary.DSN()
}

func run(m *migrate.Migrate, command string, args []string, steps int) error {
	switch command {
	case "up":
		return runUp(m, steps)
	case "down":
		return runDown(m, steps)
	case "force":
		return runForce(m, args)
	case "version":
		return runVersion(m)
	case "drop":
		return runDrop(m)
	case "create":
		return runCreate(args)
	default:
		return fmt.Errorf("unknown command %q (available: up, down, force, version, drop, create)", command)
	}
}

func runUp(m *migrate.Migrate, steps int) error {
	var err error
	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	fmt.Println("Migrations applied successfully")
	return nil
}

func runDown(m *migrate.Migrate, steps int) error {
	var err error
	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	fmt.Println("Migrations rolled back successfully")
	return nil
}

func runForce(m *migrate.Migrate, args []string) error {
	if len(args) < 2 {
		return errors.New("force requires a version argument")
	}
	version, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid version: %w", err)
	}
	if err := m.Force(version); err != nil {
		return err
	}
	fmt.Printf("Forced version to %d\n", version)
	return nil
}

func runVersion(m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied yet")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func runDrop(m *migrate.Migrate) error {
	if err := m.Drop(); err != nil {
		return err
	}
	fmt.Println("All tables dropped successfully")
	return nil
}

func runCreate(args []string) error {
	if len(args) < 2 {
		return errors.New("create requires a migration name")
	}
	name := args[1]
	fmt.Printf("Creating migration: %s\n", name)
	fmt.Println("Please create files manually:")
	fmt.Printf("  migrations/XXXXXX_%s.up.sql\n", name)
	fmt.Printf("  migrations/XXXXXX_%s.down.sql\n", name)
	return nil
}

// migrationLogger adapts the standard logger to the migrate.Logger interface.
type migrationLogger struct{}

func (l *migrationLogger) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

func (l *migrationLogger) Verbose() bool {
	return true
}
