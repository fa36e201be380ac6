package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
)

const defaultDir = "internal/adapters/repository/postgres/migrations"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	var dir, databaseURL string
	var down bool
	fs := pflag.NewFlagSet("migrations", pflag.ContinueOnError)
	fs.StringVar(&dir, "dir", defaultDir, "directory holding the .up.sql and .down.sql files")
	fs.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	fs.BoolVar(&down, "down", false, "apply the .down.sql files in reverse order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if databaseURL == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	direction := "up"
	if down {
		direction = "down"
	}
	files, err := migrationFiles(dir, direction, fs.Arg(0))
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing %s: %w", name, err)
		}
		slog.Info("migration applied", "file", name)
	}
	return nil
}

// migrationFiles lists the files for direction, ordered for application.
// A non-empty name restricts the result to files matching it.
func migrationFiles(dir, direction, name string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	pattern := fmt.Sprintf(`^.*%s.*\.%s\.sql$`, regexp.QuoteMeta(name), direction)
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid migration name: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !regex.MatchString(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s migration found in %s", direction, dir)
	}

	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}
