// Command seed populates the database with demo accounts and posts for local
// development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"thoughtbox/internal/domain"
	"thoughtbox/internal/postgres"
	"thoughtbox/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type seedUser struct {
	username string
	email    string
	posts    []seedPost
}

type seedPost struct {
	title       string
	description string
	imageURL    string
}

var demo = []seedUser{
	{
		username: "ada",
		email:    "ada@example.com",
		posts: []seedPost{
			{"first light", "sunrise over the harbor", "https://picsum.photos/seed/light/800"},
			{"engine room", "where the real work happens", "https://picsum.photos/seed/engine/800"},
		},
	},
	{
		username: "grace",
		email:    "grace@example.com",
		posts: []seedPost{
			{"harbor walk", "an evening by the water", "https://picsum.photos/seed/harbor/800"},
		},
	},
	{
		username: "linus",
		email:    "linus@example.com",
		posts:    nil,
	},
}

type repositories interface {
	domain.UserRepository
	domain.PostRepository
	Close() error
}

func run() error {
	godotenv.Load()

	var (
		databaseURL string
		sqlitePath  string
		password    string
	)
	flag.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (defaults to sqlite when empty)")
	flag.StringVar(&sqlitePath, "sqlite-path", envOrDefault("SQLITE_PATH", "thoughtbox.db"), "SQLite database file")
	flag.StringVar(&password, "password", "password", "Password assigned to every demo account")
	flag.Parse()

	ctx := context.Background()

	var repo repositories
	var err error
	if databaseURL != "" {
		repo, err = postgres.NewRepository(ctx, databaseURL)
	} else {
		repo, err = sqlite.NewRepository(ctx, sqlitePath)
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	for _, su := range demo {
		user := &domain.User{
			ID:           uuid.NewString(),
			Username:     su.username,
			Email:        su.email,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user %s: %w", su.username, err)
		}
		fmt.Printf("created user %s (%s)\n", su.username, user.ID)

		for i, sp := range su.posts {
			at := now.Add(time.Duration(i) * time.Minute)
			post := &domain.Post{
				ID:          uuid.NewString(),
				UserID:      user.ID,
				Title:       sp.title,
				Description: sp.description,
				ImageURL:    sp.imageURL,
				CreatedAt:   at,
				UpdatedAt:   at,
			}
			if err := repo.CreatePost(ctx, post); err != nil {
				return fmt.Errorf("create post %q: %w", sp.title, err)
			}
			fmt.Printf("  created post %q\n", sp.title)
		}
	}

	fmt.Printf("done: %d users seeded, password %q\n", len(demo), password)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
