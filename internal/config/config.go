package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DatabaseURL is the Postgres connection string. When empty, the server
	// falls back to the embedded SQLite database at SQLitePath.
	DatabaseURL string

	// SQLitePath is the SQLite database file used when DatabaseURL is unset.
	SQLitePath string

	// UploadDir is the directory uploaded images are written to.
	UploadDir string

	// PublicBaseURL is the externally reachable base URL, used to build
	// upload URLs.
	PublicBaseURL string

	// BlobServiceURL, when set, routes image uploads to an external media
	// service instead of the local upload directory.
	BlobServiceURL string

	// BlobServiceToken is the bearer token for the media service.
	BlobServiceToken string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "thoughtbox.db"
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", port)
	}

	return &Config{
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       sqlitePath,
		UploadDir:        uploadDir,
		PublicBaseURL:    baseURL,
		BlobServiceURL:   os.Getenv("BLOB_SERVICE_URL"),
		BlobServiceToken: os.Getenv("BLOB_SERVICE_TOKEN"),
	}, nil
}
