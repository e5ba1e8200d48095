package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir      string // directory holding the CSV tables
	DatabasePath string // sqlite trigger store
	SettingsPath string // optional settings yaml
	Timezone     *time.Location
	DailySpec    string // cron spec for the daily planning job

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
}

func Load() (*Config, error) {
	// best effort: a missing .env just means plain environment
	_ = godotenv.Load()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/remindbot.db"
	}

	settingsPath := os.Getenv("SETTINGS_PATH")
	if settingsPath == "" {
		settingsPath = "./data/settings.yaml"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Asia/Tokyo"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	dailySpec := os.Getenv("DAILY_CRON_SPEC")
	if dailySpec == "" {
		dailySpec = "0 0 * * *"
	}

	return &Config{
		DataDir:        dataDir,
		DatabasePath:   dbPath,
		SettingsPath:   settingsPath,
		Timezone:       tz,
		DailySpec:      dailySpec,
		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
	}, nil
}
