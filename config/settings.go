package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Catalog  CatalogSettings  `json:"catalog"`
	Cache    CacheSettings    `json:"cache"`
	Database DatabaseSettings `json:"database"`
	Sessions SessionSettings  `json:"sessions"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// CatalogSettings configures the external metadata service and the
// background refresh job.
type CatalogSettings struct {
	BaseURL              string `json:"baseUrl"`
	RefreshIntervalHours int    `json:"refreshIntervalHours"`
	MaxConcurrentRefresh int    `json:"maxConcurrentRefresh"`
}

// CacheSettings locates the writable data directory (profiles file, logs).
type CacheSettings struct {
	Directory string `json:"directory"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

type SessionSettings struct {
	TTLHours int `json:"ttlHours"`
}

// LogConfig configures log rotation.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8585},
		Catalog: CatalogSettings{
			BaseURL:              "https://api.tvmaze.com",
			RefreshIntervalHours: 12,
			MaxConcurrentRefresh: 4,
		},
		Cache:    CacheSettings{Directory: "cache"},
		Database: DatabaseSettings{Path: "cache/showlog.db"},
		Sessions: SessionSettings{TTLHours: 720},
		Log: LogConfig{
			File:       "cache/logs/backend.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults when the config predates a setting.
	defaults := DefaultSettings()
	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = defaults.Server.Host
	}
	if s.Server.Port == 0 {
		s.Server.Port = defaults.Server.Port
	}
	if strings.TrimSpace(s.Catalog.BaseURL) == "" {
		s.Catalog.BaseURL = defaults.Catalog.BaseURL
	}
	if s.Catalog.RefreshIntervalHours == 0 {
		s.Catalog.RefreshIntervalHours = defaults.Catalog.RefreshIntervalHours
	}
	if s.Catalog.MaxConcurrentRefresh == 0 {
		s.Catalog.MaxConcurrentRefresh = defaults.Catalog.MaxConcurrentRefresh
	}
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = defaults.Cache.Directory
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		s.Database.Path = defaults.Database.Path
	}
	if s.Sessions.TTLHours == 0 {
		s.Sessions.TTLHours = defaults.Sessions.TTLHours
	}
	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = defaults.Log.File
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = defaults.Log.MaxSize
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = defaults.Log.MaxBackups
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = defaults.Log.MaxAge
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
