package config

// Config is the daemon configuration file.
//
// Note the split with the settings store: this file configures the process
// (sinks, schedules, storage location), while delivery credentials and the
// deep-link base URL live in the host-owned settings/metadata tables.
type Config struct {
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Overdue  OverdueConfig  `json:"overdue"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (e.g. "500ms").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Ops     LoggingOps  `json:"ops"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingOps mirrors warnings/errors to a Telegram operations chat using the
// globally configured bot credentials.
type LoggingOps struct {
	Enabled    bool   `json:"enabled"`
	ChatID     string `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type TelegramConfig struct {
	// SendTimeout is a Go duration string bounding one Bot API call.
	SendTimeout string `json:"send_timeout"`
}

// OverdueConfig controls the scheduled overdue-task scan.
type OverdueConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"` // cron spec, default "0 8 * * *"
	Timezone string `json:"timezone,omitempty"`
}
