// Package config provides configuration loading, validation, and management
// for chatd. It reads a YAML file, overlays CHATD_* environment variables,
// fills defaults for optional fields, and validates the result.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Suno      SunoConfig      `mapstructure:"suno"`
	Voice     VoiceConfig     `mapstructure:"voice"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Threads   ThreadsConfig   `mapstructure:"threads"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Bot       BotConfig       `mapstructure:"bot"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds Telegram bot credentials and runtime bot identity.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"gte=0"`
	Workers     int    `mapstructure:"workers"       validate:"min=1,max=256"`

	// BotInfo is filled at startup from getMe, never from the config file.
	BotInfo *models.User `mapstructure:"-"`
}

// GeminiConfig configures the Gemini client used for summaries, chat and songs.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"             validate:"required"`
	ModelName         string        `mapstructure:"model_name"          validate:"required"`
	Temperature       float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"min=1s,max=10m"`
}

// SunoConfig configures the music generation API client.
type SunoConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"        validate:"required,url"`
	Model         string        `mapstructure:"model"           validate:"required"`
	NegativeTags  string        `mapstructure:"negative_tags"`
	CallbackURL   string        `mapstructure:"callback_url"    validate:"required,url"`
	Timeout       time.Duration `mapstructure:"timeout"         validate:"min=1s,max=5m"`
	MaxLyricsLen  int           `mapstructure:"max_lyrics_len"  validate:"min=100"`
	MaxTitleLen   int           `mapstructure:"max_title_len"   validate:"min=10"`
	DownloadLimit int64         `mapstructure:"download_limit"  validate:"min=1024"`
	MaxFailures   uint32        `mapstructure:"max_failures"    validate:"min=1"`
	Cooldown      time.Duration `mapstructure:"cooldown"        validate:"min=1s"`
}

// Enabled reports whether song generation is configured.
func (c SunoConfig) Enabled() bool {
	return c.APIKey != ""
}

// VoiceConfig controls transcription of voice messages into the store.
type VoiceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"   validate:"min=1s,max=5m"`
	MaxBytes int64         `mapstructure:"max_bytes" validate:"min=1"`
}

// StorageConfig configures the message store and its persistence backend.
type StorageConfig struct {
	Driver    string        `mapstructure:"driver"     validate:"oneof=file sqlite"`
	Path      string        `mapstructure:"path"       validate:"required"`
	BatchSize int           `mapstructure:"batch_size" validate:"min=1,max=10000"`
	Retention time.Duration `mapstructure:"retention"  validate:"min=0"`
	Timezone  string        `mapstructure:"timezone"   validate:"required,timezone"`
}

// ThreadsConfig bounds the per-chat question/answer thread cache.
type ThreadsConfig struct {
	MaxLen int `mapstructure:"max_len" validate:"min=2"`
	Keep   int `mapstructure:"keep"    validate:"min=1,ltfield=MaxLen"`
}

// JobsConfig controls the music generation polling state machine.
type JobsConfig struct {
	InitialDelay   time.Duration `mapstructure:"initial_delay"   validate:"min=1s"`
	TransientDelay time.Duration `mapstructure:"transient_delay" validate:"min=1s"`
	PendingDelay   time.Duration `mapstructure:"pending_delay"   validate:"min=1s"`
	ErrorDelay     time.Duration `mapstructure:"error_delay"     validate:"min=1s"`
	MaxPolls       int           `mapstructure:"max_polls"       validate:"min=1"`
	MaxWait        time.Duration `mapstructure:"max_wait"        validate:"min=1m"`
	Workers        int           `mapstructure:"workers"         validate:"min=1,max=64"`
}

// BotConfig holds behaviour switches for the chat handlers.
type BotConfig struct {
	// AutoReplyInterval makes the bot answer every Nth stored message; 0 disables it.
	AutoReplyInterval int `mapstructure:"auto_reply_interval" validate:"min=0"`
	RecentHours       int `mapstructure:"recent_hours"        validate:"min=1,max=72"`
	WeekDays          int `mapstructure:"week_days"           validate:"min=2,max=31"`
}

// MetricsConfig exposes Prometheus metrics; an empty Addr disables the listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// TaskConfig defines the configuration for a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// MessagesConfig holds every user-facing string.
type MessagesConfig struct {
	Welcome             string `mapstructure:"welcome"               validate:"required"`
	Help                string `mapstructure:"help"                  validate:"required"`
	ErrorGeneral        string `mapstructure:"error_general"         validate:"required"`
	ErrorUnauthorized   string `mapstructure:"error_unauthorized"    validate:"required"`
	InvalidDate         string `mapstructure:"invalid_date"          validate:"required"`
	DateUsage           string `mapstructure:"date_usage"            validate:"required"`
	NoMessages          string `mapstructure:"no_messages"           validate:"required"`
	SummaryFailed       string `mapstructure:"summary_failed"        validate:"required"`
	QuestionUsage       string `mapstructure:"question_usage"        validate:"required"`
	QuestionFailed      string `mapstructure:"question_failed"       validate:"required"`
	SongDisabled        string `mapstructure:"song_disabled"         validate:"required"`
	SongComposing       string `mapstructure:"song_composing"        validate:"required"`
	SongFailed          string `mapstructure:"song_failed"           validate:"required"`
	SongSubmitted       string `mapstructure:"song_submitted"        validate:"required"`
	SongSubmitFailed    string `mapstructure:"song_submit_failed"    validate:"required"`
	SongOrderUsage      string `mapstructure:"song_order_usage"      validate:"required"`
	SongOrderPrompt     string `mapstructure:"song_order_prompt"     validate:"required"`
	SongGenerationError string `mapstructure:"song_generation_error" validate:"required"`
	SongTimedOut        string `mapstructure:"song_timed_out"        validate:"required"`
	SongNoTracks        string `mapstructure:"song_no_tracks"        validate:"required"`
	GiftFailed          string `mapstructure:"gift_failed"           validate:"required"`
	ResetConfirm        string `mapstructure:"reset_confirm"         validate:"required"`
}

// PromptsConfig holds the system instructions handed to the summarizer.
type PromptsConfig struct {
	Summary string `mapstructure:"summary" validate:"required"`
	Top     string `mapstructure:"top"     validate:"required"`
	Recent  string `mapstructure:"recent"  validate:"required"`
	Chat    string `mapstructure:"chat"    validate:"required"`
	Song    string `mapstructure:"song"    validate:"required"`
	Gift    string `mapstructure:"gift"    validate:"required"`

	// Refine rewrites composed lyrics in a second pass; empty skips it.
	Refine     string `mapstructure:"refine"`
	Transcribe string `mapstructure:"transcribe" validate:"required"`
}

// Location resolves the canonical time zone. Validation guarantees the name is loadable.
func (c StorageConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
