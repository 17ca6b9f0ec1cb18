package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLogLevel = "info"

	DefaultTelegramWorkers = 8

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.8
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2
	DefaultGeminiTimeout     = 2 * time.Minute

	DefaultSunoBaseURL       = "https://api.sunoapi.org"
	DefaultSunoModel         = "V4_5PLUS"
	DefaultSunoNegativeTags  = "Heavy Metal, Upbeat Drums"
	DefaultSunoCallbackURL   = "https://example.com/callback"
	DefaultSunoTimeout       = 30 * time.Second
	DefaultSunoMaxLyricsLen  = 3000
	DefaultSunoMaxTitleLen   = 80
	DefaultSunoDownloadLimit = 50 * 1024 * 1024
	DefaultSunoMaxFailures   = 5
	DefaultSunoCooldown      = time.Minute

	DefaultVoiceTimeout  = 30 * time.Second
	DefaultVoiceMaxBytes = 20 * 1024 * 1024

	DefaultStorageDriver    = "file"
	DefaultStoragePath      = "message_store.json"
	DefaultStorageBatchSize = 10
	DefaultStorageTimezone  = "Europe/Moscow"

	DefaultThreadsMaxLen = 20
	DefaultThreadsKeep   = 11

	DefaultJobsInitialDelay   = 180 * time.Second
	DefaultJobsTransientDelay = 60 * time.Second
	DefaultJobsPendingDelay   = 30 * time.Second
	DefaultJobsErrorDelay     = 120 * time.Second
	DefaultJobsMaxPolls       = 60
	DefaultJobsMaxWait        = 30 * time.Minute
	DefaultJobsWorkers        = 4

	DefaultBotAutoReplyInterval = 20
	DefaultBotRecentHours       = 2
	DefaultBotWeekDays          = 7
)

// DefaultTasks is the scheduler configuration used when the file sets none.
var DefaultTasks = map[string]TaskConfig{
	"daily_report": {Enabled: true, Schedule: "0 59 23 * * *"},
	"thread_sweep": {Enabled: false, Schedule: "0 0 4 * * *"},
	"store_flush":  {Enabled: true, Schedule: "0 */5 * * * *"},
	"store_prune":  {Enabled: false, Schedule: "0 30 4 * * *"},
}

// DefaultMessages are the user-facing strings used when the file sets none.
var DefaultMessages = MessagesConfig{
	Welcome: "Hi! I summarize this chat. Try /sum, /top, /week, /recent, /date YYYY-MM-DD, " +
		"/topdate YYYY-MM-DD, /q QUESTION, /song, /ordersong WISH, /gift or /debug.",
	Help: "Commands:\n" +
		"/sum - summary of the last 24 hours\n" +
		"/top - top participants of the last 24 hours\n" +
		"/week - top participants of the week\n" +
		"/recent - what happened in the last hours\n" +
		"/date YYYY-MM-DD - summary for a date\n" +
		"/topdate YYYY-MM-DD - top participants for a date\n" +
		"/q QUESTION - ask a question (or start a message with ?)\n" +
		"/song - song of the day\n" +
		"/ordersong WISH - order a custom song\n" +
		"/gift - a gift for the chat director\n" +
		"/debug - chat statistics",
	ErrorGeneral:        "An error occurred. Please try again later.",
	ErrorUnauthorized:   "You are not authorized to use this command.",
	InvalidDate:         "Invalid date format. Use YYYY-MM-DD (for example 2024-07-20).",
	DateUsage:           "Provide a date in YYYY-MM-DD format, for example: /date 2024-07-20",
	NoMessages:          "No messages for %s.",
	SummaryFailed:       "Could not build the summary. Please try again later.",
	QuestionUsage:       "Type a question after the command, for example: /q how are you?",
	QuestionFailed:      "Could not process the question. Please try again later.",
	SongDisabled:        "Song generation is not configured.",
	SongComposing:       "Listening to the chat and writing a song...",
	SongFailed:          "Could not write a song. Maybe there were not enough messages in the last 24 hours.",
	SongSubmitted:       "I'm at the microphone, the music will be ready in about 3 minutes. I'll send it automatically.",
	SongSubmitFailed:    "Could not start music generation.",
	SongOrderUsage:      "Describe the song you want after the command, for example: /ordersong a ballad about our Friday",
	SongOrderPrompt:     "🎶 Write the theme or the lyrics of the song. I'll write the text and the music (2-3 minutes).",
	SongGenerationError: "Music generation failed (status %s). Try creating the song again.",
	SongTimedOut:        "Music generation is taking too long, I stopped waiting for it.",
	SongNoTracks:        "The music is ready (%s) but no tracks were returned.",
	GiftFailed:          "Could not pick a director today.",
	ResetConfirm:        "Stored messages for this chat have been cleared.",
}

// DefaultPrompts are the system instructions used when the file sets none.
var DefaultPrompts = PromptsConfig{
	Summary: "You read a group chat log and write a short, lively summary of the main topics, events and decisions.",
	Top:     "You read a group chat log and rank the most active and notable participants with a short comment for each.",
	Recent:  "You read the most recent part of a group chat log and briefly explain to a newcomer what is going on.",
	Chat:    "You are a helpful, witty assistant living in a group chat.",
	Song: "You write funny, memorable songs about what happened in a group chat. " +
		"Pick a genre and mood that match the chat, mention participants and key events, " +
		"write 2-3 verses and a chorus, and give a short style prompt for a music generator (max 200 characters).",
	Gift: "You read a group chat log, pick the chat director (the most active or influential participant) " +
		"and invent an absurd, funny gift tied to their activity. Explain why the gift fits.",
	Refine: "You are a songwriter. Make these lyrics rhyme better and flow more musically. " +
		"Keep the meaning, the names, the key events, the genre and mood, and roughly the same length. " +
		"Return only the improved lyrics.",
	Transcribe: "Transcribe this voice message word for word in its original language. " +
		"Return only the transcript.",
}

// setDefaults registers default values for every key so that environment
// variables can override keys that are absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.workers", DefaultTelegramWorkers)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelay)
	v.SetDefault("gemini.timeout", DefaultGeminiTimeout)

	v.SetDefault("suno.api_key", "")
	v.SetDefault("suno.base_url", DefaultSunoBaseURL)
	v.SetDefault("suno.model", DefaultSunoModel)
	v.SetDefault("suno.negative_tags", DefaultSunoNegativeTags)
	v.SetDefault("suno.callback_url", DefaultSunoCallbackURL)
	v.SetDefault("suno.timeout", DefaultSunoTimeout)
	v.SetDefault("suno.max_lyrics_len", DefaultSunoMaxLyricsLen)
	v.SetDefault("suno.max_title_len", DefaultSunoMaxTitleLen)
	v.SetDefault("suno.download_limit", DefaultSunoDownloadLimit)
	v.SetDefault("suno.max_failures", DefaultSunoMaxFailures)
	v.SetDefault("suno.cooldown", DefaultSunoCooldown)

	v.SetDefault("voice.enabled", true)
	v.SetDefault("voice.timeout", DefaultVoiceTimeout)
	v.SetDefault("voice.max_bytes", DefaultVoiceMaxBytes)

	v.SetDefault("storage.driver", DefaultStorageDriver)
	v.SetDefault("storage.path", DefaultStoragePath)
	v.SetDefault("storage.batch_size", DefaultStorageBatchSize)
	v.SetDefault("storage.retention", 0)
	v.SetDefault("storage.timezone", DefaultStorageTimezone)

	v.SetDefault("threads.max_len", DefaultThreadsMaxLen)
	v.SetDefault("threads.keep", DefaultThreadsKeep)

	v.SetDefault("jobs.initial_delay", DefaultJobsInitialDelay)
	v.SetDefault("jobs.transient_delay", DefaultJobsTransientDelay)
	v.SetDefault("jobs.pending_delay", DefaultJobsPendingDelay)
	v.SetDefault("jobs.error_delay", DefaultJobsErrorDelay)
	v.SetDefault("jobs.max_polls", DefaultJobsMaxPolls)
	v.SetDefault("jobs.max_wait", DefaultJobsMaxWait)
	v.SetDefault("jobs.workers", DefaultJobsWorkers)

	v.SetDefault("bot.auto_reply_interval", DefaultBotAutoReplyInterval)
	v.SetDefault("bot.recent_hours", DefaultBotRecentHours)
	v.SetDefault("bot.week_days", DefaultBotWeekDays)

	v.SetDefault("metrics.addr", "")

	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	m := DefaultMessages
	v.SetDefault("messages.welcome", m.Welcome)
	v.SetDefault("messages.help", m.Help)
	v.SetDefault("messages.error_general", m.ErrorGeneral)
	v.SetDefault("messages.error_unauthorized", m.ErrorUnauthorized)
	v.SetDefault("messages.invalid_date", m.InvalidDate)
	v.SetDefault("messages.date_usage", m.DateUsage)
	v.SetDefault("messages.no_messages", m.NoMessages)
	v.SetDefault("messages.summary_failed", m.SummaryFailed)
	v.SetDefault("messages.question_usage", m.QuestionUsage)
	v.SetDefault("messages.question_failed", m.QuestionFailed)
	v.SetDefault("messages.song_disabled", m.SongDisabled)
	v.SetDefault("messages.song_composing", m.SongComposing)
	v.SetDefault("messages.song_failed", m.SongFailed)
	v.SetDefault("messages.song_submitted", m.SongSubmitted)
	v.SetDefault("messages.song_submit_failed", m.SongSubmitFailed)
	v.SetDefault("messages.song_order_usage", m.SongOrderUsage)
	v.SetDefault("messages.song_order_prompt", m.SongOrderPrompt)
	v.SetDefault("messages.song_generation_error", m.SongGenerationError)
	v.SetDefault("messages.song_timed_out", m.SongTimedOut)
	v.SetDefault("messages.song_no_tracks", m.SongNoTracks)
	v.SetDefault("messages.gift_failed", m.GiftFailed)
	v.SetDefault("messages.reset_confirm", m.ResetConfirm)

	p := DefaultPrompts
	v.SetDefault("prompts.summary", p.Summary)
	v.SetDefault("prompts.top", p.Top)
	v.SetDefault("prompts.recent", p.Recent)
	v.SetDefault("prompts.chat", p.Chat)
	v.SetDefault("prompts.song", p.Song)
	v.SetDefault("prompts.gift", p.Gift)
	v.SetDefault("prompts.refine", p.Refine)
	v.SetDefault("prompts.transcribe", p.Transcribe)
}
