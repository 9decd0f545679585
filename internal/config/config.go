package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	OpenAI        OpenAIConfig        `mapstructure:"openai"`
	YouTube       YouTubeConfig       `mapstructure:"youtube"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Email         EmailConfig         `mapstructure:"email"`
	Digest        DigestConfig        `mapstructure:"digest"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the gorm driver and its connection settings.
// URL wins over the discrete postgres fields when both are set.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return normalizePostgresURL(c.URL)
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	// _busy_timeout keeps concurrent pipeline writers from failing with SQLITE_BUSY
	return c.Path + "?_busy_timeout=5000&_foreign_keys=on"
}

// normalizePostgresURL accepts the SQLAlchemy-style scheme used by older deployments.
func normalizePostgresURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.HasPrefix(u.Scheme, "postgresql+") {
		u.Scheme = "postgresql"
	}
	return u.String()
}

type OpenAIConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	AnalysisModel      string        `mapstructure:"analysis_model"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	Temperature        float64       `mapstructure:"temperature"`
	OutputLanguage     string        `mapstructure:"output_language"`
	AnalysisTimeout    time.Duration `mapstructure:"analysis_timeout"`
	UploadTimeout      time.Duration `mapstructure:"upload_timeout"`
	RequestsPerMinute  int           `mapstructure:"requests_per_minute"`
}

type YouTubeConfig struct {
	YtdlpPath        string        `mapstructure:"ytdlp_path"`
	FFmpegPath       string        `mapstructure:"ffmpeg_path"`
	FFprobePath      string        `mapstructure:"ffprobe_path"`
	DataAPIKey       string        `mapstructure:"data_api_key"`
	CaptionLanguages []string      `mapstructure:"caption_languages"`
	WorkDir          string        `mapstructure:"work_dir"`
	CommandTimeout   time.Duration `mapstructure:"command_timeout"`
}

type TranscriptionConfig struct {
	MaxUploadMB   float64 `mapstructure:"max_upload_mb"`
	TargetChunkMB float64 `mapstructure:"target_chunk_mb"`
}

// StorageConfig describes the optional S3-compatible audio archive.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmailConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	Recipient string `mapstructure:"recipient"`
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
}

// Configured reports whether enough is set to send mail.
func (c *EmailConfig) Configured() bool {
	return c.Address != "" && c.Password != "" && c.Recipient != ""
}

type DigestConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Hour      int    `mapstructure:"hour"`
	MaxVideos int    `mapstructure:"max_videos"`
	Subject   string `mapstructure:"subject"`
}

type JobsConfig struct {
	ResumeOnStartup bool          `mapstructure:"resume_on_startup"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	File        string `mapstructure:"file"`
	Environment string `mapstructure:"environment"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("openai.analysis_model", "OPENAI_MODEL")
	v.BindEnv("youtube.data_api_key", "YOUTUBE_API_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("email.address", "EMAIL_ADDRESS")
	v.BindEnv("email.password", "EMAIL_PASSWORD")
	v.BindEnv("email.recipient", "RECIPIENT_EMAIL")
	v.BindEnv("digest.hour", "REVIEW_EMAIL_HOUR")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// A DATABASE_URL alone implies postgres.
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
		if cfg.Database.URL != "" {
			cfg.Database.Driver = "postgres"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.path", "./data/knowledge.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_queries", false)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.analysis_model", "gpt-4o-mini")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.output_language", "Vietnamese")
	v.SetDefault("openai.analysis_timeout", 3*time.Minute)
	v.SetDefault("openai.upload_timeout", 5*time.Minute)
	v.SetDefault("openai.requests_per_minute", 50)

	v.SetDefault("youtube.ytdlp_path", "yt-dlp")
	v.SetDefault("youtube.ffmpeg_path", "ffmpeg")
	v.SetDefault("youtube.ffprobe_path", "ffprobe")
	v.SetDefault("youtube.caption_languages", []string{"en", "vi"})
	v.SetDefault("youtube.work_dir", "")
	v.SetDefault("youtube.command_timeout", 10*time.Minute)

	v.SetDefault("transcription.max_upload_mb", 25)
	v.SetDefault("transcription.target_chunk_mb", 20)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "knowledge-audio")
	v.SetDefault("storage.prefix", "audio")

	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "videos")
	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)

	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 465)

	v.SetDefault("digest.enabled", true)
	v.SetDefault("digest.hour", 8)
	v.SetDefault("digest.max_videos", 3)
	v.SetDefault("digest.subject", "Your daily knowledge review")

	v.SetDefault("jobs.resume_on_startup", true)
	v.SetDefault("jobs.run_timeout", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "local")
	v.SetDefault("log.file", "./logs/app.log")
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Transcription.MaxUploadMB <= 0 || c.Transcription.TargetChunkMB <= 0 {
		return fmt.Errorf("transcription limits must be positive")
	}
	if c.Transcription.TargetChunkMB > c.Transcription.MaxUploadMB {
		return fmt.Errorf("transcription.target_chunk_mb (%v) exceeds max_upload_mb (%v)",
			c.Transcription.TargetChunkMB, c.Transcription.MaxUploadMB)
	}
	if c.Digest.Hour < 0 || c.Digest.Hour > 23 {
		return fmt.Errorf("digest.hour must be within 0-23, got %d", c.Digest.Hour)
	}
	if c.Digest.MaxVideos < 1 {
		return fmt.Errorf("digest.max_videos must be at least 1")
	}
	if c.Qdrant.Enabled {
		if err := c.Embedding.Validate(); err != nil {
			return err
		}
	}
	return nil
}
