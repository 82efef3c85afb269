package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	WorkerPool WorkerPoolConfig `mapstructure:"worker_pool"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Invite     InviteConfig     `mapstructure:"invite"`
	Discussion DiscussionConfig `mapstructure:"discussion"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Websocket  WebsocketConfig  `mapstructure:"websocket"`
}

type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	Mode   string `mapstructure:"mode"`
	NodeID int64  `mapstructure:"node_id"` // 标识生成器的节点号，多实例部署时需唯一
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

// RateLimitConfig 限流配置，单位为每分钟请求数
type RateLimitConfig struct {
	RedeemPerMinute   int `mapstructure:"redeem_per_minute"`
	CommentPerMinute  int `mapstructure:"comment_per_minute"`
	ReactionPerMinute int `mapstructure:"reaction_per_minute"`
	APIPerMinute      int `mapstructure:"api_per_minute"`
}

type WorkerPoolConfig struct {
	Size       int           `mapstructure:"size"`
	QueueSize  int           `mapstructure:"queue_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

type KafkaConfig struct {
	Brokers      []string       `mapstructure:"brokers"`
	WelcomeTopic string         `mapstructure:"welcome_topic"`
	Producer     ProducerConfig `mapstructure:"producer"`
}

type ProducerConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type InviteConfig struct {
	Prefix        string        `mapstructure:"prefix"`
	Segments      int           `mapstructure:"segments"`
	SegmentLength int           `mapstructure:"segment_length"`
	ValidFor      time.Duration `mapstructure:"valid_for"`
	WelcomeURL    string        `mapstructure:"welcome_url"`
}

type DiscussionConfig struct {
	MinContentLength int `mapstructure:"min_content_length"`
	MaxContentLength int `mapstructure:"max_content_length"`
	MaxTitleLength   int `mapstructure:"max_title_length"`
}

type RealtimeConfig struct {
	JoinTimeout time.Duration `mapstructure:"join_timeout"`
}

type WebsocketConfig struct {
	PongWaitSeconds int `mapstructure:"pong_wait_seconds"`
	SendBuffer      int `mapstructure:"send_buffer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.node_id", 1)

	v.SetDefault("postgres.host", "127.0.0.1")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 50)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.refresh_hours", 2)

	v.SetDefault("ratelimit.redeem_per_minute", 10)
	v.SetDefault("ratelimit.comment_per_minute", 30)
	v.SetDefault("ratelimit.reaction_per_minute", 120)
	v.SetDefault("ratelimit.api_per_minute", 600)

	v.SetDefault("worker_pool.size", 8)
	v.SetDefault("worker_pool.queue_size", 1024)
	v.SetDefault("worker_pool.job_timeout", 10*time.Second)

	v.SetDefault("kafka.welcome_topic", "eiga.mail.welcome")
	v.SetDefault("kafka.producer.max_retries", 3)
	v.SetDefault("kafka.producer.retry_backoff_ms", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("invite.prefix", "EIGA")
	v.SetDefault("invite.segments", 3)
	v.SetDefault("invite.segment_length", 4)
	v.SetDefault("invite.valid_for", 7*24*time.Hour)
	v.SetDefault("invite.welcome_url", "http://localhost:9000/welcome")

	v.SetDefault("discussion.min_content_length", 1)
	v.SetDefault("discussion.max_content_length", 10000)
	v.SetDefault("discussion.max_title_length", 120)

	v.SetDefault("realtime.join_timeout", 3*time.Second)

	v.SetDefault("websocket.pong_wait_seconds", 60)
	v.SetDefault("websocket.send_buffer", 64)
}

// LoadConfig 读取 TOML 配置文件，环境变量 EIGA_* 可覆盖任意键 (例如 EIGA_REDIS_HOST)
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EIGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 检查启动所必需的配置项
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	// segments 包含前缀，至少还需一段随机字符
	if c.Invite.Segments < 2 || c.Invite.SegmentLength < 1 {
		return fmt.Errorf("invite.segments must be at least 2 and invite.segment_length positive")
	}
	if c.Discussion.MinContentLength < 1 {
		return fmt.Errorf("discussion.min_content_length must be at least 1")
	}
	if c.Realtime.JoinTimeout <= 0 {
		return fmt.Errorf("realtime.join_timeout must be positive")
	}
	return nil
}
