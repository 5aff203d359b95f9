package config

import "time"

const (
	RepoTypeMemory = "memory"
	RepoTypeDB     = "db"

	InboxTypeMemory = "memory"
	InboxTypeRedis  = "redis"
)

// HotOrNotConfig holds the configuration of one settlement instance
type HotOrNotConfig struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Allocator AllocatorConfig
	Notify    NotifyConfig
	Admin     AdminHTTPConfig

	// Address other instances and the resolver know this instance by. Empty
	// means the outbound IP plus the gRPC port.
	InstanceAddr string
	RepoType     string // memory | db
	InboxType    string // memory | redis
	InboxLimit   int
}

// KafkaConfig is optional; no brokers disables the slot trigger consumer.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// AllocatorConfig points at the orchestrator granting resource units. An
// empty address disables top-up requests.
type AllocatorConfig struct {
	Addr string
}

type NotifyConfig struct {
	CallTimeout time.Duration // 0 means no local timeout
}

type AdminHTTPConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadHotOrNotConfig loads configuration for the Hot/Not service
func LoadHotOrNotConfig() *HotOrNotConfig {
	grpcPort := getEnv("HOT_OR_NOT_GRPC_PORT", "50061")

	return &HotOrNotConfig{
		Server: ServerConfig{
			Port:     grpcPort,
			HTTPPort: getEnv("HOT_OR_NOT_HTTP_PORT", "8090"),
			Name:     "hot-or-not-service",
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", ""),
		},
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS"),
			Topic:       getEnv("KAFKA_SLOT_TOPIC", "hot_or_not.slots"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "hot-or-not-settlement"),
			PollTimeout: getEnvDuration("KAFKA_POLL_TIMEOUT", 5*time.Second),
		},
		Allocator: AllocatorConfig{
			Addr: getEnv("ALLOCATOR_ADDR", ""),
		},
		Notify: NotifyConfig{
			CallTimeout: getEnvDuration("NOTIFY_CALL_TIMEOUT", 0),
		},
		Admin: AdminHTTPConfig{
			RateLimitRPS:   getEnvFloat("ADMIN_RATE_LIMIT_RPS", 20),
			RateLimitBurst: getEnvInt("ADMIN_RATE_LIMIT_BURST", 40),
		},
		InstanceAddr: getEnv("INSTANCE_ADDR", ""),
		RepoType:     getEnv("HOT_OR_NOT_REPO_TYPE", RepoTypeMemory),
		InboxType:    getEnv("HOT_OR_NOT_INBOX_TYPE", InboxTypeMemory),
		InboxLimit:   getEnvInt("HOT_OR_NOT_INBOX_LIMIT", 1000),
	}
}
