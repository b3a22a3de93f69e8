package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string
}

type StorageConfig struct {
	Backend string
	Dir     string
}

type ScheduleConfig struct {
	Times    string
	Timezone string
}

type SlackConfig struct {
	BotToken      string
	ChannelID     string
	SigningSecret string
}

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type ServerConfig struct {
	Addr string
}

type FarmConfig struct {
	CriticalAfterDays int
	ImportCycleDays   int
	IDStrategy        string
}

type Config struct {
	MQTT     MQTTConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Schedule ScheduleConfig
	Slack    SlackConfig
	Influx   InfluxConfig
	Server   ServerConfig
	Farm     FarmConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "farm.db")

	v.SetDefault("storage.backend", "database")
	v.SetDefault("storage.dir", "data")

	v.SetDefault("mqtt.clientid", "farm-monitor")
	v.SetDefault("mqtt.topicprefix", "farm")

	v.SetDefault("schedule.timezone", "Asia/Bangkok")

	v.SetDefault("server.addr", ":3005")

	v.SetDefault("farm.criticalafterdays", 3)
	v.SetDefault("farm.importcycledays", 3)
	v.SetDefault("farm.idstrategy", "sequence")
}

// envBindings maps config keys to environment variable names.
var envBindings = [][2]string{
	{"database.driver", "DB_DRIVER"},
	{"database.host", "DB_HOST"},
	{"database.port", "DB_PORT"},
	{"database.user", "DB_USER"},
	{"database.password", "DB_PASSWORD"},
	{"database.dbname", "DB_NAME"},
	{"database.sslmode", "DB_SSLMODE"},
	{"database.path", "DB_PATH"},

	{"storage.backend", "STORAGE_BACKEND"},
	{"storage.dir", "STORAGE_DIR"},

	{"mqtt.broker", "MQTT_BROKER"},
	{"mqtt.clientid", "MQTT_CLIENT_ID"},
	{"mqtt.username", "MQTT_USERNAME"},
	{"mqtt.password", "MQTT_PASSWORD"},
	{"mqtt.topicprefix", "MQTT_TOPIC_PREFIX"},

	{"schedule.times", "SCHEDULE_TIMES"},
	{"schedule.timezone", "SCHEDULE_TIMEZONE"},

	{"slack.bottoken", "SLACK_BOT_TOKEN"},
	{"slack.channelid", "SLACK_CHANNEL_ID"},
	{"slack.signingsecret", "SLACK_SIGNING_SECRET"},

	{"influx.url", "INFLUX_URL"},
	{"influx.token", "INFLUX_TOKEN"},
	{"influx.org", "INFLUX_ORG"},
	{"influx.bucket", "INFLUX_BUCKET"},

	{"server.addr", "SERVER_ADDR"},

	{"farm.criticalafterdays", "FARM_CRITICAL_AFTER_DAYS"},
	{"farm.importcycledays", "FARM_IMPORT_CYCLE_DAYS"},
	{"farm.idstrategy", "FARM_ID_STRATEGY"},
}

func LoadConfig() (*Config, error) {
	log.Println("--- Starting Configuration Loading ---")
	v := viper.New()
	setDefaults(v)

	for _, b := range envBindings {
		v.BindEnv(b[0], b[1])
	}
	log.Println("[1] Explicit environment variable binding configured.")

	env := os.Getenv("APP_ENV")
	if env == "" {
		log.Println("[2] APP_ENV not set, defaulting to 'local'.")
		env = "local"
	} else {
		log.Printf("[2] APP_ENV is set to '%s'.", env)
	}

	if env == "local" {
		log.Println("[3] Attempting to load .env.local file...")
		v.SetConfigFile(".env.local")
		v.SetConfigType("env")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				log.Printf("Error: Failed to read config file .env.local: %v", err)
				return nil, fmt.Errorf("error reading config file .env.local: %w", err)
			}
			log.Println("Info: .env.local not found, which is acceptable. Relying on environment variables.")
		} else {
			log.Printf("Success: Loaded configuration from %s", v.ConfigFileUsed())
			// .env.local keys are the variable names themselves; real environment variables still win.
			for _, b := range envBindings {
				if name := strings.ToLower(b[1]); v.InConfig(name) {
					v.SetDefault(b[0], v.Get(name))
				}
			}
		}
	} else {
		log.Printf("[3] Skipping .env file loading because APP_ENV is '%s'.", env)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	log.Println("[4] Unmarshaling settings into Config struct...")
	if err := v.Unmarshal(&config); err != nil {
		log.Printf("Error: Failed to unmarshal config: %v", err)
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	log.Printf("[5] Storage backend '%s', server address '%s'.", config.Storage.Backend, config.Server.Addr)
	return &config, nil
}

// Validate rejects settings the service cannot start with.
func (cfg *Config) Validate() error {
	switch cfg.Storage.Backend {
	case "database", "file":
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Farm.ImportCycleDays < 1 {
		return fmt.Errorf("import cycle days must be at least 1, got %d", cfg.Farm.ImportCycleDays)
	}
	if cfg.Farm.CriticalAfterDays < 0 {
		return fmt.Errorf("critical after days must not be negative, got %d", cfg.Farm.CriticalAfterDays)
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (cfg *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.Port,
		cfg.Database.SSLMode,
	)
}

// MQTTEnabled reports whether a broker was configured.
func (cfg *Config) MQTTEnabled() bool {
	return cfg.MQTT.Broker != ""
}

// InfluxEnabled reports whether every InfluxDB setting is present.
func (cfg *Config) InfluxEnabled() bool {
	return cfg.Influx.URL != "" && cfg.Influx.Token != "" && cfg.Influx.Org != "" && cfg.Influx.Bucket != ""
}
