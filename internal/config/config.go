package config

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	viper "github.com/spf13/viper"
)

/*
init : 設置 viper watch 與 onConfigChange
read : 一般讀取, 使用讀寫鎖
*/
var config_singleton *ConfigSingleTon
var muonce sync.Once

type ConfigSingleTon struct {
	Config *Config
	mu     sync.RWMutex
}

type Config struct {
	ServiceName string `mapstructure:"SERVICE_NAME"`
	ServerPort  string `mapstructure:"SERVER_PORT"`
	Env         string `mapstructure:"ENV"`

	DbName          string `mapstructure:"POSTGRES_DB"`
	DbHost          string `mapstructure:"POSTGRES_HOST"`
	DbPort          string `mapstructure:"POSTGRES_PORT"`
	DbUser          string `mapstructure:"POSTGRES_USER"`
	DbPas           string `mapstructure:"POSTGRES_PASSWORD"`
	MigrationURL    string `mapstructure:"DB_MIGRATION_URL"`
	SeedCatalogFile string `mapstructure:"SEED_CATALOG_FILE"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	ProductCacheTTL time.Duration `mapstructure:"PRODUCT_CACHE_TTL"`

	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	OrderEventTopic string `mapstructure:"ORDER_EVENT_TOPIC"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogKafkaTopic string `mapstructure:"LOG_KAFKA_TOPIC"`

	JwtSecret        string `mapstructure:"JWT_SECRET"`
	AuthTrustHeaders bool   `mapstructure:"AUTH_TRUST_HEADERS"`

	OrderNumberPrefix     string `mapstructure:"ORDER_NUMBER_PREFIX"`
	FreeShippingThreshold string `mapstructure:"FREE_SHIPPING_THRESHOLD"`
	FlatShippingFee       string `mapstructure:"FLAT_SHIPPING_FEE"`

	RateLimitType     string  `mapstructure:"RATE_LIMIT_TYPE"`
	RateLimitCapacity int     `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitRatePS   float64 `mapstructure:"RATE_LIMIT_RATE_PS"`
}

// KafkaBrokerList KAFKA_BROKERS 以逗號分隔, 空字串代表不啟用 kafka
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ShippingPolicy 解析失敗時退回預設值並記錄
func (c *Config) ShippingPolicy() (threshold decimal.Decimal, fee decimal.Decimal) {
	threshold = parseDecimal("FREE_SHIPPING_THRESHOLD", c.FreeShippingThreshold, decimal.NewFromInt(5000))
	fee = parseDecimal("FLAT_SHIPPING_FEE", c.FlatShippingFee, decimal.NewFromInt(250))
	return
}

func parseDecimal(key, raw string, fallback decimal.Decimal) decimal.Decimal {
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("invalid %s %q, fallback to %s", key, raw, fallback)
		return fallback
	}
	return d
}

func GetConfig() *Config {
	initConfig()
	config_singleton.mu.RLock()
	defer config_singleton.mu.RUnlock()
	return config_singleton.Config
}

func initConfig() {
	muonce.Do(func() {
		config_singleton = &ConfigSingleTon{}
		v := viper.GetViper()
		cf, err := loadConfig(v, configFile())
		if err != nil {
			log.Fatalf("error read config: %v", err)
		}
		config_singleton.Config = cf

		if v.ConfigFileUsed() == "" {
			return
		}
		v.OnConfigChange(func(e fsnotify.Event) {
			cf, err := loadConfig(v, "")
			if err != nil {
				log.Printf("failed to reload config file %s: %v", e.Name, err)
				return
			}
			config_singleton.mu.Lock()
			config_singleton.Config = cf
			config_singleton.mu.Unlock()
			log.Printf("config reloaded from %s", e.Name)
		})
		v.WatchConfig()
	})
}

// CONFIG_FILE 可指定設定檔, 預設讀取工作目錄下 .env
func configFile() string {
	if f := os.Getenv("CONFIG_FILE"); f != "" {
		return f
	}
	return ".env"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "storefront")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "lab_storefront")
	v.SetDefault("POSTGRES_USER", "royce")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("DB_MIGRATION_URL", "")
	v.SetDefault("SEED_CATALOG_FILE", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PRODUCT_CACHE_TTL", "5m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ORDER_EVENT_TOPIC", "storefront.order-events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_KAFKA_TOPIC", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("AUTH_TRUST_HEADERS", false)
	v.SetDefault("ORDER_NUMBER_PREFIX", "ORD")
	v.SetDefault("FREE_SHIPPING_THRESHOLD", "5000")
	v.SetDefault("FLAT_SHIPPING_FEE", "250")
	v.SetDefault("RATE_LIMIT_TYPE", "token_bucket")
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_RATE_PS", 1)
}

/*
單純回傳錯誤, 由外部決定要不要Fatal
設定檔不存在時只用環境變數與預設值
*/
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if file != "" {
		if _, err := os.Stat(file); err == nil {
			v.SetConfigFile(file)
			v.SetConfigType("env")
		}
	}
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cf := &Config{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, err
	}
	return cf, nil
}
