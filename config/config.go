package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de pricepool.
type Config struct {
	Market   MarketConfig   `yaml:"market"`
	Storage  StorageConfig  `yaml:"storage"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Resolver ResolverConfig `yaml:"resolver"`
	Lock     LockConfig     `yaml:"lock"`
	Log      LogConfig      `yaml:"log"`
}

// MarketConfig son los parámetros de los mercados nuevos.
type MarketConfig struct {
	Admin          string `yaml:"admin"`           // identidad del creador de mercados
	FeeBps         *int   `yaml:"fee_bps"`         // nil = 200 (2%); 0 es un valor válido
	AmountDecimals int32  `yaml:"amount_decimals"` // decimales con los que se muestran los importes
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// OracleConfig controla de dónde salen los precios y cómo se verifican.
type OracleConfig struct {
	HermesURL     string   `yaml:"hermes_url"`
	Verifier      string   `yaml:"verifier"` // trusted | signed
	Signers       []string `yaml:"signers"`  // direcciones 0x… autorizadas (verifier: signed)
	MaxAgeSeconds int      `yaml:"max_age_seconds"`
}

// ResolverConfig controla el bot de resolución.
type ResolverConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	Workers         int `yaml:"workers"`
	BatchSize       int `yaml:"batch_size"`
}

// LockConfig elige el lock por mercado: local (un solo proceso) o redis.
type LockConfig struct {
	Backend    string `yaml:"backend"` // local | redis
	TTLSeconds int    `yaml:"ttl_seconds"`
	Redis      struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TLS      bool   `yaml:"tls"`
	} `yaml:"redis"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Si el YAML no existe se usan los defaults y las variables de entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// FeeBps devuelve la comisión configurada.
func (c *Config) FeeBps() uint64 {
	return uint64(*c.Market.FeeBps)
}

// ResolveInterval devuelve el intervalo del resolver como time.Duration.
func (c *Config) ResolveInterval() time.Duration {
	return time.Duration(c.Resolver.IntervalSeconds) * time.Second
}

// MaxPriceAge devuelve la antigüedad máxima aceptada de un precio.
func (c *Config) MaxPriceAge() time.Duration {
	return time.Duration(c.Oracle.MaxAgeSeconds) * time.Second
}

// LockTTL devuelve el TTL del lock por mercado.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Lock.TTLSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PRICEPOOL_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("PRICEPOOL_ADMIN"); v != "" {
		cfg.Market.Admin = v
	}
	if v := os.Getenv("PRICEPOOL_SIGNERS"); v != "" {
		cfg.Oracle.Signers = strings.Split(v, ",")
	}
	if v := os.Getenv("PYTH_HERMES_URL"); v != "" {
		cfg.Oracle.HermesURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Lock.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Lock.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Lock.Redis.DB = db
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Market.Admin == "" {
		cfg.Market.Admin = "admin"
	}
	if cfg.Market.FeeBps == nil {
		fee := 200
		cfg.Market.FeeBps = &fee
	}
	if cfg.Market.AmountDecimals < 0 {
		cfg.Market.AmountDecimals = 0
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "pricepool.db"
	}
	if cfg.Oracle.HermesURL == "" {
		cfg.Oracle.HermesURL = "https://hermes.pyth.network"
	}
	if cfg.Oracle.Verifier == "" {
		cfg.Oracle.Verifier = "trusted"
	}
	if cfg.Oracle.MaxAgeSeconds <= 0 {
		cfg.Oracle.MaxAgeSeconds = 60
	}
	if cfg.Resolver.IntervalSeconds <= 0 {
		cfg.Resolver.IntervalSeconds = 60
	}
	if cfg.Resolver.Workers <= 0 {
		cfg.Resolver.Workers = 4
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "local"
	}
	if cfg.Lock.TTLSeconds <= 0 {
		cfg.Lock.TTLSeconds = 10
	}
	if cfg.Lock.Redis.Addr == "" {
		cfg.Lock.Redis.Addr = "localhost:6379"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if fee := *c.Market.FeeBps; fee < 0 || fee >= 10_000 {
		return fmt.Errorf("market.fee_bps %d out of range [0, 10000)", fee)
	}
	switch c.Oracle.Verifier {
	case "trusted":
	case "signed":
		if len(c.Oracle.Signers) == 0 {
			return fmt.Errorf("oracle.verifier signed requires oracle.signers")
		}
	default:
		return fmt.Errorf("oracle.verifier %q: want trusted or signed", c.Oracle.Verifier)
	}
	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("lock.backend %q: want local or redis", c.Lock.Backend)
	}
	return nil
}
