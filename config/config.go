package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine  EngineConfig      `yaml:"engine"`
	Pairs   []PairConfig      `yaml:"pairs"`
	Aliases map[string]string `yaml:"aliases"` // token de la señal → par
	API     APIConfig         `yaml:"api"`
	Storage StorageConfig     `yaml:"storage"`
	Log     LogConfig         `yaml:"log"`
	Metrics MetricsConfig     `yaml:"metrics"`

	// Credenciales: solo desde el entorno (.env), nunca desde el YAML.
	Kraken  KrakenCredentials  `yaml:"-"`
	Twitter TwitterCredentials `yaml:"-"`
}

// EngineConfig controla el bucle de reconciliación.
type EngineConfig struct {
	IntervalSeconds int  `yaml:"interval_seconds"`
	DryRun          bool `yaml:"dry_run"` // loguea las escrituras en el venue sin enviarlas
}

// PairConfig es un par seguido, tal como aparece en el YAML.
type PairConfig struct {
	Pair          string `yaml:"pair"`           // identificador usado en las señales, ej. ETHUSD
	Budget        string `yaml:"budget"`         // importe en moneda de cotización, o "available"
	VenuePair     string `yaml:"venue_pair"`     // código del mercado en Kraken, ej. ETHEUR
	BaseAsset     string `yaml:"base_asset"`     // ej. XETH
	QuoteAsset    string `yaml:"quote_asset"`    // ej. ZEUR
	SourceAccount string `yaml:"source_account"` // cuenta que publica las señales
	Dust          string `yaml:"dust"`           // default 0.0001
	MinNotional   string `yaml:"min_notional"`   // default 5
	OrderKind     string `yaml:"order_kind"`     // market | limit
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	KrakenBase  string `yaml:"kraken_base"`
	TwitterBase string `yaml:"twitter_base"`
	// Posts por página del timeline (max_results): 5-100.
	TwitterPageSize int `yaml:"twitter_page_size"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig expone /metrics si Addr no está vacío.
type MetricsConfig struct {
	Addr      string `yaml:"addr"` // ej. ":9102"
	Namespace string `yaml:"namespace"`
}

// KrakenCredentials son las claves de la API privada.
type KrakenCredentials struct {
	APIKey    string
	APISecret string
}

// TwitterCredentials es el bearer token de la API v2.
type TwitterCredentials struct {
	BearerToken string
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben credenciales, logging y storage.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse decodifica el YAML, aplica el entorno y los defaults, y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Interval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// Validate rechaza pares incompletos, duplicados o con importes inválidos.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return errors.New("validate: no pairs configured")
	}

	var errs []error
	seen := make(map[string]bool)
	for i, p := range c.Pairs {
		name := p.Pair
		if name == "" {
			name = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Errorf("pair %s: missing pair", name))
		}
		if seen[p.Pair] {
			errs = append(errs, fmt.Errorf("pair %s: duplicated", name))
		}
		seen[p.Pair] = true

		for _, f := range []struct{ field, value string }{
			{"venue_pair", p.VenuePair},
			{"base_asset", p.BaseAsset},
			{"quote_asset", p.QuoteAsset},
			{"source_account", p.SourceAccount},
		} {
			if f.value == "" {
				errs = append(errs, fmt.Errorf("pair %s: missing %s", name, f.field))
			}
		}
		if _, err := domain.ParseBudget(p.Budget); err != nil {
			errs = append(errs, fmt.Errorf("pair %s: budget: %w", name, err))
		}
		for _, f := range []struct{ field, value string }{
			{"dust", p.Dust},
			{"min_notional", p.MinNotional},
		} {
			if d, err := decimal.NewFromString(f.value); err != nil || d.IsNegative() {
				errs = append(errs, fmt.Errorf("pair %s: invalid %s %q", name, f.field, f.value))
			}
		}
		if kind := domain.OrderKind(p.OrderKind); kind != domain.OrderMarket && kind != domain.OrderLimit {
			errs = append(errs, fmt.Errorf("pair %s: order_kind %q must be market or limit", name, p.OrderKind))
		}
	}

	for token, pair := range c.Aliases {
		if !seen[pair] {
			errs = append(errs, fmt.Errorf("alias %s: unknown pair %s", token, pair))
		}
	}
	if n := c.API.TwitterPageSize; n < 5 || n > 100 {
		errs = append(errs, fmt.Errorf("api: twitter_page_size %d out of range 5-100", n))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// DomainPairs convierte los pares a la configuración inmutable del dominio.
// Solo debe llamarse sobre una Config validada.
func (c *Config) DomainPairs() []domain.PairConfig {
	out := make([]domain.PairConfig, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		budget, _ := domain.ParseBudget(p.Budget)
		out = append(out, domain.PairConfig{
			Pair:          p.Pair,
			Budget:        budget,
			Dust:          decimal.RequireFromString(p.Dust),
			MinNotional:   decimal.RequireFromString(p.MinNotional),
			VenuePair:     p.VenuePair,
			BaseAsset:     p.BaseAsset,
			QuoteAsset:    p.QuoteAsset,
			SourceAccount: p.SourceAccount,
			OrderKind:     domain.OrderKind(p.OrderKind),
		}.WithDefaults())
	}
	return out
}

// AliasTable devuelve token → par. Cada par es también alias de sí mismo.
func (c *Config) AliasTable() map[string]string {
	out := make(map[string]string, len(c.Aliases)+len(c.Pairs))
	for _, p := range c.Pairs {
		out[p.Pair] = p.Pair
	}
	for token, pair := range c.Aliases {
		out[token] = pair
	}
	return out
}

// VenuePairTable devuelve código del venue → par configurado.
func (c *Config) VenuePairTable() map[string]string {
	out := make(map[string]string, len(c.Pairs))
	for _, p := range c.Pairs {
		out[p.VenuePair] = p.Pair
	}
	return out
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	cfg.Kraken.APIKey = os.Getenv("KRAKEN_API_KEY")
	cfg.Kraken.APISecret = os.Getenv("KRAKEN_API_SECRET")
	cfg.Twitter.BearerToken = os.Getenv("TWITTER_BEARER_TOKEN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 120
	}
	for i := range cfg.Pairs {
		p := &cfg.Pairs[i]
		p.Pair = strings.TrimSpace(p.Pair)
		if p.Dust == "" {
			p.Dust = domain.DefaultDust.String()
		}
		if p.MinNotional == "" {
			p.MinNotional = domain.DefaultMinNotional.String()
		}
		if p.OrderKind == "" {
			p.OrderKind = string(domain.OrderMarket)
		}
	}
	if cfg.API.KrakenBase == "" {
		cfg.API.KrakenBase = "https://api.kraken.com"
	}
	if cfg.API.TwitterBase == "" {
		cfg.API.TwitterBase = "https://api.twitter.com"
	}
	if cfg.API.TwitterPageSize == 0 {
		cfg.API.TwitterPageSize = 100
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "signalbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "signalbot"
	}
}
