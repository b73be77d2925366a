package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot de liquidez.
type Config struct {
	Quoting   QuotingConfig   `yaml:"quoting"`
	Risk      RiskConfig      `yaml:"risk"`
	Selection SelectionConfig `yaml:"selection"`
	Feed      FeedConfig      `yaml:"feed"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Signer    SignerConfig    `yaml:"signer"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Log       LogConfig       `yaml:"log"`
	DryRun    bool            `yaml:"dry_run"`
}

// QuotingConfig controla el cálculo y refresco de quotes.
type QuotingConfig struct {
	BaseOffsetCents        float64 `yaml:"base_offset_cents"`        // distancia base al midpoint
	MinOffsetCents         float64 `yaml:"min_offset_cents"`         // suelo del offset
	RequoteIntervalSeconds int     `yaml:"requote_interval_seconds"` // cadencia del tick
	RequoteThresholdCents  float64 `yaml:"requote_threshold_cents"`  // movimiento de mid que fuerza requote
	OrderSize              float64 `yaml:"order_size"`               // shares por orden
	NumLevels              int     `yaml:"num_levels"`               // niveles de profundidad por lado
}

// RiskConfig controla inventario, skew y kill switches.
type RiskConfig struct {
	InventoryCap       float64 `yaml:"inventory_cap"`         // |YES − NO| máximo por mercado
	SkewFactor         float64 `yaml:"skew_factor"`           // intensidad del skew lineal
	KillSwitchLossUSDC float64 `yaml:"kill_switch_loss_usdc"` // pérdida no realizada que dispara el switch por mercado
	PortfolioLossUSDC  float64 `yaml:"portfolio_loss_usdc"`   // pérdida agregada que apaga todo
}

// SelectionConfig controla la selección de mercados y el reparto de capital.
type SelectionConfig struct {
	MaxMarkets           int     `yaml:"max_markets"`
	MinRewardDaily       float64 `yaml:"min_reward_daily"`   // USDC/día mínimo para considerar un mercado
	MaxTotalCapitalUSDC  float64 `yaml:"max_total_capital"`  // capital total desplegable
	MaxPerMarketUSDC     float64 `yaml:"max_per_market"`     // tope por mercado
	RescanIntervalMins   int     `yaml:"rescan_interval_minutes"`
	MinHoursToResolution float64 `yaml:"min_hours_to_resolution"` // filtra mercados que resuelven pronto
}

// FeedConfig controla el feed de market data y su fallback.
type FeedConfig struct {
	StaleAfterSeconds   int `yaml:"stale_after_seconds"`   // edad máxima del midpoint antes de cancelar quotes
	PollIntervalSeconds int `yaml:"poll_interval_seconds"` // cadencia del fallback REST
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	WSBase    string `yaml:"ws_base"`
}

// AuthConfig son las credenciales de trading. Solo por variables de entorno,
// nunca por YAML.
type AuthConfig struct {
	APIKey        string `yaml:"-"`
	APISecret     string `yaml:"-"`
	APIPassphrase string `yaml:"-"`
	WalletAddress string `yaml:"-"`
}

// Configured devuelve true si hay credenciales completas para operar.
func (a AuthConfig) Configured() bool {
	return a.APIKey != "" && a.APISecret != "" && a.APIPassphrase != ""
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// SignerConfig apunta al sidecar local que firma las transacciones on-chain
// (split/merge/redeem). Vacío deshabilita las operaciones de inventario.
type SignerConfig struct {
	URL string `yaml:"url"`
}

// TelegramConfig controla las alertas por Telegram. Token y chat ID solo por env.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  int64  `yaml:"-"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RequoteInterval devuelve la cadencia del tick como time.Duration.
func (c *Config) RequoteInterval() time.Duration {
	return time.Duration(c.Quoting.RequoteIntervalSeconds) * time.Second
}

// RescanInterval devuelve la cadencia de rescan como time.Duration.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Selection.RescanIntervalMins) * time.Minute
}

// StaleAfter devuelve el umbral de staleness del feed.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Feed.StaleAfterSeconds) * time.Second
}

// PollInterval devuelve la cadencia del fallback REST.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Feed.PollIntervalSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	cfg.Auth.APIKey = os.Getenv("POLY_API_KEY")
	cfg.Auth.APISecret = os.Getenv("POLY_API_SECRET")
	cfg.Auth.APIPassphrase = os.Getenv("POLY_API_PASSPHRASE")
	cfg.Auth.WalletAddress = os.Getenv("POLY_WALLET_ADDRESS")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Quoting.BaseOffsetCents <= 0 {
		cfg.Quoting.BaseOffsetCents = 1.0
	}
	if cfg.Quoting.MinOffsetCents <= 0 {
		cfg.Quoting.MinOffsetCents = 0.5
	}
	if cfg.Quoting.RequoteIntervalSeconds <= 0 {
		cfg.Quoting.RequoteIntervalSeconds = 30
	}
	if cfg.Quoting.RequoteThresholdCents <= 0 {
		cfg.Quoting.RequoteThresholdCents = 0.5
	}
	if cfg.Quoting.OrderSize <= 0 {
		cfg.Quoting.OrderSize = 500
	}
	if cfg.Quoting.NumLevels <= 0 {
		cfg.Quoting.NumLevels = 2
	}
	if cfg.Risk.InventoryCap <= 0 {
		cfg.Risk.InventoryCap = 5000
	}
	if cfg.Risk.SkewFactor <= 0 {
		cfg.Risk.SkewFactor = 0.5
	}
	if cfg.Risk.KillSwitchLossUSDC <= 0 {
		cfg.Risk.KillSwitchLossUSDC = 100
	}
	if cfg.Risk.PortfolioLossUSDC <= 0 {
		cfg.Risk.PortfolioLossUSDC = cfg.Risk.KillSwitchLossUSDC * 5
	}
	if cfg.Selection.MaxMarkets <= 0 {
		cfg.Selection.MaxMarkets = 20
	}
	if cfg.Selection.MinRewardDaily <= 0 {
		cfg.Selection.MinRewardDaily = 5
	}
	if cfg.Selection.MaxTotalCapitalUSDC <= 0 {
		cfg.Selection.MaxTotalCapitalUSDC = 2000
	}
	if cfg.Selection.MaxPerMarketUSDC <= 0 {
		cfg.Selection.MaxPerMarketUSDC = 500
	}
	if cfg.Selection.RescanIntervalMins <= 0 {
		cfg.Selection.RescanIntervalMins = 60
	}
	if cfg.Selection.MinHoursToResolution <= 0 {
		cfg.Selection.MinHoursToResolution = 24
	}
	if cfg.Feed.StaleAfterSeconds <= 0 {
		cfg.Feed.StaleAfterSeconds = 60
	}
	if cfg.Feed.PollIntervalSeconds <= 0 {
		cfg.Feed.PollIntervalSeconds = 10
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.WSBase == "" {
		cfg.API.WSBase = "wss://ws-subscriptions-clob.polymarket.com/ws"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "lpbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza combinaciones que romperían invariantes del bot.
func validate(cfg *Config) error {
	if cfg.Selection.MaxPerMarketUSDC > cfg.Selection.MaxTotalCapitalUSDC {
		return fmt.Errorf("config.Load: max_per_market (%.0f) exceeds max_total_capital (%.0f)",
			cfg.Selection.MaxPerMarketUSDC, cfg.Selection.MaxTotalCapitalUSDC)
	}
	if cfg.Risk.SkewFactor > 1 {
		return fmt.Errorf("config.Load: skew_factor %.2f > 1 would invert offsets", cfg.Risk.SkewFactor)
	}
	return nil
}

// EnsureLiveAllowed comprueba el opt-in explícito para operar con dinero
// real: además del YAML hace falta LPBOT_ALLOW_LIVE=true en el entorno.
// Solo aplica al comando run; scan y status nunca envían órdenes.
func (c *Config) EnsureLiveAllowed() error {
	if c.DryRun {
		return nil
	}
	if !envTrue("LPBOT_ALLOW_LIVE") {
		return fmt.Errorf("config.EnsureLiveAllowed: live trading requires LPBOT_ALLOW_LIVE=true")
	}
	if !c.Auth.Configured() {
		return fmt.Errorf("config.EnsureLiveAllowed: missing POLY_API_KEY/SECRET/PASSPHRASE credentials")
	}
	return nil
}

func envTrue(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true" || v == "TRUE"
}
