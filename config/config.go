package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del agente.
type Config struct {
	Trading  TradingConfig  `yaml:"trading"`
	Barrier  BarrierConfig  `yaml:"barrier"`
	Guard    GuardConfig    `yaml:"guard"`
	Risk     RiskConfig     `yaml:"risk"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Models   ModelsConfig   `yaml:"models"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// TradingConfig controla la sesión intradía.
type TradingConfig struct {
	Symbols          []string `yaml:"symbols"`
	EntryThreshold   float64  `yaml:"entry_threshold"`   // probabilidad mínima para entrar
	PositionFraction float64  `yaml:"position_fraction"` // fracción del equity por trade
	RSICeiling       float64  `yaml:"rsi_ceiling"`       // filtro de sobrecalentamiento
	CooldownMinutes  int      `yaml:"cooldown_minutes"`  // espera tras cualquier fill del símbolo
	TickSeconds      int      `yaml:"tick_seconds"`      // período del scan loop
	StartHour        int      `yaml:"start_hour"`        // ventana de trading, hora local
	EndHour          int      `yaml:"end_hour"`
	Timezone         string   `yaml:"timezone"`
	EntryPremium     float64  `yaml:"entry_premium"`     // prima del limit de entrada sobre el precio observado
	TrailingStopPct  float64  `yaml:"trailing_stop_pct"` // trailing stop en %, p.ej. 0.8
	ReconnectSeconds int      `yaml:"reconnect_seconds"` // back-off tras fallo de conexión
}

// BarrierConfig es la geometría compartida offline/online.
type BarrierConfig struct {
	StopFraction   float64 `yaml:"stop_fraction"`
	TargetFraction float64 `yaml:"target_fraction"`
	HorizonBars    int     `yaml:"horizon_bars"`
	LookbackDays   int     `yaml:"lookback_days"` // historia para el labeling offline
}

// GuardConfig controla el market regime guard.
type GuardConfig struct {
	Symbols         []string `yaml:"symbols"` // instrumentos guardianes, todos deben estar alcistas
	EMAPeriod       int      `yaml:"ema_period"`
	BarMinutes      int      `yaml:"bar_minutes"` // resolución más gruesa que la de trading
	LookbackMinutes int      `yaml:"lookback_minutes"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"` // al expirar, el guard falla cerrado
}

// RiskConfig controla el circuit breaker y el sizing.
type RiskConfig struct {
	MaxLossFraction float64 `yaml:"max_loss_fraction"` // pérdida diaria máxima sobre el baseline
	FallbackEquity  float64 `yaml:"fallback_equity"`   // si la consulta de equity falla
}

// GatewayConfig contiene los endpoints del broker bridge local.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
}

// ModelsConfig dice dónde viven los pesos entrenados por símbolo.
type ModelsConfig struct {
	Dir string `yaml:"dir"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// TelegramConfig habilita el notificador de telegram si Token no está vacío.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// MetricsConfig expone /metrics de Prometheus si Addr no está vacío.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
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

	if _, err := time.LoadLocation(cfg.Trading.Timezone); err != nil {
		return nil, fmt.Errorf("config.Load: timezone %q: %w", cfg.Trading.Timezone, err)
	}
	if cfg.Trading.StartHour >= cfg.Trading.EndHour {
		return nil, fmt.Errorf("config.Load: start_hour must be < end_hour")
	}

	return &cfg, nil
}

// ScanTick devuelve el período del scan loop como time.Duration.
func (c *Config) ScanTick() time.Duration {
	return time.Duration(c.Trading.TickSeconds) * time.Second
}

// Cooldown devuelve la ventana de cooldown por símbolo.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Trading.CooldownMinutes) * time.Minute
}

// ReconnectBackoff devuelve la espera entre reintentos de conexión.
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.Trading.ReconnectSeconds) * time.Second
}

// GuardInterval devuelve la resolución de barras del guard.
func (c *Config) GuardInterval() time.Duration {
	return time.Duration(c.Guard.BarMinutes) * time.Minute
}

// GuardLookback devuelve cuánta historia pide el guard por ciclo.
func (c *Config) GuardLookback() time.Duration {
	return time.Duration(c.Guard.LookbackMinutes) * time.Minute
}

// GuardTimeout devuelve el timeout del fetch del guard.
func (c *Config) GuardTimeout() time.Duration {
	return time.Duration(c.Guard.TimeoutSeconds) * time.Second
}

// LabelLookback devuelve cuánta historia usa el labeling offline.
func (c *Config) LabelLookback() time.Duration {
	return time.Duration(c.Barrier.LookbackDays) * 24 * time.Hour
}

// Location devuelve la zona horaria de la sesión. Load ya validó el nombre.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.Trading.Timezone)
	return loc
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_WS_URL"); v != "" {
		cfg.Gateway.WSURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los defaults son los del sistema de referencia.
func setDefaults(cfg *Config) {
	if len(cfg.Trading.Symbols) == 0 {
		cfg.Trading.Symbols = []string{"PSTG", "WDC", "STX"}
	}
	if cfg.Trading.EntryThreshold <= 0 {
		cfg.Trading.EntryThreshold = 0.55
	}
	if cfg.Trading.PositionFraction <= 0 {
		cfg.Trading.PositionFraction = 0.10
	}
	if cfg.Trading.RSICeiling <= 0 {
		cfg.Trading.RSICeiling = 75
	}
	if cfg.Trading.CooldownMinutes <= 0 {
		cfg.Trading.CooldownMinutes = 30
	}
	if cfg.Trading.TickSeconds <= 0 {
		cfg.Trading.TickSeconds = 60
	}
	if cfg.Trading.StartHour <= 0 {
		cfg.Trading.StartHour = 10
	}
	if cfg.Trading.EndHour <= 0 {
		cfg.Trading.EndHour = 16
	}
	if cfg.Trading.Timezone == "" {
		cfg.Trading.Timezone = "America/New_York"
	}
	if cfg.Trading.EntryPremium <= 0 {
		cfg.Trading.EntryPremium = 0.005
	}
	if cfg.Trading.TrailingStopPct <= 0 {
		cfg.Trading.TrailingStopPct = 0.8
	}
	if cfg.Trading.ReconnectSeconds <= 0 {
		cfg.Trading.ReconnectSeconds = 10
	}
	if cfg.Barrier.StopFraction <= 0 {
		cfg.Barrier.StopFraction = 0.005
	}
	if cfg.Barrier.TargetFraction <= 0 {
		cfg.Barrier.TargetFraction = 0.05
	}
	if cfg.Barrier.HorizonBars <= 0 {
		cfg.Barrier.HorizonBars = 12
	}
	if cfg.Barrier.LookbackDays <= 0 {
		cfg.Barrier.LookbackDays = 30
	}
	if len(cfg.Guard.Symbols) == 0 {
		cfg.Guard.Symbols = []string{"SPY", "XLK"}
	}
	if cfg.Guard.EMAPeriod <= 0 {
		cfg.Guard.EMAPeriod = 20
	}
	if cfg.Guard.BarMinutes <= 0 {
		cfg.Guard.BarMinutes = 5
	}
	if cfg.Guard.LookbackMinutes <= 0 {
		cfg.Guard.LookbackMinutes = 120
	}
	if cfg.Guard.TimeoutSeconds <= 0 {
		cfg.Guard.TimeoutSeconds = 5
	}
	if cfg.Risk.MaxLossFraction <= 0 {
		cfg.Risk.MaxLossFraction = 0.03
	}
	if cfg.Risk.FallbackEquity <= 0 {
		cfg.Risk.FallbackEquity = 200000
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "http://127.0.0.1:8787"
	}
	if cfg.Gateway.WSURL == "" {
		cfg.Gateway.WSURL = "ws://127.0.0.1:8787/ws/fills"
	}
	if cfg.Models.Dir == "" {
		cfg.Models.Dir = "models"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "sniperbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
