package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/internal/model"
)

// Config holds the full engine configuration.
type Config struct {
	Coins      []model.Coin
	Timeframes []string
	Interval   time.Duration

	Risk    Risk
	Gate    Gate
	Market  Remote
	Oracle  Remote
	Audit   Audit
	Storage Storage
	Server  Server
}

// Risk holds the sizing and portfolio limit parameters.
type Risk struct {
	RiskPerTrade      float64
	MaxPositionSize   float64
	MaxExposure       float64
	MaxStopDistance   float64
	LiquidityFraction float64
	MarginFraction    float64

	MajorLeverage    float64
	LargeCapLeverage float64
	SmallCapLeverage float64

	DailyLossLimit   float64
	WeeklyLossLimit  float64
	MaxDrawdown      float64
	RecoveryFraction float64

	MaxTradesPerDay int
	MaxPositions    int
	MinSpacing      time.Duration
	MaxHold         time.Duration
	TimeExitMinR    float64
	ScaleInMinR     float64
}

// Gate holds the decision validation thresholds.
type Gate struct {
	MinRiskReward float64
	MaxSpreadBps  float64
	MaxDataAge    time.Duration
	MaxLatency    time.Duration
	Tiers         []Tier
}

// Tier is one row of the threshold table keyed by setup tier.
// New tiers are data changes, not code changes.
type Tier struct {
	Name          string  `json:"name"`
	Setup         string  `json:"setup"`
	MaxGrabBps    float64 `json:"max_grab_bps"`
	MinConfidence float64 `json:"min_confidence"`
	MinConfluence float64 `json:"min_confluence"`
}

// Remote holds the connection details of an HTTP collaborator.
type Remote struct {
	URL     string
	Key     string
	Timeout time.Duration
	Retries int
}

// Audit holds the audit event stream configuration.
type Audit struct {
	Brokers []string
	Topic   string
}

// Storage holds the state persistence configuration.
type Storage struct {
	RedisAddr string
	Dir       string
}

// Server holds the admin http server configuration.
type Server struct {
	Port int
}

// Load reads the configuration from the environment.
// A .env file is honoured when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}

	coins := make([]model.Coin, 0)
	for _, s := range splitEnv("VELA_COINS", "BTC,ETH") {
		c, ok := model.Coins[s]
		if !ok {
			return nil, fmt.Errorf("unknown coin '%s'", s)
		}
		coins = append(coins, c)
	}

	cfg := &Config{
		Coins:      coins,
		Timeframes: splitEnv("VELA_TIMEFRAMES", "1h,4h"),
		Interval:   durEnv("VELA_INTERVAL", 300*time.Second),
		Risk: Risk{
			RiskPerTrade:      floatEnv("VELA_RISK_PER_TRADE", 0.02),
			MaxPositionSize:   floatEnv("VELA_MAX_POSITION_SIZE", 10000),
			MaxExposure:       floatEnv("VELA_MAX_EXPOSURE", 0.7),
			MaxStopDistance:   floatEnv("VELA_MAX_STOP_DISTANCE", 0.10),
			LiquidityFraction: floatEnv("VELA_LIQUIDITY_FRACTION", 0.05),
			MarginFraction:    floatEnv("VELA_MARGIN_FRACTION", 0.01),
			MajorLeverage:     floatEnv("VELA_MAJOR_LEVERAGE", 10),
			LargeCapLeverage:  floatEnv("VELA_LARGE_CAP_LEVERAGE", 5),
			SmallCapLeverage:  floatEnv("VELA_SMALL_CAP_LEVERAGE", 3),
			DailyLossLimit:    floatEnv("VELA_DAILY_LOSS_LIMIT", 0.05),
			WeeklyLossLimit:   floatEnv("VELA_WEEKLY_LOSS_LIMIT", 0.10),
			MaxDrawdown:       floatEnv("VELA_MAX_DRAWDOWN", 0.20),
			RecoveryFraction:  floatEnv("VELA_RECOVERY_FRACTION", 0.05),
			MaxTradesPerDay:   intEnv("VELA_MAX_TRADES_PER_DAY", 10),
			MaxPositions:      intEnv("VELA_MAX_POSITIONS", 3),
			MinSpacing:        durEnv("VELA_MIN_SPACING", 30*time.Minute),
			MaxHold:           durEnv("VELA_MAX_HOLD", 24*time.Hour),
			TimeExitMinR:      floatEnv("VELA_TIME_EXIT_MIN_R", 0.25),
			ScaleInMinR:       floatEnv("VELA_SCALE_IN_MIN_R", 1.0),
		},
		Gate: Gate{
			MinRiskReward: floatEnv("VELA_MIN_RISK_REWARD", 2.0),
			MaxSpreadBps:  floatEnv("VELA_MAX_SPREAD_BPS", 10),
			MaxDataAge:    durEnv("VELA_MAX_DATA_AGE", 90*time.Second),
			MaxLatency:    durEnv("VELA_MAX_LATENCY", 30*time.Second),
			Tiers:         DefaultTiers(),
		},
		Market: Remote{
			URL:     getEnv("VELA_MARKET_URL", "https://api.hyperliquid.xyz"),
			Timeout: durEnv("VELA_MARKET_TIMEOUT", 10*time.Second),
			Retries: intEnv("VELA_MARKET_RETRIES", 2),
		},
		Oracle: Remote{
			URL:     getEnv("VELA_ORACLE_URL", ""),
			Key:     getEnv("VELA_ORACLE_KEY", ""),
			Timeout: durEnv("VELA_ORACLE_TIMEOUT", 30*time.Second),
			Retries: intEnv("VELA_ORACLE_RETRIES", 1),
		},
		Audit: Audit{
			Brokers: splitEnv("VELA_KAFKA_BROKERS", ""),
			Topic:   getEnv("VELA_KAFKA_TOPIC", "vela-audit"),
		},
		Storage: Storage{
			RedisAddr: getEnv("VELA_REDIS_ADDR", ""),
			Dir:       getEnv("VELA_STORAGE_DIR", "file-storage"),
		},
		Server: Server{
			Port: intEnv("VELA_SERVER_PORT", 6021),
		},
	}

	if path := getEnv("VELA_TIERS_FILE", ""); path != "" {
		tiers, err := LoadTiers(path)
		if err != nil {
			return nil, err
		}
		cfg.Gate.Tiers = tiers
	}

	return cfg, cfg.Validate()
}

// DefaultTiers is the built in threshold table. Liquidity grab setups trade
// on their own magnitude dependent rows: the smaller the grab, the less
// confirmation is demanded, larger grabs need conviction behind them.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "standard", Setup: "standard", MaxGrabBps: 0, MinConfidence: 0.60, MinConfluence: 4},
		{Name: "grab-micro", Setup: "liquidity-grab", MaxGrabBps: 25, MinConfidence: 0.40, MinConfluence: 1},
		{Name: "grab-standard", Setup: "liquidity-grab", MaxGrabBps: 50, MinConfidence: 0.45, MinConfluence: 2},
		{Name: "grab-major", Setup: "liquidity-grab", MaxGrabBps: 0, MinConfidence: 0.50, MinConfluence: 3},
	}
}

// LoadTiers loads a threshold table override from the given json file.
func LoadTiers(path string) ([]Tier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not load tiers from %s: %w", path, err)
	}
	var tiers []Tier
	if err := json.Unmarshal(b, &tiers); err != nil {
		return nil, fmt.Errorf("could not unmarshal tiers from %s: %w", path, err)
	}
	log.Info().Int("tiers", len(tiers)).Str("path", path).Msg("loaded threshold table")
	return tiers, nil
}

// Validate checks the configuration for out of range values.
func (c *Config) Validate() error {
	errs := make([]string, 0)
	if len(c.Coins) == 0 {
		errs = append(errs, "no coins configured")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 0.05 {
		errs = append(errs, "risk per trade must be in (0, 0.05]")
	}
	if c.Risk.MaxExposure <= 0 || c.Risk.MaxExposure > 1 {
		errs = append(errs, "max exposure must be in (0, 1]")
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown >= 1 {
		errs = append(errs, "max drawdown must be in (0, 1)")
	}
	if c.Risk.MaxStopDistance <= 0 {
		errs = append(errs, "max stop distance must be positive")
	}
	if c.Interval <= 0 {
		errs = append(errs, "interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	v := getEnv(key, fallback)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func floatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", v).Msg("could not parse float, using default")
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", v).Msg("could not parse int, using default")
	}
	return fallback
}

func durEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("could not parse duration, using default")
	}
	return fallback
}
