package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polyledger/internal/domain"
)

// Config es la configuración completa de polyledger. Es el único punto de
// entrada de configuración: la engine y el validator la reciben explícita
// en la construcción, nada se lee de estado ambiente.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Validation ValidationConfig `yaml:"validation"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// EngineConfig controla el cómputo de posiciones.
type EngineConfig struct {
	Workers int `yaml:"workers"` // wallets en paralelo (0 = NumCPU×2)
	// SplitPolicy: "first" aplica el offset del split a la primera BUY
	// emparejada, "proportional" lo reparte por nominal. La atribución
	// correcta no está validada contra ground truth.
	SplitPolicy string `yaml:"split_policy"`
	// LargeOpenThreshold es el cost basis (USDC) que marca una posición
	// abierta como grande para la taxonomía de outliers.
	LargeOpenThreshold float64 `yaml:"large_open_threshold"`
}

// ValidationConfig son los umbrales de la reconciliación.
type ValidationConfig struct {
	LargePnlThreshold float64 `yaml:"large_pnl_threshold"` // frontera régimen porcentual
	PctThreshold      float64 `yaml:"pct_threshold"`       // error % máximo, wallets grandes
	AbsThreshold      float64 `yaml:"abs_threshold"`       // error $ máximo, wallets pequeños
	NoiseFloor        float64 `yaml:"noise_floor"`         // magnitud "cerca de cero"
	// DisableSignCheck desactiva el override por discrepancia de signo.
	// Por defecto el check está activo: un sign flip es un bug estructural.
	DisableSignCheck bool `yaml:"disable_sign_check"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	DataBase  string `yaml:"data_base"`
}

// StorageConfig controla dónde se persisten los resultados.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
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

	return &cfg, nil
}

// ThresholdPolicy construye la policy de reconciliación desde la config.
func (c *Config) ThresholdPolicy() domain.ThresholdPolicy {
	return domain.ThresholdPolicy{
		LargePnlThreshold: c.Validation.LargePnlThreshold,
		PctThreshold:      c.Validation.PctThreshold,
		AbsThreshold:      c.Validation.AbsThreshold,
		NoiseFloor:        c.Validation.NoiseFloor,
		SignMustMatch:     !c.Validation.DisableSignCheck,
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LEDGER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los umbrales de validación caen a los defaults validados empíricamente.
func setDefaults(cfg *Config) {
	if cfg.Engine.SplitPolicy == "" {
		cfg.Engine.SplitPolicy = "first"
	}
	if cfg.Engine.LargeOpenThreshold <= 0 {
		cfg.Engine.LargeOpenThreshold = 100
	}
	def := domain.DefaultThresholdPolicy()
	if cfg.Validation.LargePnlThreshold <= 0 {
		cfg.Validation.LargePnlThreshold = def.LargePnlThreshold
	}
	if cfg.Validation.PctThreshold <= 0 {
		cfg.Validation.PctThreshold = def.PctThreshold
	}
	if cfg.Validation.AbsThreshold <= 0 {
		cfg.Validation.AbsThreshold = def.AbsThreshold
	}
	if cfg.Validation.NoiseFloor <= 0 {
		cfg.Validation.NoiseFloor = def.NoiseFloor
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyledger.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
