package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// Типы источников данных
const (
	SourceBinance  = "binance"
	SourceCSV      = "csv"
	SourceInfluxDB = "influxdb"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Log         logger.Config       `yaml:"log"`
	Source      SourceConfig        `yaml:"source"`
	Binance     BinanceConfig       `yaml:"binance"`
	Storage     StorageConfig       `yaml:"storage"`
	Cache       CacheConfig         `yaml:"cache"`
	Instruments []models.Instrument `yaml:"instruments" validate:"required,min=1,dive"`
	Analysis    AnalysisConfig      `yaml:"analysis"`
	Report      ReportConfig        `yaml:"report"`
	LLM         LLMConfig           `yaml:"llm"`
	Metrics     MetricsConfig       `yaml:"metrics"`
	UI          UIConfig            `yaml:"ui"`
}

// SourceConfig выбирает источник дневных свечей
type SourceConfig struct {
	Type     string `yaml:"type" default:"binance" validate:"oneof=binance csv influxdb"`
	Count    int    `yaml:"count" default:"120" validate:"min=2"`
	Interval string `yaml:"interval" default:"1d"`
	CSVDir   string `yaml:"csv_dir" default:"data"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	// BaseURL переопределяет адрес REST API
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url" validate:"required_if=Enabled true"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket" default:"ashare"`
}

// CacheConfig настройки кеша рядов в Redis
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix" default:"ashare"`
	TTL      time.Duration `yaml:"ttl" default:"6h"`
}

// AnalysisConfig содержит настройки аналитического конвейера
type AnalysisConfig struct {
	Workers    int             `yaml:"workers" default:"4" validate:"min=1"`
	Timeout    time.Duration   `yaml:"timeout" default:"30s"`
	MinRows    int             `yaml:"min_rows" default:"2" validate:"min=2"`
	StableRows int             `yaml:"stable_rows" default:"60" validate:"gtefield=MinRows"`
	Sequential bool            `yaml:"sequential"`
	Indicators IndicatorConfig `yaml:"indicators"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
}

// IndicatorConfig набор периодов индикаторов
type IndicatorConfig struct {
	MA   MAConfig   `yaml:"ma"`
	MACD MACDConfig `yaml:"macd"`
	KDJ  KDJConfig  `yaml:"kdj"`
	BOLL BOLLConfig `yaml:"boll"`
	RSI  RSIConfig  `yaml:"rsi"`
	PSY  PairConfig `yaml:"psy" default:"{\"n\":12,\"m\":6}"`
	WR   WRConfig   `yaml:"wr"`
	BIAS BIASConfig `yaml:"bias"`
	CCI  NConfig    `yaml:"cci" default:"{\"n\":14}"`
	ATR  NConfig    `yaml:"atr" default:"{\"n\":20}"`
	EMV  PairConfig `yaml:"emv" default:"{\"n\":14,\"m\":9}"`
	DPO  DPOConfig  `yaml:"dpo"`
	TRIX TRIXConfig `yaml:"trix"`
	DMI  DMIConfig  `yaml:"dmi"`
	VR   NConfig    `yaml:"vr" default:"{\"n\":26}"`
	BRAR NConfig    `yaml:"brar" default:"{\"n\":26}"`
	ROC  PairConfig `yaml:"roc" default:"{\"n\":12,\"m\":6}"`
	MTM  PairConfig `yaml:"mtm" default:"{\"n\":12,\"m\":6}"`
	DMA  DMAConfig  `yaml:"dma"`
}

// MAConfig окна скользящих средних
type MAConfig struct {
	Windows []int `yaml:"windows" default:"[5,10,20,60]" validate:"required,dive,min=1"`
}

// MACDConfig периоды MACD
type MACDConfig struct {
	Short  int `yaml:"short" default:"12" validate:"min=1,ltfield=Long"`
	Long   int `yaml:"long" default:"26" validate:"min=1"`
	Signal int `yaml:"signal" default:"9" validate:"min=1"`
}

// KDJConfig периоды KDJ
type KDJConfig struct {
	N  int `yaml:"n" default:"9" validate:"min=1"`
	M1 int `yaml:"m1" default:"3" validate:"min=1"`
	M2 int `yaml:"m2" default:"3" validate:"min=1"`
}

// BOLLConfig параметры полос Боллинджера
type BOLLConfig struct {
	N     int     `yaml:"n" default:"20" validate:"min=1"`
	Width float64 `yaml:"width" default:"2" validate:"gt=0"`
}

// RSIConfig период RSI
type RSIConfig struct {
	N int `yaml:"n" default:"14" validate:"min=1"`
}

// NConfig индикатор с одним периодом
type NConfig struct {
	N int `yaml:"n" json:"n" validate:"min=1"`
}

// PairConfig индикатор с периодом и периодом сглаживания
type PairConfig struct {
	N int `yaml:"n" json:"n" validate:"min=1"`
	M int `yaml:"m" json:"m" validate:"min=1"`
}

// WRConfig периоды Williams %R
type WRConfig struct {
	N  int `yaml:"n" default:"10" validate:"min=1"`
	N1 int `yaml:"n1" default:"6" validate:"min=1"`
}

// BIASConfig периоды BIAS
type BIASConfig struct {
	L1 int `yaml:"l1" default:"6" validate:"min=1"`
	L2 int `yaml:"l2" default:"12" validate:"min=1"`
	L3 int `yaml:"l3" default:"24" validate:"min=1"`
}

// DPOConfig периоды DPO
type DPOConfig struct {
	M1 int `yaml:"m1" default:"20" validate:"min=1"`
	M2 int `yaml:"m2" default:"10" validate:"min=1"`
	M3 int `yaml:"m3" default:"6" validate:"min=1"`
}

// TRIXConfig периоды TRIX
type TRIXConfig struct {
	M1 int `yaml:"m1" default:"12" validate:"min=1"`
	M2 int `yaml:"m2" default:"20" validate:"min=1"`
}

// DMIConfig периоды DMI
type DMIConfig struct {
	M1 int `yaml:"m1" default:"14" validate:"min=1"`
	M2 int `yaml:"m2" default:"6" validate:"min=1"`
}

// DMAConfig периоды DMA
type DMAConfig struct {
	N1 int `yaml:"n1" default:"10" validate:"min=1,ltfield=N2"`
	N2 int `yaml:"n2" default:"50" validate:"min=1"`
	M  int `yaml:"m" default:"10" validate:"min=1"`
}

// ThresholdConfig пороговые значения правил сигналов
type ThresholdConfig struct {
	KDJOversold   float64 `yaml:"kdj_oversold" default:"20" validate:"ltfield=KDJOverbought"`
	KDJOverbought float64 `yaml:"kdj_overbought" default:"80"`
	RSIOversold   float64 `yaml:"rsi_oversold" default:"20" validate:"ltfield=RSIOverbought"`
	RSIOverbought float64 `yaml:"rsi_overbought" default:"80"`
	VRHigh        float64 `yaml:"vr_high" default:"160"`
	VRLow         float64 `yaml:"vr_low" default:"40" validate:"ltfield=VRHigh"`
}

// ReportConfig настройки HTML-отчета
type ReportConfig struct {
	Output        string `yaml:"output" default:"public/index.html" validate:"required"`
	Title         string `yaml:"title" default:"Отчет технического анализа"`
	Timezone      string `yaml:"timezone" default:"Asia/Shanghai"`
	DisableCharts bool   `yaml:"disable_charts"`
}

// LLMConfig настройки генератора аналитического текста
type LLMConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url" default:"https://api.openai.com/v1" validate:"omitempty,url"`
	Model   string        `yaml:"model" default:"gpt-4o-mini"`
	Timeout time.Duration `yaml:"timeout" default:"60s"`
}

// Enabled сообщает, настроен ли доступ к LLM
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// MetricsConfig настройки экспорта метрик Prometheus
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":9108"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	RefreshRate int    `yaml:"refresh_rate_ms" default:"1000" validate:"min=100"`
	LogFile     string `yaml:"log_file"`
}

var validate = validator.New()

// Default возвращает конфигурацию со значениями по умолчанию
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка установки значений по умолчанию: %w", err)
	}
	return &cfg, nil
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML, заполняет значения по умолчанию, применяет переменные окружения и проверяет результат
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка установки значений по умолчанию: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	logger.Debug("Загружена конфигурация", zap.Int("instruments", len(cfg.Instruments)), zap.String("source", cfg.Source.Type))
	return &cfg, nil
}

// applyEnv переопределяет секреты из переменных окружения
func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"LLM_API_KEY", &c.LLM.APIKey},
		{"LLM_BASE_URL", &c.LLM.BaseURL},
		{"LLM_MODEL", &c.LLM.Model},
		{"BINANCE_API_KEY", &c.Binance.APIKey},
		{"BINANCE_API_SECRET", &c.Binance.APISecret},
		{"INFLUXDB_TOKEN", &c.Storage.Token},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source.Type == SourceInfluxDB && c.Storage.URL == "" {
		return fmt.Errorf("источник influxdb требует storage.url")
	}
	if c.Report.Timezone != "" {
		if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
			return fmt.Errorf("неизвестный часовой пояс %q: %w", c.Report.Timezone, err)
		}
	}
	return nil
}
