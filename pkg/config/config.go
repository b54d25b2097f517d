package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Переменные окружения, переопределяющие модель и адрес Ollama.
const (
	EnvModel     = "RECCLASS_MODEL"
	EnvOllamaURL = "RECCLASS_OLLAMA_URL"
)

// DefaultModel задаёт модель классификатора по умолчанию.
const DefaultModel = "pierce-county-records-classifier-phi2:latest"

// DefaultRetryAttempts действует, когда retry_attempts не задан в файле.
// Явный 0 в YAML отключает повторы.
const DefaultRetryAttempts = 2

// DefaultIncludeExt перечисляет расширения, которые отправляются модели.
var DefaultIncludeExt = []string{
	".txt", ".csv", ".docx", ".xlsx", ".pptx", ".pdf", ".html", ".htm", ".md",
	".rtf", ".odt", ".xml", ".json", ".yaml", ".yml", ".log", ".tsv",
}

// DefaultExcludeExt перечисляет расширения, которые никогда не анализируются.
var DefaultExcludeExt = []string{
	".tmp", ".bak", ".old", ".zip", ".rar", ".tar", ".gz", ".7z",
	".exe", ".dll", ".sys", ".iso", ".dmg", ".apk", ".msi", ".ps1", ".psd1",
	".psm1", ".db", ".mdb", ".accdb",
}

// AppConfig это корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models ModelsConfig `yaml:"models"`
	Run    RunConfig    `yaml:"run"`
	Engine EngineConfig `yaml:"engine"`
	S3     S3Config     `yaml:"s3"`
	App    AppSpecific  `yaml:"app"`
}

// ModelsConfig содержит настройки AI моделей.
type ModelsConfig struct {
	Default     string              `yaml:"default"`     // Алиас провайдера по умолчанию (например, "ollama")
	Definitions map[string]ModelDef `yaml:"definitions"` // Словарь определений провайдеров
}

// ModelDef описывает параметры конкретного провайдера модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "ollama", "openai"
	ModelName   string        `yaml:"model_name"` // Реальное имя в API (переопределяется run.model)
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string        `yaml:"base_url"`   // OpenAI-совместимый endpoint, для Ollama http://localhost:11434/v1
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
}

// RunConfig содержит параметры одного прогона (RunConfiguration).
//
// Строится один раз на старте из файла и флагов, дальше только читается.
type RunConfig struct {
	Root         string        `yaml:"root"`
	Output       string        `yaml:"output"`
	LinesPerFile int           `yaml:"lines_per_file"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	SkipAnalysis bool          `yaml:"skip_analysis"`
	MaxParallel  int           `yaml:"max_parallel"` // 0: вычислить из числа CPU
	IncludeExt   []string      `yaml:"include_ext"`
	ExcludeExt   []string      `yaml:"exclude_ext"`
	LogPath      string        `yaml:"log_path"`
	TaskTimeout  time.Duration `yaml:"task_timeout"` // Бюджет модели на файл, включая повторы
}

// EngineConfig задаёт поведение вызова классификатора.
type EngineConfig struct {
	RetryAttempts int     `yaml:"retry_attempts"` // Повторы при временных ошибках, 0 отключает
	RetryDelay    string  `yaml:"retry_delay"`    // Базовая задержка backoff, например "500ms"
	RateLimit     float64 `yaml:"rate_limit"`     // Запросов в секунду, 0 без ограничения
	BurstLimit    int     `yaml:"burst_limit"`    // Burst для rate limiter
}

// S3Config настраивает зеркало экспорта в объектное хранилище (опционально).
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроено ли зеркало.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.Endpoint != ""
}

// AppSpecific содержит общие настройки приложения.
type AppSpecific struct {
	Debug bool `yaml:"debug"`
}

// GetDefaults возвращает копию с дефолтами для незаполненных полей.
func (c *RunConfig) GetDefaults() RunConfig {
	result := *c

	if result.LinesPerFile == 0 {
		result.LinesPerFile = 100
	}
	result.Temperature = math.Max(0, math.Min(1, result.Temperature))
	if result.IncludeExt == nil {
		result.IncludeExt = append([]string(nil), DefaultIncludeExt...)
	}
	if result.ExcludeExt == nil {
		result.ExcludeExt = append([]string(nil), DefaultExcludeExt...)
	}
	result.IncludeExt = NormalizeExtensions(result.IncludeExt)
	result.ExcludeExt = NormalizeExtensions(result.ExcludeExt)
	if result.TaskTimeout == 0 {
		result.TaskTimeout = 120 * time.Second
	}

	return result
}

// GetDefaults возвращает копию с дефолтами для незаполненных полей.
func (c *EngineConfig) GetDefaults() EngineConfig {
	result := *c

	if result.RetryDelay == "" {
		result.RetryDelay = "500ms"
	}
	if result.RateLimit > 0 && result.BurstLimit == 0 {
		result.BurstLimit = 1
	}

	return result
}

// Default возвращает конфигурацию без файла: локальная Ollama и дефолты.
func Default() *AppConfig {
	cfg := base()
	cfg.applyDefaults()
	return cfg
}

// base возвращает заготовку, поверх которой парсится YAML.
func base() *AppConfig {
	return &AppConfig{
		Models: ModelsConfig{
			Default: "ollama",
			Definitions: map[string]ModelDef{
				"ollama": {
					Provider:  "ollama",
					ModelName: DefaultModel,
					BaseURL:   "http://localhost:11434/v1",
				},
			},
		},
		Run:    RunConfig{Temperature: 0.1},
		Engine: EngineConfig{RetryAttempts: DefaultRetryAttempts},
	}
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 3. Подставляем переменные окружения: ${VAR} или $VAR.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	// 4. Парсим YAML поверх дефолтной конфигурации
	cfg := base()
	if err := yaml.Unmarshal([]byte(contentWithEnv), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults заполняет пустые поля и применяет переопределения из ENV.
func (c *AppConfig) applyDefaults() {
	if model := os.Getenv(EnvModel); model != "" {
		c.Run.Model = model
	}
	if url := os.Getenv(EnvOllamaURL); url != "" {
		if def, ok := c.Models.Definitions[c.Models.Default]; ok {
			def.BaseURL = url
			c.Models.Definitions[c.Models.Default] = def
		}
	}

	if c.Run.Model == "" {
		c.Run.Model = DefaultModel
		if def, ok := c.Models.Definitions[c.Models.Default]; ok && def.ModelName != "" {
			c.Run.Model = def.ModelName
		}
	}

	c.Run = c.Run.GetDefaults()
	c.Engine = c.Engine.GetDefaults()
}

// Validate проверяет обязательные поля. Вызывается после наложения флагов CLI.
func (c *AppConfig) Validate() error {
	if c.Run.Root == "" {
		return fmt.Errorf("run.root is required")
	}
	if c.Run.Output == "" {
		return fmt.Errorf("run.output is required")
	}
	if c.Run.LinesPerFile < 0 {
		return fmt.Errorf("run.lines_per_file must be positive, got %d", c.Run.LinesPerFile)
	}
	if c.Run.MaxParallel < 0 {
		return fmt.Errorf("run.max_parallel must be >= 0, got %d", c.Run.MaxParallel)
	}
	if c.Run.TaskTimeout < 0 {
		return fmt.Errorf("run.task_timeout must be >= 0")
	}
	if _, err := time.ParseDuration(c.Engine.RetryDelay); err != nil {
		return fmt.Errorf("invalid engine.retry_delay format: %w", err)
	}
	if c.Engine.RetryAttempts < 0 {
		return fmt.Errorf("engine.retry_attempts must be >= 0")
	}
	if !c.Run.SkipAnalysis {
		if _, ok := c.Models.Definitions[c.Models.Default]; !ok {
			return fmt.Errorf("default model '%s' is not defined in definitions", c.Models.Default)
		}
	}
	return nil
}

// GetModel возвращает определение провайдера по имени или по умолчанию.
//
// run.model переопределяет model_name: модель выбирается на прогон,
// а провайдер описывает только способ доступа к ней.
func (c *AppConfig) GetModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.Default
	}
	m, ok := c.Models.Definitions[name]
	if !ok {
		return ModelDef{}, false
	}
	if c.Run.Model != "" {
		m.ModelName = c.Run.Model
	}
	if m.Temperature == 0 {
		m.Temperature = c.Run.Temperature
	}
	return m, true
}

// NormalizeExtensions приводит расширения к виду ".ext" в нижнем регистре.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
