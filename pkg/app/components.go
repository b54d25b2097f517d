// Package app собирает компоненты прогона из конфигурации.
//
// Пакет следует правилам из dev_manifest.md:
//   - Работает через llm.Provider интерфейс (Правило 4)
//   - Все настройки в YAML с ENV-переменными (Правило 2)
//   - Все ошибки возвращаются, никаких panic (Правило 7)
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/records-classifier/pkg/classifier"
	"github.com/ilkoid/records-classifier/pkg/config"
	"github.com/ilkoid/records-classifier/pkg/events"
	"github.com/ilkoid/records-classifier/pkg/factory"
	"github.com/ilkoid/records-classifier/pkg/llm"
	"github.com/ilkoid/records-classifier/pkg/runner"
	"github.com/ilkoid/records-classifier/pkg/s3storage"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// ConfigFileName задаёт имя файла конфигурации по умолчанию.
const ConfigFileName = "config.yaml"

// Components содержит собранные компоненты прогона.
type Components struct {
	Config *config.AppConfig
	LLM    llm.Provider       // nil при skip_analysis
	Engine classifier.Engine  // nil при skip_analysis
	Mirror s3storage.Uploader // nil без секции s3
	Runner *runner.Runner
}

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
type ConfigPathFinder interface {
	// FindConfigPath возвращает путь или "" если файл не найден.
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг -config (если указан)
// 2. Текущая директория (./config.yaml)
// 3. Директория бинарника
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага -config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	// 1. Флаг имеет приоритет
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	// 2. Текущая директория
	if _, err := os.Stat(ConfigFileName); err == nil {
		return resolveAbsPath(ConfigFileName)
	}

	// 3. Директория бинарника
	if execPath, err := os.Executable(); err == nil {
		cfgPath := filepath.Join(filepath.Dir(execPath), ConfigFileName)
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}
	}

	return ""
}

// InitializeConfig загружает конфигурацию.
//
// Без файла используется config.Default(): классификатор работает
// с локальной Ollama без какой-либо настройки.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()
	if cfgPath == "" {
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// Initialize создаёт компоненты по проверенной конфигурации.
//
// Правило 6: entry points - initialization and orchestration only.
func Initialize(cfg *config.AppConfig, emitter events.Emitter) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	comps := &Components{Config: cfg}

	// 1. LLM провайдер и движок (не нужны при skip_analysis)
	if !cfg.Run.SkipAnalysis {
		modelDef, ok := cfg.GetModel("")
		if !ok {
			return nil, fmt.Errorf("default model '%s' not found in definitions", cfg.Models.Default)
		}

		provider, err := factory.NewLLMProvider(modelDef)
		if err != nil {
			utils.Error("LLM provider creation failed", "error", err)
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}

		engine, err := classifier.NewFromConfig(provider, cfg.Run, cfg.Engine, modelDef)
		if err != nil {
			return nil, err
		}

		comps.LLM = provider
		comps.Engine = engine
		utils.Info("LLM provider initialized",
			"provider", modelDef.Provider,
			"model", modelDef.ModelName,
			"base_url", modelDef.BaseURL)
	}

	// 2. Зеркало экспорта (опционально, сбой не критичен)
	if cfg.S3.Enabled() {
		client, err := s3storage.New(cfg.S3)
		if err != nil {
			utils.Warn("S3 mirror disabled", "error", err)
		} else {
			comps.Mirror = client
			utils.Info("S3 mirror initialized", "bucket", cfg.S3.Bucket)
		}
	}

	// 3. Runner
	comps.Runner = runner.New(cfg.Run, runner.Deps{
		Engine:  comps.Engine,
		Mirror:  comps.Mirror,
		Emitter: emitter,
	})

	return comps, nil
}

func resolveAbsPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
