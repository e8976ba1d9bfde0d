// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
)

// PipelineConfig 提取管线的可调参数
type PipelineConfig struct {
	MaxInputChars  int `yaml:"max_input_chars"`  // 超过此长度直接拒绝（不截断）
	ChunkChars     int `yaml:"chunk_chars"`      // 超过此长度按句子分块
	MaxConcurrency int `yaml:"max_concurrency"`  // 分块提取的并发上限
	MaxRetries     int `yaml:"max_retries"`      // 瞬时错误的最大重试次数
	TimeoutSecs    int `yaml:"timeout_secs"`     // 单次请求超时
	BaseDelayMs    int `yaml:"base_delay_ms"`    // 退避基础延迟
	MaxDelayMs     int `yaml:"max_delay_ms"`     // 退避延迟上限
	CacheTTLMins   int `yaml:"cache_ttl_mins"`   // 结果缓存有效期
}

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `yaml:"port"`
	DataDir   string `yaml:"data_dir"`
	LogDir    string `yaml:"log_dir"`
	DebugMode bool   `yaml:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `yaml:"llm_provider"`
	LLMConfig   map[string]string `yaml:"llm_config"`

	// 提取管线配置
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// Load 从环境变量加载配置，存在 config.yaml 时叠加文件配置
func Load() (*AppConfig, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &AppConfig{
		Port:        getEnv("PORT", "8080"),
		DataDir:     getEnvPath("DATA_DIR", "data"),
		LogDir:      getEnvPath("LOG_DIR", "logs"),
		DebugMode:   getEnvBool("DEBUG_MODE", true),
		LLMProvider: getEnv("LLM_PROVIDER", "mistral"),
		LLMConfig: map[string]string{
			"api_key":       resolveAPIKey(),
			"default_model": getEnv("LLM_MODEL", ""),
			"base_url":      getEnv("LLM_BASE_URL", ""),
		},
		Pipeline: PipelineConfig{
			MaxInputChars:  getEnvInt("MAX_INPUT_CHARS", 20000),
			ChunkChars:     getEnvInt("CHUNK_CHARS", 4000),
			MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
			MaxRetries:     getEnvInt("MAX_RETRIES", 3),
			TimeoutSecs:    getEnvInt("TIMEOUT_SECS", 60),
			BaseDelayMs:    getEnvInt("RETRY_BASE_DELAY_MS", 500),
			MaxDelayMs:     getEnvInt("RETRY_MAX_DELAY_MS", 8000),
			CacheTTLMins:   getEnvInt("CACHE_TTL_MINS", 30),
		},
	}

	// 可选的 config.yaml 叠加
	if data, err := os.ReadFile(getEnv("CONFIG_FILE", "config.yaml")); err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	applyPipelineDefaults(&config.Pipeline)

	if config.LLMConfig["api_key"] == "" {
		// 只记录警告，不返回错误；可通过 /api/llm/config 在运行时配置
		log.Println("警告: 未设置LLM API密钥，需要配置后才能执行提取")
	}

	return config, nil
}

// resolveAPIKey 依次尝试通用与各提供商专用的环境变量
func resolveAPIKey() string {
	for _, key := range []string{"LLM_API_KEY", "MISTRAL_API_KEY", "OPENAI_API_KEY"} {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func applyPipelineDefaults(p *PipelineConfig) {
	if p.MaxInputChars <= 0 {
		p.MaxInputChars = 20000
	}
	if p.ChunkChars <= 0 {
		p.ChunkChars = 4000
	}
	if p.MaxConcurrency <= 0 {
		p.MaxConcurrency = 3
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 3
	}
	if p.TimeoutSecs <= 0 {
		p.TimeoutSecs = 60
	}
	if p.BaseDelayMs <= 0 {
		p.BaseDelayMs = 500
	}
	if p.MaxDelayMs <= 0 {
		p.MaxDelayMs = 8000
	}
	if p.CacheTTLMins <= 0 {
		p.CacheTTLMins = 30
	}
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// InitConfig 初始化配置单例
func InitConfig() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = cfg
	return nil
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		cfg, _ := Load()
		return cfg
	}

	// 返回配置的副本，LLMConfig 单独拷贝避免共享map
	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置（密钥只保存在内存，不落盘）
func UpdateLLMConfig(provider string, llmConfig map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = llmConfig

	return nil
}
