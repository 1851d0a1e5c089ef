// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Planner       PlannerConfig       `yaml:"planner" mapstructure:"planner"`
	Rerank        RerankConfig        `yaml:"rerank" mapstructure:"rerank"`
	Answer        AnswerConfig        `yaml:"answer" mapstructure:"answer"`
	Guard         GuardConfig         `yaml:"guard" mapstructure:"guard"`
	Rules         RulesConfig         `yaml:"rules" mapstructure:"rules"`
	UI            UIConfig            `yaml:"ui" mapstructure:"ui"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Title       string `yaml:"title" mapstructure:"title"`
	Description string `yaml:"description" mapstructure:"description"`
	Version     string `yaml:"version" mapstructure:"version"`
	Env         string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// StoreConfig 文档存储配置
type StoreConfig struct {
	// SnapshotDir 内容单元快照目录（ingest 产物，启动时一次性加载）
	SnapshotDir string `yaml:"snapshot_dir" mapstructure:"snapshot_dir"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	Milvus MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	IndexType          string `yaml:"index_type" mapstructure:"index_type"`
	MetricType         string `yaml:"metric_type" mapstructure:"metric_type"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis     RedisConfig   `yaml:"redis" mapstructure:"redis"`
	AnswerTTL time.Duration `yaml:"answer_ttl" mapstructure:"answer_ttl"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	SourceProvider  string                    `yaml:"source_provider" mapstructure:"source_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	FallbackChain   []string                  `yaml:"fallback_chain" mapstructure:"fallback_chain"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	CollectionName string   `yaml:"collection_name" mapstructure:"collection_name"`
	KInitial       int      `yaml:"k_initial" mapstructure:"k_initial"`
	KExpand        int      `yaml:"k_expand" mapstructure:"k_expand"`
	Modalities     []string `yaml:"modalities" mapstructure:"modalities"`

	// Retry 索引不可达时的本地重试策略
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// PlannerConfig 查询规划配置
type PlannerConfig struct {
	MaxRounds    int           `yaml:"max_rounds" mapstructure:"max_rounds"`
	RoundTimeout time.Duration `yaml:"round_timeout" mapstructure:"round_timeout"`

	// ComplexTokenThreshold 词数达到该值即判定为复杂查询
	ComplexTokenThreshold int `yaml:"complex_token_threshold" mapstructure:"complex_token_threshold"`
}

// RerankConfig 重排序配置
type RerankConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"`
}

// AnswerConfig 答案生成配置
type AnswerConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxOutputChars int           `yaml:"max_output_chars" mapstructure:"max_output_chars"`

	// ConsistencyMaxDroppedFraction 悬空引用比例超过该值即降级为证据不足
	ConsistencyMaxDroppedFraction float64 `yaml:"consistency_max_dropped_fraction" mapstructure:"consistency_max_dropped_fraction"`

	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig 有界重试 + 指数退避配置
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Initial     time.Duration `yaml:"initial" mapstructure:"initial"`
	Max         time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier  float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// GuardConfig 输入守卫配置
type GuardConfig struct {
	MinQueryLength int `yaml:"min_query_length" mapstructure:"min_query_length"`
	MinAlphaChars  int `yaml:"min_alpha_chars" mapstructure:"min_alpha_chars"`
}

// RulesConfig 饮食安全规则配置
type RulesConfig struct {
	SodiumMgMax          int `yaml:"sodium_mg_max" mapstructure:"sodium_mg_max"`
	PotassiumMgLimitFlag int `yaml:"potassium_mg_limit_flag" mapstructure:"potassium_mg_limit_flag"`
	PhosphorusMgLimit    int `yaml:"phosphorus_mg_limit_flag" mapstructure:"phosphorus_mg_limit_flag"`

	ProteinGPerKgCKD      string `yaml:"protein_g_per_kg_ckd" mapstructure:"protein_g_per_kg_ckd"`
	ProteinGPerKgDialysis string `yaml:"protein_g_per_kg_dialysis" mapstructure:"protein_g_per_kg_dialysis"`

	// HazardFoods 食物关键词 → 安全提示
	HazardFoods map[string]string `yaml:"hazard_foods" mapstructure:"hazard_foods"`
}

// UIConfig 调用方提示信息配置
type UIConfig struct {
	SampleQueries []string `yaml:"sample_queries" mapstructure:"sample_queries"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
