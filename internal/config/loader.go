// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, "configs/config.yaml", false); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := fmt.Sprintf("configs/config.%s.yaml", env)
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值 (兜底)
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnv(string(content))

	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，防止后续 ReadInConfig 报错
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	re := regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		submatch := re.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		val, ok := os.LookupEnv(key)
		if ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "nutrinephra")
	v.SetDefault("app.title", "NutriNephra: renal nutrition evidence assistant")
	v.SetDefault("app.description", "Multimodal RAG for CKD/ESRD diet and microbiome guidance (not medical advice).")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "60s")
	v.SetDefault("server.http.idle_timeout", "120s")

	// 文档存储默认值
	v.SetDefault("store.snapshot_dir", "./data_cache")

	// Milvus 默认值
	v.SetDefault("vector.milvus.host", "localhost")
	v.SetDefault("vector.milvus.port", 19530)
	v.SetDefault("vector.milvus.collection_prefix", "nutrinephra")
	v.SetDefault("vector.milvus.index_type", "HNSW")
	v.SetDefault("vector.milvus.metric_type", "COSINE")
	v.SetDefault("vector.milvus.hnsw_m", 16)
	v.SetDefault("vector.milvus.hnsw_ef_construction", 200)

	// Redis 默认值
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 100)
	v.SetDefault("cache.redis.min_idle_conns", 10)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")
	v.SetDefault("cache.answer_ttl", "10m")

	// Embedding 默认值
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-large")
	v.SetDefault("embedding.dimension", 1024)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout", "30s")

	// 检索默认值
	v.SetDefault("retrieval.collection_name", "summary_units")
	v.SetDefault("retrieval.k_initial", 6)
	v.SetDefault("retrieval.k_expand", 10)
	v.SetDefault("retrieval.modalities", []string{"text", "table", "image"})
	v.SetDefault("retrieval.retry.max_attempts", 3)
	v.SetDefault("retrieval.retry.initial", "200ms")
	v.SetDefault("retrieval.retry.max", "2s")
	v.SetDefault("retrieval.retry.multiplier", 2.0)

	// 规划器默认值
	v.SetDefault("planner.max_rounds", 3)
	v.SetDefault("planner.round_timeout", "5s")
	v.SetDefault("planner.complex_token_threshold", 18)

	// 重排序默认值
	v.SetDefault("rerank.top_k", 8)

	// 答案生成默认值
	v.SetDefault("answer.request_timeout", "45s")
	v.SetDefault("answer.max_output_chars", 2400)
	v.SetDefault("answer.consistency_max_dropped_fraction", 0.5)
	v.SetDefault("answer.retry.max_attempts", 3)
	v.SetDefault("answer.retry.initial", "500ms")
	v.SetDefault("answer.retry.max", "8s")
	v.SetDefault("answer.retry.multiplier", 2.0)

	// 输入守卫默认值
	v.SetDefault("guard.min_query_length", 3)
	v.SetDefault("guard.min_alpha_chars", 3)

	// 饮食安全规则默认值
	v.SetDefault("rules.sodium_mg_max", 2000)
	v.SetDefault("rules.potassium_mg_limit_flag", 2500)
	v.SetDefault("rules.phosphorus_mg_limit_flag", 1000)
	v.SetDefault("rules.protein_g_per_kg_ckd", "0.6-0.8")
	v.SetDefault("rules.protein_g_per_kg_dialysis", "1.0-1.2")
	v.SetDefault("rules.hazard_foods", map[string]string{
		"grapefruit": "May interact with certain medications; verify with clinician.",
		"star fruit": "Neurotoxic risk in kidney disease; generally avoid.",
		"herbal":     "Herbal supplements can accumulate or interact; caution.",
	})

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.output", "stdout")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.exporter", "otlp")
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_second", 20)
	v.SetDefault("security.rate_limit.burst", 40)
}
