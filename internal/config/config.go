package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every knob the negotiation service reads at startup.
// Values come from flags first, then the environment (optionally seeded
// from a .env file).
type Config struct {
	Port string
	Env  string

	Warehouse WarehouseConfig
	History   HistoryConfig
	LLM       LLMConfig
	Model     ModelConfig
	Artifact  ArtifactConfig
}

type WarehouseConfig struct {
	DSN string
}

type HistoryConfig struct {
	DSN       string
	CacheSize int
}

type LLMConfig struct {
	APIKey string
}

// ModelConfig mirrors the per-use-case model tuning of the negotiation
// workflow: which models to call, how much history to replay and how
// aggressively to match CTA text.
type ModelConfig struct {
	ModelName                string
	FastModelName            string
	SimilarityModel          string
	ConversationWindow       int
	ArgRetrieverK            int
	EmailRetrieverK          int
	MaxRetrievedDocuments    int
	ArgumentCTAThreshold     int
	EmailCTAThreshold        int
	SupplierFuzzyCandidates  int
	MaxSKUsInSupplierProfile int
	KnowledgeTable           string
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: *port,
		Env:  env,
		Warehouse: WarehouseConfig{
			DSN: firstNonEmpty(os.Getenv("WAREHOUSE_DSN"), os.Getenv("DATABASE_URL")),
		},
		History: HistoryConfig{
			DSN:       firstNonEmpty(os.Getenv("HISTORY_DSN"), os.Getenv("DATABASE_URL")),
			CacheSize: intEnv("HISTORY_CACHE_SIZE", 1024),
		},
		LLM: LLMConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		},
		Model:    loadModelConfig(),
		Artifact: loadArtifactConfig(env),
	}, nil
}

func loadModelConfig() ModelConfig {
	return ModelConfig{
		ModelName:                firstNonEmpty(os.Getenv("NEGO_MODEL"), "gemini-2.5-pro"),
		FastModelName:            firstNonEmpty(os.Getenv("NEGO_FAST_MODEL"), "gemini-2.5-flash"),
		SimilarityModel:          firstNonEmpty(os.Getenv("NEGO_SIMILARITY_MODEL"), "text-embedding-004"),
		ConversationWindow:       intEnv("NEGO_CONVERSATION_WINDOW", 6),
		ArgRetrieverK:            intEnv("NEGO_ARG_RETRIEVER_K", 8),
		EmailRetrieverK:          intEnv("NEGO_EMAIL_RETRIEVER_K", 8),
		MaxRetrievedDocuments:    intEnv("NEGO_MAX_RETRIEVED_DOCUMENTS", 5),
		ArgumentCTAThreshold:     intEnv("NEGO_ARGUMENT_CTA_THRESHOLD", 80),
		EmailCTAThreshold:        intEnv("NEGO_EMAIL_CTA_THRESHOLD", 80),
		SupplierFuzzyCandidates:  intEnv("NEGO_SUPPLIER_FUZZY_CANDIDATES", 10),
		MaxSKUsInSupplierProfile: intEnv("NEGO_MAX_PROFILE_SKUS", 20),
		KnowledgeTable:           firstNonEmpty(os.Getenv("NEGO_KNOWLEDGE_TABLE"), "DATA.NEGOTIATION_KNOWLEDGE_BASE"),
	}
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "negofactory-gameplans"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
