package config

import (
	"time"

	"dario.cat/mergo"

	"thoughtweb/domain/similarity"
	"thoughtweb/pkg/utils"
)

// ConnectionConfig holds the thresholds of connection discovery.
type ConnectionConfig struct {
	MinSemanticSimilarity     float64            `json:"minSemanticSimilarity" yaml:"min_semantic_similarity" validate:"gte=0,lte=1"`
	MaxTemporalDelta          time.Duration      `json:"maxTemporalDelta" yaml:"max_temporal_delta" validate:"gt=0"`
	MinSharedTags             int                `json:"minSharedTags" yaml:"min_shared_tags" validate:"gte=1"`
	MinCategoricalSimilarity  float64            `json:"minCategoricalSimilarity" yaml:"min_categorical_similarity" validate:"gte=0,lte=1"`
	MaxConnectionsPerItem     int                `json:"maxConnectionsPerItem" yaml:"max_connections_per_item" validate:"gte=1"`
	BatchSize                 int                `json:"batchSize" yaml:"batch_size" validate:"gte=1"`
	EnableBackgroundDiscovery bool               `json:"enableBackgroundDiscovery" yaml:"enable_background_discovery"`
	DiscoveryInterval         time.Duration      `json:"discoveryInterval" yaml:"discovery_interval" validate:"gt=0"`
	ClusterMinWeight          float64            `json:"clusterMinWeight" yaml:"cluster_min_weight" validate:"gte=0,lte=1"`
	ClusterMinSize            int                `json:"clusterMinSize" yaml:"cluster_min_size" validate:"gte=1"`
	Weights                   similarity.Weights `json:"weights" yaml:"weights"`
}

// PatternConfig holds the thresholds of pattern detection.
type PatternConfig struct {
	MinSimilarity        float64       `json:"minSimilarity" yaml:"min_similarity" validate:"gte=0,lte=1"`
	MinPatternConfidence float64       `json:"minPatternConfidence" yaml:"min_pattern_confidence" validate:"gte=0,lte=1"`
	TemporalWindow       time.Duration `json:"temporalWindow" yaml:"temporal_window" validate:"gt=0"`
	MinOccurrences       int           `json:"minOccurrences" yaml:"min_occurrences" validate:"gte=1"`
}

// MemoryConfig sizes the memory store.
type MemoryConfig struct {
	EmbeddingDimensions int     `json:"embeddingDimensions" yaml:"embedding_dimensions" validate:"gte=8"`
	CacheSize           int     `json:"cacheSize" yaml:"cache_size" validate:"gte=1"`
	EmbeddingCacheSize  int     `json:"embeddingCacheSize" yaml:"embedding_cache_size" validate:"gte=1"`
	SearchLimit         int     `json:"searchLimit" yaml:"search_limit" validate:"gte=1"`
	SearchFloor         float64 `json:"searchFloor" yaml:"search_floor" validate:"gte=0,lte=1"`
	RelatedFloor        float64 `json:"relatedFloor" yaml:"related_floor" validate:"gte=0,lte=1"`
	RelatedLimit        int     `json:"relatedLimit" yaml:"related_limit" validate:"gte=1"`
}

// InsightConfig holds the thresholds of insight generation.
type InsightConfig struct {
	ConnectionSimilarity  float64       `json:"connectionSimilarity" yaml:"connection_similarity" validate:"gte=0,lte=1"`
	ConnectionSearchMin   float64       `json:"connectionSearchMin" yaml:"connection_search_min" validate:"gte=0,lte=1"`
	ConnectionLimit       int           `json:"connectionLimit" yaml:"connection_limit" validate:"gte=1"`
	PatternConfidence     float64       `json:"patternConfidence" yaml:"pattern_confidence" validate:"gte=0,lte=1"`
	PatternMinOccurrences int           `json:"patternMinOccurrences" yaml:"pattern_min_occurrences" validate:"gte=1"`
	PatternMinInWindow    int           `json:"patternMinInWindow" yaml:"pattern_min_in_window" validate:"gte=1"`
	ReminderConfidence    float64       `json:"reminderConfidence" yaml:"reminder_confidence" validate:"gte=0,lte=1"`
	StaleAfter            time.Duration `json:"staleAfter" yaml:"stale_after" validate:"gt=0"`
	ReminderMaxAge        time.Duration `json:"reminderMaxAge" yaml:"reminder_max_age" validate:"gt=0"`
	MaxReminders          int           `json:"maxReminders" yaml:"max_reminders" validate:"gte=0"`
	DefaultWindow         time.Duration `json:"defaultWindow" yaml:"default_window" validate:"gt=0"`
	SuggestionConfidence  float64       `json:"suggestionConfidence" yaml:"suggestion_confidence" validate:"gte=0,lte=1"`
	MaxSuggestions        int           `json:"maxSuggestions" yaml:"max_suggestions" validate:"gte=0"`
}

// DomainConfig groups every tunable business rule.
type DomainConfig struct {
	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Pattern    PatternConfig    `json:"pattern" yaml:"pattern"`
	Memory     MemoryConfig     `json:"memory" yaml:"memory"`
	Insight    InsightConfig    `json:"insight" yaml:"insight"`
}

// DefaultConnectionConfig returns the documented discovery defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MinSemanticSimilarity:     0.3,
		MaxTemporalDelta:          7 * 24 * time.Hour,
		MinSharedTags:             2,
		MinCategoricalSimilarity:  0.4,
		MaxConnectionsPerItem:     50,
		BatchSize:                 10,
		EnableBackgroundDiscovery: false,
		DiscoveryInterval:         30 * time.Second,
		ClusterMinWeight:          0.5,
		ClusterMinSize:            3,
		Weights:                   similarity.DefaultWeights(),
	}
}

// DefaultPatternConfig returns the documented pattern defaults.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		MinSimilarity:        0.6,
		MinPatternConfidence: 0.5,
		TemporalWindow:       7 * 24 * time.Hour,
		MinOccurrences:       3,
	}
}

// DefaultMemoryConfig returns the memory store defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		EmbeddingDimensions: 128,
		CacheSize:           100,
		EmbeddingCacheSize:  1000,
		SearchLimit:         10,
		SearchFloor:         0.1,
		RelatedFloor:        0.3,
		RelatedLimit:        5,
	}
}

// DefaultInsightConfig returns the insight defaults.
func DefaultInsightConfig() InsightConfig {
	return InsightConfig{
		ConnectionSimilarity:  0.7,
		ConnectionSearchMin:   0.5,
		ConnectionLimit:       3,
		PatternConfidence:     0.7,
		PatternMinOccurrences: 3,
		PatternMinInWindow:    2,
		ReminderConfidence:    0.8,
		StaleAfter:            7 * 24 * time.Hour,
		ReminderMaxAge:        14 * 24 * time.Hour,
		MaxReminders:          2,
		DefaultWindow:         7 * 24 * time.Hour,
		SuggestionConfidence:  0.6,
		MaxSuggestions:        2,
	}
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		Connection: DefaultConnectionConfig(),
		Pattern:    DefaultPatternConfig(),
		Memory:     DefaultMemoryConfig(),
		Insight:    DefaultInsightConfig(),
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()

	cfg.Connection.BatchSize = 25
	cfg.Connection.EnableBackgroundDiscovery = true
	cfg.Connection.DiscoveryInterval = 5 * time.Minute
	cfg.Memory.CacheSize = 500

	return cfg
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()

	cfg.Connection.BatchSize = 5
	cfg.Connection.DiscoveryInterval = 10 * time.Second

	return cfg
}

// LoadDomainConfig picks the variant for an environment name.
func LoadDomainConfig(env string) *DomainConfig {
	switch env {
	case "production", "prod":
		return ProductionDomainConfig()
	case "development", "dev":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Merge overlays the non-zero fields of override onto cfg. Zero values in
// override leave the current value untouched, so a partial override cannot
// reset a field to zero or false.
func (cfg *DomainConfig) Merge(override DomainConfig) error {
	return mergo.Merge(cfg, override, mergo.WithOverride)
}

// Validate checks every threshold against its allowed range.
func (cfg *DomainConfig) Validate() error {
	return utils.ValidateStruct(cfg)
}

// MergeConnectionConfig returns the defaults overlaid with override.
func MergeConnectionConfig(override ConnectionConfig) (ConnectionConfig, error) {
	cfg := DefaultConnectionConfig()
	if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
		return cfg, err
	}
	return cfg, utils.ValidateStruct(cfg)
}

// MergePatternConfig returns the defaults overlaid with override.
func MergePatternConfig(override PatternConfig) (PatternConfig, error) {
	cfg := DefaultPatternConfig()
	if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
		return cfg, err
	}
	return cfg, utils.ValidateStruct(cfg)
}

// MergeMemoryConfig returns the defaults overlaid with override.
func MergeMemoryConfig(override MemoryConfig) (MemoryConfig, error) {
	cfg := DefaultMemoryConfig()
	if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
		return cfg, err
	}
	return cfg, utils.ValidateStruct(cfg)
}

// MergeInsightConfig returns the defaults overlaid with override.
func MergeInsightConfig(override InsightConfig) (InsightConfig, error) {
	cfg := DefaultInsightConfig()
	if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
		return cfg, err
	}
	return cfg, utils.ValidateStruct(cfg)
}
