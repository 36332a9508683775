package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/utils"
)

type Config struct {
	JWTSecretKey   string
	AccessTokenTTL time.Duration
	Engine         EngineConfig
}

// EngineConfig is the session-engine tuning. Env covers the common knobs; an
// optional YAML file (ENGINE_CONFIG_PATH) can override everything, including
// the ladder thresholds and per-type grading costs.
type EngineConfig struct {
	SessionLimit     int            `yaml:"session_limit"`
	FreeDailyLimit   int            `yaml:"free_daily_limit"`
	AiPointsLimit    int            `yaml:"ai_points_limit"`
	AutosaveSeconds  int            `yaml:"autosave_seconds"`
	LadderThresholds []int          `yaml:"ladder_thresholds"`
	GradingCosts     map[string]int `yaml:"grading_costs"`
}

func (e EngineConfig) AutosaveInterval() time.Duration {
	return time.Duration(e.AutosaveSeconds) * time.Second
}

func (e EngineConfig) Ladder() learning.Ladder {
	if len(e.LadderThresholds) == 0 {
		return learning.DefaultLadder()
	}
	return learning.Ladder{Thresholds: e.LadderThresholds}
}

func (e EngineConfig) CostTable() learning.CostTable {
	if len(e.GradingCosts) == 0 {
		return learning.DefaultCostTable()
	}
	return learning.CostTable(e.GradingCosts)
}

func LoadConfig(log *logger.Logger) (Config, error) {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 86400, log)

	engine := EngineConfig{
		SessionLimit:    utils.GetEnvAsInt("SESSION_EXERCISE_LIMIT", 20, log),
		FreeDailyLimit:  utils.GetEnvAsInt("FREE_DAILY_LIMIT", 10, log),
		AiPointsLimit:   utils.GetEnvAsInt("AI_POINTS_LIMIT", 100, log),
		AutosaveSeconds: utils.GetEnvAsInt("SESSION_AUTOSAVE_SECONDS", 30, log),
	}
	if path := strings.TrimSpace(os.Getenv("ENGINE_CONFIG_PATH")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read engine config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &engine); err != nil {
			return Config{}, fmt.Errorf("parse engine config %s: %w", path, err)
		}
		log.Info("engine config loaded", "path", path)
	}

	return Config{
		JWTSecretKey:   jwtSecretKey,
		AccessTokenTTL: time.Duration(accessTokenTTLSeconds) * time.Second,
		Engine:         engine,
	}, nil
}
