package app

import (
	"os"
	"strings"

	"github.com/maturio/maturio-backend/internal/clients/openai"
	"github.com/maturio/maturio-backend/internal/clients/redis"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
)

type Clients struct {
	QuotaCache redis.QuotaCache
	Grader     *openai.Grader
}

func wireClients(log *logger.Logger) Clients {
	log.Info("Wiring clients...")

	var cache redis.QuotaCache
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		c, err := redis.NewQuotaCache(log)
		if err != nil {
			log.Warn("redis quota cache unavailable; quota reads fall back to postgres", "error", err)
		} else {
			cache = c
		}
	}

	// Without a grader the engine still serves and scores closed exercises;
	// open-ended submissions fail with grader_unavailable.
	var grader *openai.Grader
	g, err := openai.NewGrader(log)
	if err != nil {
		log.Warn("openai grader unavailable", "error", err)
	} else {
		grader = g
	}

	return Clients{QuotaCache: cache, Grader: grader}
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.QuotaCache != nil {
		_ = c.QuotaCache.Close()
	}
}
