package game

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config carries every tunable the engine reads. Values are enumerated once
// at startup, never re-read per call site.
type Config struct {
	RoundDuration    time.Duration
	RoundStartNumber int64
	MinBet           int64
	MinDeposit       int64
	MinWithdraw      int64
	DrawWeights      [3]int // red, green, violet percentages
	AutoDraw         bool
}

func LoadConfig() Config {
	cfg := Config{
		RoundDuration:    time.Duration(getEnvAsInt("ROUND_DURATION_SECONDS", 180)) * time.Second,
		RoundStartNumber: int64(getEnvAsInt("ROUND_START_NUMBER", 100000)),
		MinBet:           int64(getEnvAsInt("MIN_BET", 10)),
		MinDeposit:       int64(getEnvAsInt("MIN_DEPOSIT", 100)),
		MinWithdraw:      int64(getEnvAsInt("MIN_WITHDRAW", 100)),
		AutoDraw:         getEnvAsBool("AUTO_DRAW", true),
	}

	weights, err := ParseWeights(getEnv("DRAW_WEIGHTS", "45,30,25"))
	if err != nil {
		weights = [3]int{45, 30, 25}
	}
	cfg.DrawWeights = weights

	return cfg
}

// ParseWeights parses a "red,green,violet" percentage triple. The weights
// must be positive and sum to 100.
func ParseWeights(s string) ([3]int, error) {
	var weights [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return weights, fmt.Errorf("expected 3 weights, got %d", len(parts))
	}

	sum := 0
	for i, part := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return weights, fmt.Errorf("weight %q: %w", part, err)
		}
		if w <= 0 {
			return weights, fmt.Errorf("weight %d must be positive", w)
		}
		weights[i] = w
		sum += w
	}
	if sum != 100 {
		return weights, fmt.Errorf("weights sum to %d, want 100", sum)
	}

	return weights, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
