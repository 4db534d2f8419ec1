// Package config handles platform configuration
package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
)

// Stream is a monitored video stream.
type Stream struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	GameID string `json:"game_id,omitempty"` // template to bind, empty for keyword extraction
}

type Config struct {
	HTTPAddr          string
	LogLevel          string
	RecognizerAddr    string
	RecognizerWorkers int
	RecognizerTimeout time.Duration
	RedisAddr         string // empty disables publishing
	RedisStreamPrefix string
	TemplatesFile     string
	FFmpegPath        string
	CaptureTimeout    time.Duration
	BigWinCooldown    time.Duration // per-stream big win alert suppression
	Streams           []Stream
	AllowedOrigins    []string
	Pipeline          Pipeline
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RecognizerAddr:    getEnv("RECOGNIZER_ADDR", "localhost:50051"),
		RecognizerWorkers: getEnvInt("RECOGNIZER_WORKERS", 2),
		RecognizerTimeout: getEnvDuration("RECOGNIZER_TIMEOUT", 10*time.Second),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisStreamPrefix: getEnv("REDIS_STREAM", "reelwatch.events"),
		TemplatesFile:     getEnv("TEMPLATES_FILE", ""),
		FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
		CaptureTimeout:    getEnvDuration("CAPTURE_TIMEOUT", 15*time.Second),
		BigWinCooldown:    getEnvDuration("BIG_WIN_COOLDOWN", 30*time.Second),
		Streams:           parseStreams(getEnvList("STREAMS", nil), getEnvList("STREAM_GAMES", nil)),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"localhost:*", "127.0.0.1:*"}),
		Pipeline:          LoadPipeline(),
	}
}

// Validate checks service and pipeline settings.
func (c *Config) Validate() error {
	if c.RecognizerWorkers <= 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "RECOGNIZER_WORKERS must be positive, got %d", c.RecognizerWorkers)
	}
	seen := make(map[string]bool, len(c.Streams))
	for _, s := range c.Streams {
		if seen[s.ID] {
			return apperrors.Newf(apperrors.ConfigInvalid, "duplicate stream id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return c.Pipeline.Validate()
}

// parseStreams reads "id=url" entries and binds "id=game" entries to them.
func parseStreams(entries, games []string) []Stream {
	gameOf := make(map[string]string, len(games))
	for _, g := range games {
		if id, game, ok := strings.Cut(g, "="); ok {
			gameOf[strings.TrimSpace(id)] = strings.TrimSpace(game)
		}
	}
	streams := make([]Stream, 0, len(entries))
	for _, e := range entries {
		id, url, ok := strings.Cut(e, "=")
		if !ok || id == "" || url == "" {
			continue
		}
		id = strings.TrimSpace(id)
		streams = append(streams, Stream{ID: id, URL: strings.TrimSpace(url), GameID: gameOf[id]})
	}
	return streams
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvByte reads an integer in [0, 255]; anything else keeps the default.
func getEnvByte(key string, def uint8) uint8 {
	if i := getEnvInt(key, -1); i >= 0 && i <= math.MaxUint8 {
		return uint8(i)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
