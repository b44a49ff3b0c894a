package config

import (
	"os"
	"strconv"

	"golang.org/x/text/language"
)

// GeminiModels defines which Gemini models to use for different tasks
type GeminiModels struct {
	// Content generates theme suggestions and quiz rounds (JSON output)
	Content string `json:"content"`

	// TTS synthesizes the quiz master voice
	TTS string `json:"tts"`
}

// AIConfig holds all AI-related configuration
type AIConfig struct {
	APIKey    string       `json:"-"` // Never serialize
	BaseURL   string       `json:"baseUrl"`
	Models    GeminiModels `json:"models"`
	Voice     string       `json:"voice"`
	Language  language.Tag `json:"language"`
	TimeoutMS int          `json:"timeoutMs"`
}

// DefaultAIConfig returns the default AI configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		BaseURL: getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		Models: GeminiModels{
			Content: getEnvOrDefault("GEMINI_MODEL_CONTENT", "gemini-3-flash-preview"),
			TTS:     getEnvOrDefault("GEMINI_MODEL_TTS", "gemini-2.5-flash-preview-tts"),
		},
		Voice:     getEnvOrDefault("GEMINI_VOICE", "Kore"),
		Language:  ParseLanguage(os.Getenv("SQUIZY_LANGUAGE")),
		TimeoutMS: getEnvIntOrDefault("GEMINI_TIMEOUT_MS", 30000), // Round generation is slow
	}
}

// IsEnabled returns true if the AI API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full endpoint for a given model
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}

// ParseLanguage maps a BCP 47 string to a supported language, defaulting to Dutch
func ParseLanguage(s string) language.Tag {
	if s == "" {
		return language.Dutch
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Dutch
	}
	matcher := language.NewMatcher([]language.Tag{language.Dutch, language.English})
	_, idx, _ := matcher.Match(tag)
	if idx == 1 {
		return language.English
	}
	return language.Dutch
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
