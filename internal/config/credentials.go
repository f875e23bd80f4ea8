package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials are API keys supplied at runtime. They are passed explicitly
// into each run and never written to the settings file.
type Credentials struct {
	OpenAIKey string `json:"-"`
	GeminiKey string `json:"-"`
}

// LoadCredentials loads the given env files (missing files are skipped,
// existing environment variables win) and reads the known API key variables.
// Keys are always returned; the error reports env files that exist but could
// not be parsed.
func LoadCredentials(envFiles ...string) (Credentials, error) {
	var errs []error
	for _, path := range envFiles {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			errs = append(errs, fmt.Errorf("load env file %s: %w", path, err))
		}
	}

	return Credentials{
		OpenAIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GeminiKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
	}, errors.Join(errs...)
}

// Merge returns c with any non-empty field of override applied.
func (c Credentials) Merge(override Credentials) Credentials {
	if k := strings.TrimSpace(override.OpenAIKey); k != "" {
		c.OpenAIKey = k
	}
	if k := strings.TrimSpace(override.GeminiKey); k != "" {
		c.GeminiKey = k
	}
	return c
}
