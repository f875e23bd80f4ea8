package transcribe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrModelNotFound marks local failures caused by a missing or unreadable
// model rather than by the audio. Normalizing the audio cannot fix them.
var ErrModelNotFound = errors.New("whisper model not found")

// ModelFileName maps a whisper.cpp model tier to its ggml file name.
func ModelFileName(tier string) string {
	return "ggml-" + strings.TrimSpace(tier) + ".bin"
}

// IsModelFile reports whether name looks like a whisper.cpp model file.
func IsModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".bin" || ext == ".gguf"
}

// resolveModelPath returns the model file for rawPath. A file is used as is;
// in a directory the tier's file wins, otherwise the first model by name.
func resolveModelPath(
	rawPath, tier string,
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("%w: model path is required", ErrModelNotFound)
	}

	info, err := stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("%w: cannot access model path: %s", ErrModelNotFound, modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read model directory: %s", ErrModelNotFound, modelPath)
	}

	preferred := ""
	if strings.TrimSpace(tier) != "" {
		preferred = ModelFileName(tier)
	}
	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsModelFile(entry.Name()) {
			continue
		}
		if entry.Name() == preferred {
			return filepath.Join(modelPath, preferred), nil
		}
		modelNames = append(modelNames, entry.Name())
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("%w: no .bin or .gguf model files found in: %s", ErrModelNotFound, modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}
