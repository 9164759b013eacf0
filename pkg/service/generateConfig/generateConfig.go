// Package generateConfig writes a chunkfault.yml populated with the default settings.
package generateConfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/daniesso/chunkfault/config"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const configGuide = `
# Every key above is shown with its default value.
# graceDelay is how long each responder holds a connection open after the response.
# readTimeout bounds how long a responder waits for the request headers, 0 disables it.
# maxConns caps concurrently handled connections per responder, 0 disables it.
# Set report.path to keep a YAML copy of every run report.
`

type generatorConfig struct {
	logger *zap.Logger
	mutex  sync.Mutex
}

func NewGeneratorConfig(logger *zap.Logger) GeneratorConfig {
	return &generatorConfig{
		logger: logger,
	}
}

// GenerateConfig writes configData, or the merged defaults when it is empty, to filePath.
func (g *generatorConfig) GenerateConfig(ctx context.Context, filePath string, configData string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if configData == "" {
		var err error
		configData, err = config.Merge(config.GetDefaultConfig(), config.InternalConfig)
		if err != nil {
			return fmt.Errorf("failed to build the default config: %w", err)
		}
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(configData), &node); err != nil {
		return fmt.Errorf("failed to unmarshal the config: %w", err)
	}
	if len(node.Content) == 0 {
		return errors.New("config is empty")
	}
	results, err := yaml.Marshal(node.Content[0])
	if err != nil {
		return fmt.Errorf("failed to marshal the config: %w", err)
	}

	finalOutput := append(results, []byte(configGuide)...)
	if err := os.WriteFile(filePath, finalOutput, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	g.logger.Info("Config file generated successfully", zap.String("path", filePath))
	return nil
}
