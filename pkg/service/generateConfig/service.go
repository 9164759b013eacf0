package generateConfig

import "context"

type GeneratorConfig interface {
	GenerateConfig(ctx context.Context, filePath string, configData string) error
}
