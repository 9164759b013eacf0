package provider

import (
	"context"
	"testing"

	"github.com/daniesso/chunkfault/config"
	"github.com/daniesso/chunkfault/pkg/service/fault"
	"github.com/daniesso/chunkfault/pkg/service/generateConfig"
	"github.com/daniesso/chunkfault/pkg/service/serve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGetService(t *testing.T) {
	p := NewServiceProvider(zaptest.NewLogger(t), config.New())

	svc, err := p.GetService(context.Background(), "run")
	require.NoError(t, err)
	assert.Implements(t, (*fault.Service)(nil), svc)

	svc, err = p.GetService(context.Background(), "serve")
	require.NoError(t, err)
	assert.Implements(t, (*serve.Service)(nil), svc)

	svc, err = p.GetService(context.Background(), "config")
	require.NoError(t, err)
	assert.Implements(t, (*generateConfig.GeneratorConfig)(nil), svc)

	_, err = p.GetService(context.Background(), "record")
	assert.Error(t, err)
}
