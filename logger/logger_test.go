package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrNop(t *testing.T) {
	nop := OrNop(nil)
	require.NotNil(t, nop)
	nop.Infow("discarded", zap.String("k", "v"))

	l := zap.NewExample().Sugar()
	assert.Same(t, l, OrNop(l))
}
