package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewClient_ConfiguredTimeout(t *testing.T) {
	c := NewClient("key", "gpt-4o-mini", "gpt-4o", "text-embedding-3-small", 0.2, 1024, 30)
	require.Equal(t, 30*time.Second, c.callTimeout)
}

func TestNewClient_DefaultTimeoutWhenUnset(t *testing.T) {
	c := NewClient("key", "gpt-4o-mini", "gpt-4o", "text-embedding-3-small", 0.2, 1024, 0)
	require.Equal(t, defaultCallTimeout, c.callTimeout)
}
