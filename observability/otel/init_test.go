package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,bad, =skip,x-tenant=custody")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "custody",
	}, got)
	require.Empty(t, ParseHeaders(""))
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}
