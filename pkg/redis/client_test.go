package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, err := NewClient(context.Background(), WithAddr(mr.Host(), port), WithPrefix("sp"))
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Health(context.Background()))
	assert.Equal(t, "sp:signals", c.Key("signals"))
	assert.Equal(t, "sp:a:b", c.Key("a", "b"))
}

func TestNewClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host := mr.Host()
	port, _ := strconv.Atoi(mr.Port())
	mr.Close()

	_, err := NewClient(context.Background(), WithAddr(host, port))
	assert.Error(t, err)
}

func TestKeyWithoutPrefix(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "signals", c.Key("signals"))
}
