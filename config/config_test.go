package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
api_url: http://localhost:8080
slippage_bps: 50
poll_interval: 10s
networks:
  - name: ethereum
    chain_id: 1
    rpc_url: http://localhost:8545
    gas_limit: 500000
  - name: optimism
    chain_id: 10
    rpc_url: http://localhost:9545
logging:
  level: debug
  format: json
`

func readYAML(t *testing.T, body string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(body)))
	return v
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, uint32(30), cfg.SlippageBps)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, uint64(1), cfg.Confirmations)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.HistoryPath)
	assert.Len(t, cfg.Networks, 4)

	n, ok := cfg.Network(137)
	require.True(t, ok)
	assert.Equal(t, "polygon", n.Name)
}

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode(readYAML(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, uint32(50), cfg.SlippageBps)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.Len(t, cfg.Networks, 2)

	eth, ok := cfg.NetworkByName("Ethereum")
	require.True(t, ok)
	require.NotNil(t, eth.GasLimit)
	assert.Equal(t, uint64(500000), *eth.GasLimit)
	assert.Nil(t, eth.GasPrice)

	op, ok := cfg.NetworkByName("10")
	require.True(t, ok)
	assert.Equal(t, "optimism", op.Name)

	_, ok = cfg.Network(56)
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	_, err := Decode(readYAML(t, "api_url: ''\n"))
	assert.Error(t, err)

	_, err = Decode(readYAML(t, "slippage_bps: 20000\n"))
	assert.Error(t, err)

	dup := `
networks:
  - {name: a, chain_id: 1, rpc_url: http://a}
  - {name: b, chain_id: 1, rpc_url: http://b}
`
	_, err = Decode(readYAML(t, dup))
	assert.Error(t, err)
}

func TestRequireKey(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireKey())

	cfg.PrivateKey = "not-hex"
	assert.Error(t, cfg.RequireKey())

	cfg.PrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	assert.NoError(t, cfg.RequireKey())
}
