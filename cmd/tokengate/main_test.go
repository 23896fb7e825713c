package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tokengate/db"
)

const usdtAddress = "0xdac17f958d2ee523a2206206994597c13d831ec7"

func writeTestConfig(t *testing.T, explorerUrl string) string {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf(`
logging:
  outputLevel: "warn"
chains:
  - id: 1
    explorerUrl: %q
explorer:
  rateLimit: 100
  rateBurst: 10
database:
  engine: "sqlite"
  sqlite:
    file: %q
`, explorerUrl, filepath.Join(dir, "tokengate.sqlite"))

	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// newTestExplorer serves token info for usdt and a single mint in block 100.
func newTestExplorer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var transferRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch query.Get("action") {
		case "tokeninfo":
			w.Write([]byte(`{"status":"1","message":"OK","result":[{"contractAddress":"` + usdtAddress + `","tokenName":"Tether USD","symbol":"USDT","divisor":"6","tokenType":"ERC20","totalSupply":"1000"}]}`))
		case "tokentx":
			transferRequests.Add(1)
			if query.Get("startblock") != "0" {
				w.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status":  "1",
				"message": "OK",
				"result": []map[string]string{{
					"blockNumber":     "100",
					"timeStamp":       "1600001200",
					"hash":            fmt.Sprintf("0x%064x", 1),
					"blockHash":       fmt.Sprintf("0x%064x", 100),
					"from":            "0x0000000000000000000000000000000000000000",
					"to":              "0x00000000000000000000000000000000000000a1",
					"contractAddress": usdtAddress,
					"value":           "1000",
					"gasPrice":        "1000000000",
				}},
			})
		default:
			http.Error(w, "unexpected action", http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)

	return server, &transferRequests
}

func TestSetupApp(t *testing.T) {
	t.Setenv("RPC_ENDPOINTS", "137:https://polygon.example.org:8545/rpc")
	configPath := writeTestConfig(t, "http://127.0.0.1:1/api")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", configPath, "")

	a, err := setupApp(cmd, true)
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, "https://polygon.example.org:8545/rpc", a.cfg.GetChain(137).RpcUrl)
	assert.True(t, a.rpcPool.HasChain(137))
	assert.False(t, a.rpcPool.HasChain(1))
	assert.NotNil(t, a.coordinator)
	assert.NotNil(t, a.contracts)

	chains, err := db.GetChains()
	require.NoError(t, err)
	assert.Len(t, chains, 3)
}

func TestSetupAppInvalidConfig(t *testing.T) {
	t.Setenv("RPC_ENDPOINTS", "polygon")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", writeTestConfig(t, "http://127.0.0.1:1/api"), "")

	_, err := setupApp(cmd, false)
	assert.Error(t, err)
}

func TestChainsCommand(t *testing.T) {
	t.Setenv("RPC_ENDPOINTS", "56:https://bsc.example.org/rpc")

	out, err := executeCommand(t, "chains", "--config", writeTestConfig(t, "http://127.0.0.1:1/api"))
	require.NoError(t, err)
	assert.Contains(t, out, "Binance Smart Chain")
	assert.Contains(t, out, "configured")
	assert.Contains(t, out, "http://127.0.0.1:1/api")
}

func TestClassifyCommand(t *testing.T) {
	var calls atomic.Int32
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req struct {
			Id     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result := "0x"
		if req.Method == "eth_chainId" {
			result = "0x1"
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.Id, "result": result})
	}))
	defer node.Close()

	t.Setenv("RPC_ENDPOINTS", "1:"+node.URL)
	configPath := writeTestConfig(t, "http://127.0.0.1:1/api")

	out, err := executeCommand(t, "classify", "0x00000000000000000000000000000000000000a1", "--chain", "1", "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "eoa\n", out)
	// chain id check + code fetch
	assert.Equal(t, int32(2), calls.Load())

	_, err = executeCommand(t, "classify", "0x1234", "--config", configPath)
	assert.Error(t, err)
}

func TestRegisterAndIngestCommands(t *testing.T) {
	explorerServer, transferRequests := newTestExplorer(t)
	configPath := writeTestConfig(t, explorerServer.URL)

	out, err := executeCommand(t, "register", "0xdAC17F958D2ee523a2206206994597C13D831ec7", "--chain", "1", "--ingest", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "contract 1: Tether USD "+usdtAddress+" (erc20, 6 decimals) on chain 1")
	assert.Contains(t, out, "inserted 1 transfers")
	assert.Equal(t, int32(2), transferRequests.Load())

	// resumes after block 100 and finds nothing new
	out, err = executeCommand(t, "ingest", "--contract", "1", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "contract 1: fetched 0, inserted 0 in 0 batches")
	assert.Equal(t, int32(3), transferRequests.Load())
}
