package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tokengate/clients/explorer"
	"github.com/ethpandaops/tokengate/contracttype"
	"github.com/ethpandaops/tokengate/db"
	"github.com/ethpandaops/tokengate/dbtypes"
	"github.com/ethpandaops/tokengate/types"
)

type staticClassifier struct {
	addressType contracttype.AddressType
	err         error
	calls       int
}

func (c *staticClassifier) Classify(ctx context.Context, address common.Address, chainId uint64) (contracttype.AddressType, error) {
	c.calls++
	return c.addressType, c.err
}

func setupContractService(t *testing.T, classifier AddressClassifier) (*ContractService, *int) {
	t.Helper()

	err := db.InitDB(&types.DatabaseConfig{
		Engine: "sqlite",
		Sqlite: &types.SqliteDatabaseConfig{
			File: filepath.Join(t.TempDir(), "tokengate.sqlite"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(db.MustCloseDB)
	require.NoError(t, db.ApplyEmbeddedDbSchema(-2))
	require.NoError(t, db.RunDBTransaction(func(tx *sqlx.Tx) error {
		return db.EnsureChains([]*dbtypes.Chain{{Id: 1, Name: "Ethereum"}}, tx)
	}))

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("contractaddress") {
		case "0xdac17f958d2ee523a2206206994597c13d831ec7":
			w.Write([]byte(`{"status":"1","message":"OK","result":[{"contractAddress":"0xdac17f958d2ee523a2206206994597c13d831ec7","tokenName":"Tether USD","symbol":"USDT","divisor":"6","tokenType":"ERC20","totalSupply":"39823315849942740"}]}`))
		case "0x0e3a2a1f2146d86a604adc220b4967a898d7fe07":
			w.Write([]byte(`{"status":"1","message":"OK","result":[{"contractAddress":"0x0e3a2a1f2146d86a604adc220b4967a898d7fe07","tokenName":"Gods Unchained Cards","symbol":"CARD","divisor":"0","tokenType":"","totalSupply":"6962498"}]}`))
		case "0x00000000000000000000000000000000000000e0":
			w.Write([]byte(`{"status":"1","message":"OK","result":[]}`))
		default:
			w.Write([]byte(`{"status":"0","message":"Invalid contractAddress format","result":""}`))
		}
	}))
	t.Cleanup(server.Close)

	cfg := &types.Config{}
	cfg.Chains = []types.ChainConfig{{Id: 1, Name: "Ethereum", ExplorerUrl: server.URL}}
	cfg.Explorer.MaxRetries = 1

	return NewContractService(explorer.NewClientPool(cfg, logrus.New()), classifier, logrus.New()), &requests
}

func TestGetOrInitFromTokenInfo(t *testing.T) {
	classifier := &staticClassifier{}
	service, requests := setupContractService(t, classifier)

	contract, err := service.GetOrInit(context.Background(), "0xdAC17F958D2ee523a2206206994597C13D831ec7", 1)
	require.NoError(t, err)
	assert.Equal(t, "0xdac17f958d2ee523a2206206994597c13d831ec7", contract.Address)
	assert.Equal(t, uint16(20), contract.ErcStandard)
	assert.Equal(t, "Tether USD", contract.TokenName)
	assert.Equal(t, uint64(6), contract.Decimals)
	assert.Equal(t, uint64(0), contract.Holders)
	assert.Equal(t, 0, classifier.calls)

	again, err := service.GetOrInit(context.Background(), "0xdac17f958d2ee523a2206206994597c13d831ec7", 1)
	require.NoError(t, err)
	assert.Equal(t, contract.Id, again.Id)
	assert.Equal(t, 1, *requests)
}

func TestGetOrInitClassifierFallback(t *testing.T) {
	tests := []struct {
		name        string
		addressType contracttype.AddressType
		classErr    error
		standard    uint16
		wantErr     bool
	}{
		{name: "nft", addressType: contracttype.AddressTypeERC721, standard: 721},
		{name: "generic contract", addressType: contracttype.AddressTypeContract, wantErr: true},
		{name: "eoa", addressType: contracttype.AddressTypeEOA, wantErr: true},
		{name: "classifier failure", classErr: &contracttype.ClassificationError{Reason: "circular proxy chain"}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			classifier := &staticClassifier{addressType: test.addressType, err: test.classErr}
			service, _ := setupContractService(t, classifier)

			contract, err := service.GetOrInit(context.Background(), "0x0e3a2a1f2146d86a604adc220b4967a898d7fe07", 1)
			assert.Equal(t, 1, classifier.calls)

			if test.wantErr {
				var classErr *contracttype.ClassificationError
				require.True(t, errors.As(err, &classErr))
				assert.Contains(t, err.Error(), "contract type undeterminable")

				missing, err := db.GetContractByAddress("0x0e3a2a1f2146d86a604adc220b4967a898d7fe07", 1)
				require.NoError(t, err)
				assert.Nil(t, missing)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.standard, contract.ErcStandard)
			assert.Equal(t, "Gods Unchained Cards", contract.TokenName)
		})
	}
}

func TestGetOrInitErrors(t *testing.T) {
	service, _ := setupContractService(t, &staticClassifier{})

	_, err := service.GetOrInit(context.Background(), "0x1234", 1)
	assert.Error(t, err)

	_, err = service.GetOrInit(context.Background(), "0x00000000000000000000000000000000000000e0", 1)
	assert.ErrorIs(t, err, ErrTokenInfoMissing)

	_, err = service.GetOrInit(context.Background(), "0x00000000000000000000000000000000000000e1", 1)
	var infoErr *explorer.TokenInfoError
	require.True(t, errors.As(err, &infoErr))
	assert.Equal(t, "Invalid contractAddress format", infoErr.Message)

	_, err = service.GetOrInit(context.Background(), "0x00000000000000000000000000000000000000e1", 56)
	var configErr *types.ConfigError
	require.True(t, errors.As(err, &configErr))
}
