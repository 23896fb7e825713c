package transfers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tokengate/clients/explorer"
	"github.com/ethpandaops/tokengate/dbtypes"
	"github.com/ethpandaops/tokengate/types"
)

type testTransfer struct {
	Block    uint64
	Hash     string
	From     string
	To       string
	Value    string
	TokenId  string
	LogIndex string
}

func (tt testTransfer) toJson() map[string]string {
	item := map[string]string{
		"blockNumber":       strconv.FormatUint(tt.Block, 10),
		"timeStamp":         strconv.FormatUint(1600000000+tt.Block*12, 10),
		"hash":              tt.Hash,
		"nonce":             "1",
		"blockHash":         fmt.Sprintf("0x%064x", tt.Block),
		"from":              tt.From,
		"to":                tt.To,
		"transactionIndex":  "0",
		"gas":               "21000",
		"gasPrice":          "1000000000",
		"gasUsed":           "21000",
		"cumulativeGasUsed": "21000",
		"input":             "deprecated",
		"confirmations":     "100",
	}
	if tt.Value != "" {
		item["value"] = tt.Value
	}
	if tt.TokenId != "" {
		item["tokenID"] = tt.TokenId
	}
	if tt.LogIndex != "" {
		item["logIndex"] = tt.LogIndex
	}
	return item
}

// fakeExplorer serves pages produced by pageFn for every tokentx style request.
type fakeExplorer struct {
	server   *httptest.Server
	requests atomic.Int32
	mutex    sync.Mutex
	starts   []uint64
}

func newFakeExplorer(t *testing.T, pageFn func(startBlock uint64, pageSize int) []testTransfer) *fakeExplorer {
	t.Helper()

	fake := &fakeExplorer{}
	fake.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.requests.Add(1)

		query := r.URL.Query()
		startBlock, err := strconv.ParseUint(query.Get("startblock"), 10, 64)
		require.NoError(t, err)
		pageSize, err := strconv.Atoi(query.Get("offset"))
		require.NoError(t, err)

		fake.mutex.Lock()
		fake.starts = append(fake.starts, startBlock)
		fake.mutex.Unlock()

		items := []map[string]string{}
		for _, transfer := range pageFn(startBlock, pageSize) {
			items = append(items, transfer.toJson())
		}

		status, message := "1", "OK"
		if len(items) == 0 {
			status, message = "0", "No transactions found"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  status,
			"message": message,
			"result":  items,
		})
	}))
	t.Cleanup(fake.server.Close)

	return fake
}

func (fake *fakeExplorer) startBlocks() []uint64 {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return append([]uint64{}, fake.starts...)
}

func newTestClientPool(url string) *explorer.ClientPool {
	cfg := &types.Config{}
	cfg.Chains = []types.ChainConfig{
		{Id: 1, Name: "Ethereum", ExplorerUrl: url},
	}
	cfg.Explorer.MaxRetries = 1
	return explorer.NewClientPool(cfg, logrus.New())
}

// memStore keeps the ledger in memory with the same uniqueness rule as the db schema.
type memStore struct {
	mutex        sync.Mutex
	rows         map[string]*dbtypes.Transaction
	contracts    []*dbtypes.Contract
	insertErr    error
	refreshCalls int
	holderCalls  int
}

func newMemStore(contracts ...*dbtypes.Contract) *memStore {
	return &memStore{
		rows:      map[string]*dbtypes.Transaction{},
		contracts: contracts,
	}
}

func (s *memStore) GetMaxBlockNumber(contractId uint64) (uint64, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var maxBlock uint64
	found := false
	for _, row := range s.rows {
		if row.ContractId != contractId {
			continue
		}
		if !found || row.BlockNumber > maxBlock {
			maxBlock = row.BlockNumber
		}
		found = true
	}
	return maxBlock, found, nil
}

func (s *memStore) InsertTransactions(txs []*dbtypes.Transaction) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.insertErr != nil {
		return 0, s.insertErr
	}

	var inserted int64
	for _, tx := range txs {
		key := fmt.Sprintf("%v:%v:%v", tx.ContractId, tx.TxHash, tx.LogIndex)
		if s.rows[key] != nil {
			continue
		}
		row := *tx
		s.rows[key] = &row
		inserted++
	}
	return inserted, nil
}

func (s *memStore) RefreshBalances() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.refreshCalls++
	return nil
}

func (s *memStore) UpdateHolders() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.holderCalls++
	return nil
}

func (s *memStore) GetContracts() ([]*dbtypes.Contract, error) {
	return s.contracts, nil
}

func (s *memStore) GetContractById(id uint64) (*dbtypes.Contract, error) {
	for _, contract := range s.contracts {
		if contract.Id == id {
			return contract, nil
		}
	}
	return nil, nil
}

func (s *memStore) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.rows)
}

const (
	testTokenAddress = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	zeroAddress      = "0x0000000000000000000000000000000000000000"
	aliceAddress     = "0x00000000000000000000000000000000000000a1"
	bobAddress       = "0x00000000000000000000000000000000000000b0"
)

func testContract(id uint64, standard uint16) *dbtypes.Contract {
	return &dbtypes.Contract{
		Id:          id,
		Address:     testTokenAddress,
		ChainId:     1,
		ErcStandard: standard,
		TokenName:   "Tether USD",
		Decimals:    6,
	}
}

func txHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}
