package explorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// NormalizeAddress lowercases an address and checks its format.
func NormalizeAddress(address string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(address))
	if !addressPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	return normalized, nil
}

// apiString accepts both quoted and bare JSON numbers, explorers are not consistent here.
type apiString string

func (s *apiString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = apiString(str)
		return nil
	}
	*s = apiString(data)
	return nil
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// transferItem is one entry of a tokentx / tokennfttx / token1155tx result as sent by the explorer.
type transferItem struct {
	BlockNumber       apiString `json:"blockNumber"`
	TimeStamp         apiString `json:"timeStamp"`
	Hash              apiString `json:"hash"`
	Nonce             apiString `json:"nonce"`
	BlockHash         apiString `json:"blockHash"`
	TransactionIndex  apiString `json:"transactionIndex"`
	LogIndex          apiString `json:"logIndex"`
	From              apiString `json:"from"`
	To                apiString `json:"to"`
	ContractAddress   apiString `json:"contractAddress"`
	Value             apiString `json:"value"`
	TokenValue        apiString `json:"tokenValue"`
	TokenID           apiString `json:"tokenID"`
	TokenName         apiString `json:"tokenName"`
	TokenSymbol       apiString `json:"tokenSymbol"`
	TokenDecimal      apiString `json:"tokenDecimal"`
	Gas               apiString `json:"gas"`
	GasPrice          apiString `json:"gasPrice"`
	GasUsed           apiString `json:"gasUsed"`
	CumulativeGasUsed apiString `json:"cumulativeGasUsed"`
	Input             apiString `json:"input"`
	Confirmations     apiString `json:"confirmations"`
}

// TransferEvent is a validated transfer as returned by the explorer.
type TransferEvent struct {
	BlockNumber       uint64
	Timestamp         time.Time
	Hash              string
	Nonce             uint64
	BlockHash         string
	TransactionIndex  uint64
	LogIndex          *uint64
	From              string
	To                string
	Value             *uint256.Int
	TokenValue        *uint256.Int
	TokenId           *uint256.Int
	Gas               uint64
	GasPrice          *uint256.Int
	GasUsed           uint64
	CumulativeGasUsed uint64
	Input             string
	Confirmations     uint64
}

// Amount returns the token denominated value if present, otherwise the raw value. nil for plain NFT transfers.
func (e *TransferEvent) Amount() *uint256.Int {
	if e.TokenValue != nil {
		return e.TokenValue
	}
	return e.Value
}

func (item *transferItem) toEvent() (*TransferEvent, error) {
	var err error
	event := &TransferEvent{
		Hash:      strings.ToLower(string(item.Hash)),
		BlockHash: strings.ToLower(string(item.BlockHash)),
		From:      strings.ToLower(string(item.From)),
		To:        strings.ToLower(string(item.To)),
		Input:     string(item.Input),
	}

	if event.Hash == "" {
		return nil, fmt.Errorf("missing transaction hash")
	}
	if event.BlockNumber, err = parseUint(item.BlockNumber, true); err != nil {
		return nil, fmt.Errorf("invalid blockNumber: %w", err)
	}

	timestamp, err := parseUint(item.TimeStamp, true)
	if err != nil {
		return nil, fmt.Errorf("invalid timeStamp: %w", err)
	}
	event.Timestamp = time.Unix(int64(timestamp), 0).UTC()

	if event.Nonce, err = parseUint(item.Nonce, false); err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}
	if event.TransactionIndex, err = parseUint(item.TransactionIndex, false); err != nil {
		return nil, fmt.Errorf("invalid transactionIndex: %w", err)
	}
	if item.LogIndex != "" {
		logIndex, err := parseUint(item.LogIndex, true)
		if err != nil {
			return nil, fmt.Errorf("invalid logIndex: %w", err)
		}
		event.LogIndex = &logIndex
	}
	if event.Value, err = parseUint256(item.Value); err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}
	if event.TokenValue, err = parseUint256(item.TokenValue); err != nil {
		return nil, fmt.Errorf("invalid tokenValue: %w", err)
	}
	if event.TokenId, err = parseUint256(item.TokenID); err != nil {
		return nil, fmt.Errorf("invalid tokenID: %w", err)
	}
	if event.Gas, err = parseUint(item.Gas, false); err != nil {
		return nil, fmt.Errorf("invalid gas: %w", err)
	}
	if event.GasPrice, err = parseUint256(item.GasPrice); err != nil {
		return nil, fmt.Errorf("invalid gasPrice: %w", err)
	}
	if event.GasUsed, err = parseUint(item.GasUsed, false); err != nil {
		return nil, fmt.Errorf("invalid gasUsed: %w", err)
	}
	if event.CumulativeGasUsed, err = parseUint(item.CumulativeGasUsed, false); err != nil {
		return nil, fmt.Errorf("invalid cumulativeGasUsed: %w", err)
	}
	if event.Confirmations, err = parseUint(item.Confirmations, false); err != nil {
		return nil, fmt.Errorf("invalid confirmations: %w", err)
	}

	return event, nil
}

func parseUint(value apiString, required bool) (uint64, error) {
	if value == "" {
		if required {
			return 0, fmt.Errorf("missing value")
		}
		return 0, nil
	}
	return strconv.ParseUint(string(value), 10, 64)
}

func parseUint256(value apiString) (*uint256.Int, error) {
	if value == "" {
		return nil, nil
	}
	return uint256.FromDecimal(string(value))
}

type tokenInfoItem struct {
	ContractAddress apiString `json:"contractAddress"`
	TokenName       apiString `json:"tokenName"`
	Symbol          apiString `json:"symbol"`
	Divisor         apiString `json:"divisor"`
	TokenType       apiString `json:"tokenType"`
	TotalSupply     apiString `json:"totalSupply"`
	BlueCheckmark   apiString `json:"blueCheckmark"`
	Description     apiString `json:"description"`
	PriceUSD        apiString `json:"priceUSD"`
}

// TokenInfo is the validated token metadata of a contract.
type TokenInfo struct {
	ContractAddress string
	Name            string
	Symbol          string
	Divisor         uint64
	TokenType       string
	TotalSupply     *uint256.Int
	BlueCheckmark   bool
	Description     string
	PriceUSD        *float64
}

// ErcStandard derives the numeric standard from the token type ("ERC20" -> 20). ok is false if the type is empty or unknown.
func (info *TokenInfo) ErcStandard() (uint16, bool) {
	standard := strings.TrimSpace(strings.ToLower(info.TokenType))
	standard = strings.ReplaceAll(standard, "erc", "")
	standard = strings.TrimPrefix(standard, "-")
	if standard == "" {
		return 0, false
	}

	value, err := strconv.ParseUint(standard, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(value), true
}

func (item *tokenInfoItem) toTokenInfo() (*TokenInfo, error) {
	info := &TokenInfo{
		ContractAddress: strings.ToLower(string(item.ContractAddress)),
		Name:            string(item.TokenName),
		Symbol:          string(item.Symbol),
		TokenType:       string(item.TokenType),
		Description:     string(item.Description),
	}

	var err error
	if info.Divisor, err = parseUint(item.Divisor, false); err != nil {
		return nil, fmt.Errorf("invalid divisor: %w", err)
	}
	if info.TotalSupply, err = parseUint256(item.TotalSupply); err != nil {
		return nil, fmt.Errorf("invalid totalSupply: %w", err)
	}
	if item.BlueCheckmark != "" {
		info.BlueCheckmark, _ = strconv.ParseBool(string(item.BlueCheckmark))
	}
	if item.PriceUSD != "" {
		price, err := strconv.ParseFloat(string(item.PriceUSD), 64)
		if err == nil {
			info.PriceUSD = &price
		}
	}

	return info, nil
}
