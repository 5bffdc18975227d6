package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/adstack-labs/fraud-oracle-go/pkg/config"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// fraudRegistryABI is the subset of the registry contract the oracle calls.
// Scores travel as integer percentages (0-100); the exact 4-decimal score is
// committed in the merkle root, not in these informational fields.
const fraudRegistryABI = `[
	{"type":"function","name":"submitPrediction","stateMutability":"nonpayable","inputs":[
		{"name":"campaignId","type":"uint256"},
		{"name":"publisherId","type":"string"},
		{"name":"fraudScore","type":"uint256"},
		{"name":"confidence","type":"uint256"},
		{"name":"featuresHash","type":"bytes32"},
		{"name":"merkleRoot","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"getPrediction","stateMutability":"view","inputs":[
		{"name":"campaignId","type":"uint256"},
		{"name":"publisherId","type":"string"}],"outputs":[
		{"name":"fraudScore","type":"uint256"},
		{"name":"confidence","type":"uint256"},
		{"name":"merkleRoot","type":"bytes32"},
		{"name":"submittedAt","type":"uint256"}]},
	{"type":"function","name":"getPublisherHistory","stateMutability":"view","inputs":[
		{"name":"publisherId","type":"string"}],"outputs":[
		{"name":"totalFlags","type":"uint256"},
		{"name":"confirmedFraud","type":"uint256"},
		{"name":"lastFlaggedAt","type":"uint256"}]}
]`

const submitGasLimit = 300_000

// EthereumConfig holds connection settings for the on-chain registry
type EthereumConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string // oracle signing key, hex
	ChainID         uint64
}

// EthereumClient submits flagged predictions to the fraud-registry
// contract over an Ethereum JSON-RPC endpoint.
type EthereumClient struct {
	client          *ethclient.Client
	contractAddress common.Address
	contractABI     abi.ABI
	privateKey      *ecdsa.PrivateKey
	fromAddress     common.Address
	chainID         *big.Int
	rpcURL          string
	logger          *zap.Logger
}

// NewEthereumClient dials the RPC endpoint and prepares the signing key.
// The connection is verified with a ChainID call before returning.
func NewEthereumClient(ctx context.Context, cfg *EthereumConfig, logger *zap.Logger) (*EthereumClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ethereum config cannot be nil")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial ethereum rpc at %s", cfg.RPCURL)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to query chain id from %s", cfg.RPCURL)
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("rpc chain id %d does not match configured chain id %d", chainID.Uint64(), cfg.ChainID)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "invalid oracle private key")
	}

	parsedABI, err := abi.JSON(strings.NewReader(fraudRegistryABI))
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to parse fraud registry ABI")
	}

	ec := &EthereumClient{
		client:          client,
		contractAddress: common.HexToAddress(cfg.ContractAddress),
		contractABI:     parsedABI,
		privateKey:      privateKey,
		fromAddress:     crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:         chainID,
		rpcURL:          cfg.RPCURL,
		logger:          logger,
	}

	logger.Sugar().Infow("Ethereum registry client initialized",
		"endpoint", cfg.RPCURL,
		"contract", ec.contractAddress.Hex(),
		"from", ec.fromAddress.Hex(),
		"chain_id", chainID.Uint64(),
	)

	return ec, nil
}

// SubmitPrediction packs and sends a submitPrediction transaction.
// The merkle root travels as bytes32; the hex string published to API
// consumers decodes to the same 32 bytes.
func (ec *EthereumClient) SubmitPrediction(ctx context.Context, record *types.PredictionRecord) (*SubmitResult, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot submit nil prediction")
	}

	featuresHash, err := hexToBytes32(record.FeaturesHash)
	if err != nil {
		return nil, errors.Wrap(err, "invalid features hash")
	}
	merkleRoot, err := hexToBytes32(record.MerkleRoot)
	if err != nil {
		return nil, errors.Wrap(err, "invalid merkle root")
	}

	input, err := ec.contractABI.Pack("submitPrediction",
		big.NewInt(record.CampaignID),
		record.PublisherID,
		big.NewInt(int64(record.FraudScore*100)),
		big.NewInt(int64(record.Confidence*100)),
		featuresHash,
		merkleRoot,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack submitPrediction calldata")
	}

	nonce, err := ec.client.PendingNonceAt(ctx, ec.fromAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch pending nonce")
	}

	gasPrice, err := ec.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch gas price")
	}

	tx := ethereumTypes.NewTransaction(nonce, ec.contractAddress, big.NewInt(0), submitGasLimit, gasPrice, input)

	signedTx, err := ethereumTypes.SignTx(tx, ethereumTypes.LatestSignerForChainID(ec.chainID), ec.privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err := ec.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrapf(err, "failed to send submitPrediction transaction %s", signedTx.Hash().Hex())
	}

	ec.logger.Sugar().Infow("Submitted fraud prediction to registry",
		"tx", signedTx.Hash().Hex(),
		"campaign_id", record.CampaignID,
		"publisher_id", record.PublisherID,
		"merkle_root", record.MerkleRoot,
	)

	return &SubmitResult{
		TxID:   signedTx.Hash().Hex(),
		Status: "pending",
	}, nil
}

// GetPrediction reads a submitted prediction back from the registry
func (ec *EthereumClient) GetPrediction(ctx context.Context, campaignID int64, publisherID string) (*types.PredictionRecord, error) {
	input, err := ec.contractABI.Pack("getPrediction", big.NewInt(campaignID), publisherID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack getPrediction calldata")
	}

	output, err := ec.client.CallContract(ctx, ethereum.CallMsg{
		To:   &ec.contractAddress,
		Data: input,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "getPrediction call failed")
	}

	values, err := ec.contractABI.Unpack("getPrediction", output)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack getPrediction result")
	}

	submittedAt := values[3].(*big.Int)
	if submittedAt.Sign() == 0 {
		return nil, nil // never submitted
	}

	merkleRoot := values[2].([32]byte)

	record := &types.PredictionRecord{
		PredictionResult: types.PredictionResult{
			CampaignID:  campaignID,
			PublisherID: publisherID,
			FraudScore:  float64(values[0].(*big.Int).Int64()) / 100,
			Confidence:  float64(values[1].(*big.Int).Int64()) / 100,
			MerkleRoot:  hex.EncodeToString(merkleRoot[:]),
		},
		Submitted:   true,
		SubmittedAt: submittedAt.Int64(),
	}

	return record, nil
}

// GetPublisherHistory reads the registry's fraud aggregates for a publisher
func (ec *EthereumClient) GetPublisherHistory(ctx context.Context, publisherID string) (*types.PublisherHistory, error) {
	input, err := ec.contractABI.Pack("getPublisherHistory", publisherID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack getPublisherHistory calldata")
	}

	output, err := ec.client.CallContract(ctx, ethereum.CallMsg{
		To:   &ec.contractAddress,
		Data: input,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "getPublisherHistory call failed")
	}

	values, err := ec.contractABI.Unpack("getPublisherHistory", output)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack getPublisherHistory result")
	}

	return &types.PublisherHistory{
		PublisherID:    publisherID,
		TotalFlags:     int(values[0].(*big.Int).Int64()),
		ConfirmedFraud: int(values[1].(*big.Int).Int64()),
		LastFlaggedAt:  values[2].(*big.Int).Int64(),
	}, nil
}

// Status probes the RPC endpoint and reports the target network
func (ec *EthereumClient) Status(ctx context.Context) (*Status, error) {
	status := &Status{
		Endpoint:        ec.rpcURL,
		ContractAddress: ec.contractAddress.Hex(),
		ChainID:         ec.chainID.Uint64(),
		Network:         string(config.ChainIdToName[config.ChainId(ec.chainID.Uint64())]),
	}

	if _, err := ec.client.BlockNumber(ctx); err != nil {
		return status, nil // reachable at startup, currently not
	}

	status.Connected = true
	return status, nil
}

// Close releases the underlying RPC connection
func (ec *EthereumClient) Close() {
	ec.client.Close()
}

// hexToBytes32 decodes a 64-char hex digest into a bytes32 value
func hexToBytes32(s string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

var _ Client = (*EthereumClient)(nil)
