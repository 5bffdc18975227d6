package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for Oracle Server configuration
const (
	EnvOraclePort                = "ORACLE_PORT"
	EnvOracleModelPath           = "ORACLE_MODEL_PATH"
	EnvOracleFraudThreshold      = "ORACLE_FRAUD_THRESHOLD"
	EnvOracleConfidenceThreshold = "ORACLE_CONFIDENCE_THRESHOLD"
	EnvOracleStoreBackend        = "ORACLE_STORE_BACKEND"
	EnvOracleBadgerDir           = "ORACLE_BADGER_DIR"
	EnvOracleRedisAddr           = "ORACLE_REDIS_ADDR"
	EnvOracleRedisPassword       = "ORACLE_REDIS_PASSWORD"
	EnvOracleRPCURL              = "ORACLE_RPC_URL"
	EnvOracleContractAddress     = "ORACLE_CONTRACT_ADDRESS"
	EnvOraclePrivateKey          = "ORACLE_PRIVATE_KEY"
	EnvOracleChainID             = "ORACLE_CHAIN_ID"
	EnvOracleRateLimit           = "ORACLE_RATE_LIMIT"
	EnvOracleRateBurst           = "ORACLE_RATE_BURST"
	EnvOracleVerbose             = "ORACLE_VERBOSE"
)

// Default operational settings, matching the service's historical behavior
const (
	DefaultPort                = 8000
	DefaultFraudThreshold      = 0.85
	DefaultConfidenceThreshold = 0.90
	DefaultRateLimit           = 50.0 // requests per second
	DefaultRateBurst           = 100
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// GetSupportedChainIDs returns all supported chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_EthereumAnvil,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// StoreBackend selects the prediction persistence implementation
type StoreBackend string

const (
	StoreBackend_Memory StoreBackend = "memory"
	StoreBackend_Badger StoreBackend = "badger"
	StoreBackend_Redis  StoreBackend = "redis"
)

func (sb StoreBackend) String() string {
	return string(sb)
}

// ChainConfig holds the settings for on-chain prediction submission.
// Submission is optional: when ContractAddress is empty the server runs
// with a stub client and never broadcasts transactions.
type ChainConfig struct {
	RpcUrl          string  `json:"rpc_url"`
	ContractAddress string  `json:"contract_address"`
	PrivateKey      string  `json:"private_key"` // oracle signing key, hex
	ChainID         ChainId `json:"chain_id"`
}

// Enabled reports whether a registry contract is configured
func (cc *ChainConfig) Enabled() bool {
	return cc != nil && cc.ContractAddress != ""
}

func (cc *ChainConfig) Validate() error {
	if !cc.Enabled() {
		return nil
	}
	var allErrors field.ErrorList
	if cc.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required when a contract address is set"))
	}
	if !common.IsHexAddress(cc.ContractAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("contractAddress"), cc.ContractAddress, "not a valid Ethereum address"))
	}
	if cc.PrivateKey == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "privateKey is required when a contract address is set"))
	}
	if _, exists := ChainIdToName[cc.ChainID]; !exists {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chainId"), cc.ChainID, []string{GetSupportedChainIDsString()}))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// OracleServerConfig represents the complete configuration for an oracle server
type OracleServerConfig struct {
	Port int `json:"port"`

	// Model settings
	ModelPath string `json:"model_path"` // empty means built-in default weights

	// Fraud detection thresholds
	FraudThreshold      float64 `json:"fraud_threshold"`      // is_fraud cutoff on the score
	ConfidenceThreshold float64 `json:"confidence_threshold"` // on-chain submission gate

	// Persistence
	StoreBackend  StoreBackend `json:"store_backend"`
	BadgerDir     string       `json:"badger_dir,omitempty"`
	RedisAddr     string       `json:"redis_addr,omitempty"`
	RedisPassword string       `json:"redis_password,omitempty"`

	// Chain configuration
	Chain     *ChainConfig `json:"chain,omitempty"`
	ChainName ChainName    `json:"chain_name,omitempty"`

	// Request rate limiting
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate validates the oracle server configuration and fills in
// derived fields (chain name, default rate limits).
func (c *OracleServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got %d", c.Port)
	}

	if c.FraudThreshold < 0 || c.FraudThreshold > 1 {
		return fmt.Errorf("fraud threshold must be in [0, 1], got %f", c.FraudThreshold)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0, 1], got %f", c.ConfidenceThreshold)
	}

	switch c.StoreBackend {
	case StoreBackend_Memory:
	case StoreBackend_Badger:
		if c.BadgerDir == "" {
			return fmt.Errorf("badger backend requires a data directory")
		}
	case StoreBackend_Redis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis backend requires an address")
		}
	default:
		return fmt.Errorf("unsupported store backend %q. Supported: %s, %s, %s",
			c.StoreBackend, StoreBackend_Memory, StoreBackend_Badger, StoreBackend_Redis)
	}

	if err := c.Chain.Validate(); err != nil {
		return fmt.Errorf("invalid chain configuration: %w", err)
	}
	if c.Chain.Enabled() {
		c.ChainName = ChainIdToName[c.Chain.ChainID]
	}

	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}

	return nil
}
