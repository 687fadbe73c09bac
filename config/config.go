// Package config loads slab's configuration from a YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/tocwex/slab-sub000/chain/evm"
	"github.com/tocwex/slab-sub000/chain/evm/provider"
	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
)

const redacted = "<redacted>"

// RPCConfig is one RPC endpoint of the chain.
type RPCConfig struct {
	Name               string `mapstructure:"name" yaml:"name"`
	HTTPURL            string `mapstructure:"http_url" yaml:"http_url"`
	WSURL              string `mapstructure:"ws_url" yaml:"ws_url,omitempty"`
	PreferredURLScheme string `mapstructure:"preferred_url_scheme" yaml:"preferred_url_scheme,omitempty"` // "http" or "ws"
}

// ChainConfig selects the chain and how to reach it.
type ChainConfig struct {
	ChainID uint64      `mapstructure:"chain_id" yaml:"chain_id"`
	RPCURL  string      `mapstructure:"rpc_url" yaml:"rpc_url,omitempty"` // A single RPC, tried before RPCs
	RPCs    []RPCConfig `mapstructure:"rpcs" yaml:"rpcs,omitempty"`
}

// SafeConfig is the configuration of the Safe transaction service client.
type SafeConfig struct {
	ServiceURL string        `mapstructure:"service_url" yaml:"service_url,omitempty"` // Defaults to the safe.global service of the chain
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty"` // Secret: sent as a bearer token
	Debug      bool          `mapstructure:"debug" yaml:"debug,omitempty"`     // Logs raw requests and responses
}

// WalletConfig selects the key slab signs with. Without a key slab runs read-only.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key" yaml:"private_key,omitempty"` // Secret: hex private key
	Keystore   string `mapstructure:"keystore" yaml:"keystore,omitempty"`       // Path to an encrypted JSON keystore
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase,omitempty"`   // Secret: keystore passphrase
	GasLimit   uint64 `mapstructure:"gas_limit" yaml:"gas_limit,omitempty"`
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Attempts uint          `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
}

// TxConfig configures how long slab waits for transactions.
type TxConfig struct {
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	Tick           time.Duration `mapstructure:"tick" yaml:"tick"`
}

// DatastoreConfig locates the local files.
type DatastoreConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`       // Known tokens and created Safes
	History string `mapstructure:"history" yaml:"history"` // Reports of every write
}

// LogConfig configures the logger.
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// Config wraps the entire configuration of slab.
type Config struct {
	Chain     ChainConfig         `mapstructure:"chain" yaml:"chain"`
	Safe      SafeConfig          `mapstructure:"safe" yaml:"safe"`
	Wallet    WalletConfig        `mapstructure:"wallet" yaml:"wallet"`
	Contracts contracts.Overrides `mapstructure:"contracts" yaml:"contracts"`
	Cache     CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Tx        TxConfig            `mapstructure:"tx" yaml:"tx"`
	Datastore DatastoreConfig     `mapstructure:"datastore" yaml:"datastore"`
	Log       LogConfig           `mapstructure:"log" yaml:"log"`
}

var defaults = map[string]any{
	"chain.chain_id":     contracts.ChainIDMainnet,
	"safe.timeout":       30 * time.Second,
	"cache.ttl":          querycache.DefaultTTL,
	"cache.attempts":     querycache.DefaultAttempts,
	"cache.delay":        querycache.DefaultDelay,
	"tx.confirm_timeout": provider.DefaultConfirmTimeout,
	"tx.tick":            provider.DefaultTickInterval,
	"datastore.path":     ".slab/datastore.json",
	"datastore.history":  ".slab/history.jsonl",
	"log.level":          "info",
}

var (
	// envBindings maps a config key to the environment variables that can set it. The first name
	// is preferred; later names are aliases kept for existing setups. The first one set wins.
	envBindings = map[string][]string{
		"chain.chain_id":               {"SLAB_CHAIN_ID", "CHAIN_ID"},
		"chain.rpc_url":                {"SLAB_RPC_URL", "ETH_RPC_URL"},
		"safe.service_url":             {"SLAB_SAFE_SERVICE_URL", "SAFE_TX_SERVICE_URL"},
		"safe.timeout":                 {"SLAB_SAFE_TIMEOUT"},
		"safe.api_key":                 {"SLAB_SAFE_API_KEY", "SAFE_API_KEY"},
		"wallet.private_key":           {"SLAB_PRIVATE_KEY", "PRIVATE_KEY"},
		"wallet.keystore":              {"SLAB_KEYSTORE", "ETH_KEYSTORE"},
		"wallet.passphrase":            {"SLAB_KEYSTORE_PASSPHRASE", "ETH_PASSWORD"},
		"wallet.gas_limit":             {"SLAB_GAS_LIMIT"},
		"contracts.azimuth":            {"SLAB_CONTRACTS_AZIMUTH"},
		"contracts.ecliptic":           {"SLAB_CONTRACTS_ECLIPTIC"},
		"contracts.erc6551_registry":   {"SLAB_CONTRACTS_ERC6551_REGISTRY"},
		"contracts.tokenbound_account": {"SLAB_CONTRACTS_TOKENBOUND_ACCOUNT"},
		"contracts.syndicate_deployer": {"SLAB_CONTRACTS_SYNDICATE_DEPLOYER"},
		"contracts.safe_singleton":     {"SLAB_CONTRACTS_SAFE_SINGLETON"},
		"contracts.safe_proxy_factory": {"SLAB_CONTRACTS_SAFE_PROXY_FACTORY"},
		"contracts.ens_registry":       {"SLAB_CONTRACTS_ENS_REGISTRY"},
		"cache.ttl":                    {"SLAB_CACHE_TTL"},
		"cache.attempts":               {"SLAB_CACHE_ATTEMPTS"},
		"tx.confirm_timeout":           {"SLAB_TX_CONFIRM_TIMEOUT"},
		"datastore.path":               {"SLAB_DATASTORE"},
		"datastore.history":            {"SLAB_HISTORY"},
		"log.level":                    {"SLAB_LOG_LEVEL", "LOG_LEVEL"},
	}
)

// Load loads the config from filePath, falling back to defaults and env vars if the file does
// not exist. Env vars that are set override the file.
func Load(filePath string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		if _, err = os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err = v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", filePath, err)
			}
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from defaults and environment variables only.
func LoadEnv() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFile loads the config from filePath only, without defaults or env vars. The file must exist.
func LoadFile(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filePath, err)
	}

	return unmarshal(v)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)
		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}

// Validate reports configuration errors that would only surface once a client is built.
func (c *Config) Validate() error {
	var errs []error
	if c.Chain.ChainID == 0 {
		errs = append(errs, errors.New("chain.chain_id is required"))
	}
	if c.Chain.RPCURL == "" && len(c.Chain.RPCs) == 0 {
		errs = append(errs, errors.New("chain.rpc_url or chain.rpcs is required"))
	}
	if c.Wallet.PrivateKey != "" && c.Wallet.Keystore != "" {
		errs = append(errs, errors.New("wallet.private_key and wallet.keystore are mutually exclusive"))
	}
	if c.Cache.Attempts == 0 {
		errs = append(errs, errors.New("cache.attempts must be at least 1"))
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Endpoints returns the RPCs to dial, RPCURL first.
func (c ChainConfig) Endpoints() ([]evm.RPC, error) {
	out := make([]evm.RPC, 0, len(c.RPCs)+1)
	if c.RPCURL != "" {
		rpc := evm.RPC{Name: "default", HTTPURL: c.RPCURL}
		if strings.HasPrefix(c.RPCURL, "ws") {
			rpc = evm.RPC{Name: "default", WSURL: c.RPCURL, PreferredURLScheme: evm.URLSchemePreferenceWS}
		}
		out = append(out, rpc)
	}
	for i, r := range c.RPCs {
		pref, err := evm.URLSchemePreferenceFromString(r.PreferredURLScheme)
		if err != nil {
			return nil, fmt.Errorf("chain.rpcs[%d]: %w", i, err)
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rpc-%d", i)
		}
		out = append(out, evm.RPC{Name: name, HTTPURL: r.HTTPURL, WSURL: r.WSURL, PreferredURLScheme: pref})
	}

	return out, nil
}

// Deployment returns the contract addresses of the configured chain with overrides applied.
func (c *Config) Deployment() (contracts.Deployment, error) {
	d, err := contracts.DeploymentFor(c.Chain.ChainID)
	if err != nil {
		return contracts.Deployment{}, err
	}

	return c.Contracts.Apply(d)
}

// SafeServiceURL returns the configured transaction service or the default one of the chain.
func (c *Config) SafeServiceURL() (string, error) {
	if c.Safe.ServiceURL != "" {
		return c.Safe.ServiceURL, nil
	}

	return safe.ServiceURL(c.Chain.ChainID)
}

// ClientOptions returns the options of the transaction service client.
func (c SafeConfig) ClientOptions() []safe.ClientOption {
	opts := []safe.ClientOption{safe.WithTimeout(c.Timeout), safe.WithDebug(c.Debug)}
	if c.APIKey != "" {
		opts = append(opts, safe.WithHeaders(map[string]string{"Authorization": "Bearer " + c.APIKey}))
	}

	return opts
}

// Signer returns the signer generator of the wallet, nil when no key is configured.
func (c WalletConfig) Signer() provider.SignerGenerator {
	var opts []provider.GeneratorOption
	if c.GasLimit > 0 {
		opts = append(opts, provider.WithGasLimit(c.GasLimit))
	}

	switch {
	case c.PrivateKey != "":
		return provider.TransactorFromRaw(c.PrivateKey, opts...)
	case c.Keystore != "":
		return provider.TransactorFromKeystore(c.Keystore, c.Passphrase, opts...)
	default:
		return nil
	}
}

// QueryCache returns the query cache configuration.
func (c CacheConfig) QueryCache() querycache.Config {
	return querycache.Config{TTL: c.TTL, Attempts: c.Attempts, Delay: c.Delay}
}

// ZapLevel parses the configured level.
func (c LogConfig) ZapLevel() (zapcore.Level, error) {
	return logger.ParseLevel(c.Level)
}

// Logger builds the runtime logger.
func (c LogConfig) Logger() (logger.Logger, error) {
	lvl, err := c.ZapLevel()
	if err != nil {
		return nil, err
	}
	lc := logger.Config{Level: lvl, Console: c.Console}

	return lc.New()
}

// Redacted returns a copy of c with secrets replaced, safe to print.
func (c Config) Redacted() Config {
	if c.Wallet.PrivateKey != "" {
		c.Wallet.PrivateKey = redacted
	}
	if c.Wallet.Passphrase != "" {
		c.Wallet.Passphrase = redacted
	}
	if c.Safe.APIKey != "" {
		c.Safe.APIKey = redacted
	}
	if c.Chain.RPCURL != "" {
		c.Chain.RPCURL = redactURL(c.Chain.RPCURL)
	}
	rpcs := make([]RPCConfig, len(c.Chain.RPCs))
	for i, r := range c.Chain.RPCs {
		r.HTTPURL, r.WSURL = redactURL(r.HTTPURL), redactURL(r.WSURL)
		rpcs[i] = r
	}
	c.Chain.RPCs = rpcs

	return c
}

// redactURL drops the path of an RPC URL, where providers put API keys.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	host, path, hasPath := strings.Cut(rest, "/")
	if !hasPath || path == "" {
		return u
	}

	return scheme + "://" + host + "/" + redacted
}

// YAML renders the redacted config.
func (c Config) YAML() (string, error) {
	b, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", err
	}

	return string(b), nil
}
