// Package config loads swapd's daemon configuration, mirroring lnd's own
// loadConfig: a flat struct parsed by go-flags from the command line and an
// optional config file, with defaults filled in before validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "swapd.conf"
	defaultDataDirname     = "data"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "swapd.log"

	defaultPollInterval = 10 * time.Second

	defaultStatusRPCListen = "localhost:10090"

	defaultMinStake      = 100
	defaultMaxStake      = 1_000_000
	defaultMinReputation = 200
)

var (
	defaultHomeDir   = appDataDir("swapd", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir   = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir    = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// ChainConfig bundles the connection details for one side of a swap: the
// chain the coordinator reads state from and submits signed transactions
// to, and the signer credential handle used to produce them.
type ChainConfig struct {
	ChainID     uint64 `long:"chainid" description:"numeric chain identifier, used in OrderHash derivation"`
	RPCHost     string `long:"rpchost" description:"host:port of the chain's RPC endpoint"`
	ContractAddr string `long:"contractaddr" description:"address of the deployed escrow contract/module on this chain"`
	SignerKey   string `long:"signerkey" description:"handle identifying the signing key/oracle for this chain (never the raw key material)"`
}

// RetryConfig bounds the coordinator's per-stage retry behavior (§4.8e).
type RetryConfig struct {
	BaseDelay time.Duration `long:"basedelay" description:"initial retry delay before exponential backoff"`
	MaxDelay  time.Duration `long:"maxdelay" description:"retry delay ceiling"`
}

// ResolverConfig bounds the resolver network's stake acceptance and
// reputation-based authorization gate (§4.5).
type ResolverConfig struct {
	MinStake      int64 `long:"minstake" description:"minimum stake a resolver may register with"`
	MaxStake      int64 `long:"maxstake" description:"maximum stake a resolver may register with"`
	MinReputation int   `long:"minreputation" description:"reputation a resolver must hold to stay authorized"`
}

// Config is swapd's complete daemon configuration.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"path to configuration file"`
	DataDir    string `short:"d" long:"datadir" description:"directory to store the swap database in"`
	LogDir     string `long:"logdir" description:"directory to store log files in"`
	NoFileLogging bool `long:"nofilelogging" description:"disable logging to a file; log to stdout only"`
	DebugLevel string `long:"debuglevel" description:"logging level: trace, debug, info, warn, error, critical"`

	Workers int `long:"workers" description:"number of coordinator worker goroutines; 0 selects runtime.NumCPU()"`

	PollInterval time.Duration `long:"pollinterval" description:"interval between chain-state reconciliation polls"`

	StatusRPCListen string `long:"statusrpclisten" description:"host:port the status/admin gRPC surface listens on"`

	Source ChainConfig `group:"Source" namespace:"source"`
	Dest   ChainConfig `group:"Destination" namespace:"dest"`

	Retry    RetryConfig    `group:"Retry" namespace:"retry"`
	Resolver ResolverConfig `group:"Resolver" namespace:"resolver"`
}

// Default returns a Config populated with every field's default value,
// before command-line/config-file parsing overrides them.
func Default() *Config {
	return &Config{
		ConfigFile:      defaultConfigFile,
		DataDir:         defaultDataDir,
		LogDir:          defaultLogDir,
		DebugLevel:      "info",
		PollInterval:    defaultPollInterval,
		StatusRPCListen: defaultStatusRPCListen,
		Retry: RetryConfig{
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  2 * time.Minute,
		},
		Resolver: ResolverConfig{
			MinStake:      defaultMinStake,
			MaxStake:      defaultMaxStake,
			MinReputation: defaultMinReputation,
		},
	}
}

// Load parses the configuration file (if present) and then the command
// line, command-line flags taking precedence, mirroring lnd's two-pass
// loadConfig.
func Load() (*Config, error) {
	preCfg := Default()
	if _, err := flags.NewParser(preCfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.ConfigFile = preCfg.ConfigFile
	if fileExists(cfg.ConfigFile) {
		parser := flags.NewParser(cfg, flags.Default)
		if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("config: unable to parse config file: %w", err)
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Source.ChainID == c.Dest.ChainID {
		return fmt.Errorf("config: source and destination chainid must differ")
	}
	if c.Source.RPCHost == "" || c.Dest.RPCHost == "" {
		return fmt.Errorf("config: both source.rpchost and dest.rpchost are required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: pollinterval must be positive")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// appDataDir mirrors btcutil.AppDataDir: the per-OS default application
// data directory for a given app name.
func appDataDir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := strings.ToUpper(appName[:1]) + appName[1:]
	appNameLower := strings.ToLower(appName)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if roaming {
			appData = os.Getenv("APPDATA")
		}
		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appNameUpper)
	default:
		return filepath.Join(homeDir, "."+appNameLower)
	}
	return filepath.Join(homeDir, "."+appNameLower)
}
