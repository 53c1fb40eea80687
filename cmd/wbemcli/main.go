package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	wbem "github.com/deejross/go-wbem"
	"github.com/deejross/go-wbem/internal/config"
)

var (
	flagAddress  string // full http(s)://host:port/namespace URI
	flagEndpoint string // named endpoint from the config file
	flagConfig   string // explicit config file path
	flagUsername string
	flagPassword string
	flagPass64   string // base64-encoded password, replaces --password
	flagDebug    bool
	flagRecord   bool // record results to the snapshot store
)

var rootCmd = &cobra.Command{
	Use:   "wbemcli",
	Short: "Query WBEM/CIM servers over CIM-XML",
	Long: `wbemcli issues the read-only WBEM operations (GetClass, EnumerateClasses,
EnumerateClassNames, GetInstance, EnumerateInstances, EnumerateInstanceNames)
against a CIM server and prints the results.

Servers are addressed either with --address (a full URI such as
http://host:5988/root/cimv2) or with --endpoint naming an entry from the
config file.`,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAddress, "address", "", "server URI including namespace, e.g. http://host:5988/root/cimv2")
	pf.StringVar(&flagEndpoint, "endpoint", "", "named endpoint from the config file")
	pf.StringVar(&flagConfig, "config", "", "config file path (default: search standard locations)")
	pf.StringVar(&flagUsername, "username", "", "username for Basic authentication")
	pf.StringVar(&flagPassword, "password", "", "password for Basic authentication")
	pf.StringVar(&flagPass64, "pass64", "", "base64-encoded password, replaces --password")
	pf.BoolVar(&flagDebug, "debug", false, "log raw request/response XML")

	for _, opCmd := range operationCommands() {
		opCmd.Flags().BoolVar(&flagRecord, "record", false, "record results to the snapshot store")
		rootCmd.AddCommand(opCmd)
	}
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the selected or discovered config file
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		cfg, _, err := config.LoadFromPath(flagConfig)
		return cfg, err
	}
	cfg, _, err := config.Load()
	return cfg, err
}

// connectionInfo is everything needed to build a client
type connectionInfo struct {
	Host      string
	Port      int
	HTTPS     bool
	Username  string
	Password  string
	Namespace string
	Debug     bool
}

// resolveConnection merges --address/--endpoint with config and credential
// flags. --address wins over --endpoint.
func resolveConnection() (connectionInfo, error) {
	var info connectionInfo

	switch {
	case flagAddress != "":
		parsed, err := parseURI(flagAddress)
		if err != nil {
			return info, err
		}
		info = parsed
	default:
		cfg, err := loadConfig()
		if err != nil {
			return info, err
		}
		ep, err := cfg.Endpoint(flagEndpoint)
		if err != nil {
			return info, fmt.Errorf("%w (or pass --address)", err)
		}
		password, err := ep.ResolvePassword()
		if err != nil {
			return info, err
		}
		info = connectionInfo{
			Host:      ep.Host,
			Port:      ep.Port,
			HTTPS:     ep.HTTPS,
			Username:  ep.Username,
			Password:  password,
			Namespace: ep.Namespace,
			Debug:     ep.Debug,
		}
	}

	if flagUsername != "" {
		info.Username = flagUsername
	}
	if flagPass64 != "" {
		raw, err := base64.StdEncoding.DecodeString(flagPass64)
		if err != nil {
			return info, fmt.Errorf("decode --pass64: %w", err)
		}
		info.Password = string(raw)
	} else if flagPassword != "" {
		info.Password = flagPassword
	}
	if flagDebug {
		info.Debug = true
	}

	return info, nil
}

// parseURI splits http(s)://host:port/namespace into connection details.
// Port defaults to 80 and namespace to root/cimv2 when absent.
func parseURI(uri string) (connectionInfo, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return connectionInfo{}, fmt.Errorf("full http(s) URI is required, got %q", uri)
	}
	scheme = strings.ToLower(scheme)
	if scheme != "http" && scheme != "https" {
		return connectionInfo{}, fmt.Errorf("unsupported scheme %q", scheme)
	}

	hostinfo, namespace, _ := strings.Cut(rest, "/")
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		namespace = "root/cimv2"
	}

	host := hostinfo
	port := 80
	if h, p, ok := strings.Cut(hostinfo, ":"); ok {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return connectionInfo{}, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}
	if host == "" {
		return connectionInfo{}, fmt.Errorf("missing host in %q", uri)
	}

	return connectionInfo{
		Host:      host,
		Port:      port,
		HTTPS:     scheme == "https",
		Namespace: namespace,
	}, nil
}

// newClient builds a wbem client from the resolved connection
func newClient(info connectionInfo) *wbem.Client {
	if info.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	opts := []wbem.Option{
		wbem.WithPort(info.Port),
		wbem.WithNamespace(info.Namespace),
	}
	if info.HTTPS {
		opts = append(opts, wbem.WithTLS())
	}
	if info.Username != "" {
		opts = append(opts, wbem.WithCredentials(info.Username, info.Password))
	}
	if info.Debug {
		opts = append(opts, wbem.WithDebug())
	}
	return wbem.New(info.Host, opts...)
}
