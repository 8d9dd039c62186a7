package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	catstatus "github.com/always-cache/catstatus"

	"gopkg.in/yaml.v3"
)

// Config is read from an optional YAML file.
// Flags set on the command line take precedence over the file.
type Config struct {
	Addr           string        `yaml:"addr"`
	ImageBaseURL   string        `yaml:"imageBaseURL"`
	ResolveTimeout time.Duration `yaml:"resolveTimeout"`
	FetchTimeout   time.Duration `yaml:"fetchTimeout"`
	Store          string        `yaml:"store"`
	LogFile        string        `yaml:"logFile"`
	Trace          bool          `yaml:"-"`
}

func defaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ImageBaseURL:   catstatus.DefaultImageBaseURL,
		ResolveTimeout: catstatus.DefaultResolveTimeout,
		FetchTimeout:   catstatus.DefaultFetchTimeout,
		Store:          "memory",
	}
}

// ParseConfig parses flags, and the config file if one is given, into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var configFilename string
	cfg := defaultConfig()

	fs.StringVar(&configFilename, "config", "", "Path to config file")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Address to listen on")
	fs.StringVar(&cfg.ImageBaseURL, "image-base-url", cfg.ImageBaseURL, "Base URL of the status code image service")
	fs.DurationVar(&cfg.ResolveTimeout, "resolve-timeout", cfg.ResolveTimeout, "Timeout for requests to the URLs being checked")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout for image downloads")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Image store to use (memory or sqlite)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file to use (in addition to stdout)")
	fs.BoolVar(&cfg.Trace, "vv", false, "Verbosity: trace logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if configFilename == "" {
		return cfg, nil
	}

	fileCfg, err := getConfig(configFilename)
	if err != nil {
		return Config{}, err
	}
	fileCfg.Trace = cfg.Trace
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			fileCfg.Addr = cfg.Addr
		case "image-base-url":
			fileCfg.ImageBaseURL = cfg.ImageBaseURL
		case "resolve-timeout":
			fileCfg.ResolveTimeout = cfg.ResolveTimeout
		case "fetch-timeout":
			fileCfg.FetchTimeout = cfg.FetchTimeout
		case "store":
			fileCfg.Store = cfg.Store
		case "log-file":
			fileCfg.LogFile = cfg.LogFile
		}
	})
	return fileCfg, nil
}

// getConfig reads the config file on top of the defaults.
func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return config, nil
}
