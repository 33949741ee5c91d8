package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/holdings/internal/source"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

const (
	DefaultDataDir = "."
	DefaultDBPath  = "~/.holdings/holdings.db"
	DefaultAddr    = "127.0.0.1:7777"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI flag values. Empty strings mean the flag
// was not given.
type ResolveOptions struct {
	ConfigPath   string
	CLIDataDir   string
	CLITitles    string
	CLIHardCopy  string
	CLIMicrofilm string
	CLIDBPath    string
	CLIAddr      string
	CLIEarliest  string
	CLILatest    string
	CLIWatch     bool
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DataDir       ResolvedValue `json:"data_dir"`
	TitlesPath    ResolvedValue `json:"titles_path"`
	HardCopyPath  ResolvedValue `json:"hc_path"`
	MicrofilmPath ResolvedValue `json:"mf_path"`
	DBPath        ResolvedValue `json:"db_path"`
	Addr          ResolvedValue `json:"addr"`
	Earliest      ResolvedValue `json:"earliest"`
	Latest        ResolvedValue `json:"latest"`
	Watch         ResolvedValue `json:"watch"`
}

type fileConfig struct {
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
	Addr    string `yaml:"addr"`
	Watch   *bool  `yaml:"watch"`
	Files   struct {
		Titles    string `yaml:"titles"`
		HardCopy  string `yaml:"hc"`
		Microfilm string `yaml:"mf"`
	} `yaml:"files"`
	Range struct {
		Earliest int `yaml:"earliest"`
		Latest   int `yaml:"latest"`
	} `yaml:"range"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".holdings", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		DataDir:    ResolvedValue{Value: DefaultDataDir, Source: SourceDefault, From: "built-in default"},
		DBPath:     ResolvedValue{Value: DefaultDBPath, Source: SourceDefault, From: "built-in default"},
		Addr:       ResolvedValue{Value: DefaultAddr, Source: SourceDefault, From: "built-in default"},
		Watch:      ResolvedValue{Value: "false", Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DataDir, cfg.DataDir, SourceConfig, path)
		apply(&out.TitlesPath, cfg.Files.Titles, SourceConfig, path)
		apply(&out.HardCopyPath, cfg.Files.HardCopy, SourceConfig, path)
		apply(&out.MicrofilmPath, cfg.Files.Microfilm, SourceConfig, path)
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Addr, cfg.Addr, SourceConfig, path)
		if cfg.Range.Earliest != 0 {
			apply(&out.Earliest, strconv.Itoa(cfg.Range.Earliest), SourceConfig, path)
		}
		if cfg.Range.Latest != 0 {
			apply(&out.Latest, strconv.Itoa(cfg.Range.Latest), SourceConfig, path)
		}
		if cfg.Watch != nil {
			apply(&out.Watch, strconv.FormatBool(*cfg.Watch), SourceConfig, path)
		}
	}

	applyEnv(&out.DataDir, "HOLDINGS_DATA")
	applyEnv(&out.DBPath, "HOLDINGS_DB")
	applyEnv(&out.Addr, "HOLDINGS_ADDR")
	applyEnv(&out.Earliest, "HOLDINGS_EARLIEST")
	applyEnv(&out.Latest, "HOLDINGS_LATEST")
	applyEnv(&out.Watch, "HOLDINGS_WATCH")

	apply(&out.DataDir, opts.CLIDataDir, SourceCLI, "--data")
	apply(&out.TitlesPath, opts.CLITitles, SourceCLI, "--titles")
	apply(&out.HardCopyPath, opts.CLIHardCopy, SourceCLI, "--hc")
	apply(&out.MicrofilmPath, opts.CLIMicrofilm, SourceCLI, "--mf")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Addr, opts.CLIAddr, SourceCLI, "--addr")
	apply(&out.Earliest, opts.CLIEarliest, SourceCLI, "--earliest")
	apply(&out.Latest, opts.CLILatest, SourceCLI, "--latest")
	if opts.CLIWatch {
		apply(&out.Watch, "true", SourceCLI, "--watch")
	}

	out.DataDir.Value = expandUserPath(out.DataDir.Value)
	out.DBPath.Value = expandUserPath(out.DBPath.Value)

	// unset dataset paths follow the data directory
	defaultFile(&out.TitlesPath, out.DataDir, source.DefaultTitlesFile)
	defaultFile(&out.HardCopyPath, out.DataDir, source.DefaultHardCopyFile)
	defaultFile(&out.MicrofilmPath, out.DataDir, source.DefaultMicrofilmFile)
	for _, v := range []*ResolvedValue{&out.TitlesPath, &out.HardCopyPath, &out.MicrofilmPath} {
		v.Value = expandUserPath(v.Value)
	}

	return out, nil
}

func defaultFile(dst *ResolvedValue, dir ResolvedValue, name string) {
	if strings.TrimSpace(dst.Value) != "" {
		return
	}
	*dst = ResolvedValue{Value: filepath.Join(dir.Value, name), Source: dir.Source, From: dir.From}
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
