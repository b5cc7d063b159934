package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/kelseyhightower/envconfig"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	"sigs.k8s.io/yaml"
)

//go:embed default.yaml
var defaultConfig []byte

// EnvPrefix prefixes every environment variable read by the config.
const EnvPrefix = "TEMPJOBS"

// GeneralConfig type keeps general configuration.
type GeneralConfig struct {
	VerboseLevel      string        `json:"verbose_level" envconfig:"VERBOSE_LEVEL"`
	DryRun            bool          `json:"dry_run" envconfig:"DRY_RUN"`
	ReportsDirAbsPath string        `json:"reports_dump_dir" envconfig:"REPORTS_DUMP_DIR"`
	Kubeconfig        string        `json:"kubeconfig" envconfig:"KUBECONFIG"`
	Namespace         string        `json:"namespace" envconfig:"NAMESPACE"`
	DefaultHost       string        `json:"default_host" envconfig:"DEFAULT_HOST"`
	JobPrefix         string        `json:"job_prefix" envconfig:"JOB_PREFIX"`
	DeployTimeout     time.Duration `json:"deploy_timeout" envconfig:"DEPLOY_TIMEOUT"`
	ProbeTimeout      time.Duration `json:"probe_timeout" envconfig:"PROBE_TIMEOUT"`
	PollInterval      time.Duration `json:"poll_interval" envconfig:"POLL_INTERVAL"`
	DockerBuildDir    string        `json:"docker_build_dir" envconfig:"DOCKER_BUILD_DIR"`
	ImageRepository   string        `json:"image_repository" envconfig:"IMAGE_REPOSITORY"`
	ProbeTarget       string        `json:"probe_target" envconfig:"PROBE_TARGET"`
}

// fileConfig mirrors default.yaml. Durations are strings there.
type fileConfig struct {
	VerboseLevel    string `json:"verbose_level"`
	DryRun          bool   `json:"dry_run"`
	ReportsDumpDir  string `json:"reports_dump_dir"`
	Kubeconfig      string `json:"kubeconfig"`
	Namespace       string `json:"namespace"`
	DefaultHost     string `json:"default_host"`
	JobPrefix       string `json:"job_prefix"`
	DeployTimeout   string `json:"deploy_timeout"`
	ProbeTimeout    string `json:"probe_timeout"`
	PollInterval    string `json:"poll_interval"`
	DockerBuildDir  string `json:"docker_build_dir"`
	ImageRepository string `json:"image_repository"`
	ProbeTarget     string `json:"probe_target"`
}

// NewConfig returns instance of GeneralConfig type.
func NewConfig() *GeneralConfig {
	conf, err := Load(defaultConfig)
	if err != nil {
		glog.Errorf("Error to load config: %v", err)

		return nil
	}

	return conf
}

// Load reads the YAML defaults and applies environment overrides on top of them.
func Load(defaults []byte) (*GeneralConfig, error) {
	var conf GeneralConfig

	if err := conf.readFile(defaults); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &conf); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// GetJunitReportPath returns full path to the junit report file.
func (cfg *GeneralConfig) GetJunitReportPath(file string) string {
	reportFileName := strings.TrimSuffix(filepath.Base(file), filepath.Ext(filepath.Base(file)))

	return fmt.Sprintf("%s_junit.xml", filepath.Join(cfg.ReportsDirAbsPath, reportFileName))
}

// GetReportPath returns full path to the reports directory of name.
func (cfg *GeneralConfig) GetReportPath(name string) string {
	return filepath.Join(cfg.ReportsDirAbsPath, name)
}

// Options returns the temporary jobs options configured.
func (cfg *GeneralConfig) Options() []tempjobs.Option {
	options := []tempjobs.Option{
		tempjobs.WithDeployTimeout(cfg.DeployTimeout),
		tempjobs.WithProbeTimeout(cfg.ProbeTimeout),
		tempjobs.WithPollInterval(cfg.PollInterval),
	}

	if cfg.DefaultHost != "" {
		options = append(options, tempjobs.WithDefaultHost(cfg.DefaultHost))
	}

	if cfg.JobPrefix != "" {
		options = append(options, tempjobs.WithJobPrefix(cfg.JobPrefix))
	}

	// Node names are not always resolvable from where the tests run.
	if cfg.ProbeTarget != "" {
		options = append(options, tempjobs.WithProber(tempjobs.RedirectProber{Target: cfg.ProbeTarget}))
	}

	return options
}

func (cfg *GeneralConfig) readFile(content []byte) error {
	var file fileConfig

	if err := yaml.Unmarshal(content, &file); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	durations := []struct {
		raw    string
		target *time.Duration
	}{
		{file.DeployTimeout, &cfg.DeployTimeout},
		{file.ProbeTimeout, &cfg.ProbeTimeout},
		{file.PollInterval, &cfg.PollInterval},
	}

	for _, duration := range durations {
		if duration.raw == "" {
			continue
		}

		parsed, err := time.ParseDuration(duration.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", duration.raw, err)
		}

		*duration.target = parsed
	}

	cfg.VerboseLevel = file.VerboseLevel
	cfg.DryRun = file.DryRun
	cfg.ReportsDirAbsPath = file.ReportsDumpDir
	cfg.Kubeconfig = file.Kubeconfig
	cfg.Namespace = file.Namespace
	cfg.DefaultHost = file.DefaultHost
	cfg.JobPrefix = file.JobPrefix
	cfg.DockerBuildDir = file.DockerBuildDir
	cfg.ImageRepository = file.ImageRepository
	cfg.ProbeTarget = file.ProbeTarget

	if cfg.Kubeconfig == "" {
		cfg.Kubeconfig = os.Getenv("KUBECONFIG")
	}

	return nil
}

func (cfg *GeneralConfig) validate() error {
	if cfg.DeployTimeout <= 0 || cfg.ProbeTimeout <= 0 || cfg.PollInterval <= 0 {
		return fmt.Errorf("timeouts and poll interval must be positive")
	}

	if cfg.Namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}

	return nil
}
