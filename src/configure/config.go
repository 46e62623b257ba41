package configure

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/PipelineNotifier/src/filter"
	"github.com/seventv/PipelineNotifier/src/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNoWebhook   = fmt.Errorf("webhook.url or webhook.ssm_parameter is required")
	ErrNoTransport = fmt.Errorf("one of rmq.server_url, nats.url, lambda or simulate is required")
	ErrNoStages    = fmt.Errorf("pipeline.stages must not be empty")
	ErrNoSources   = fmt.Errorf("filter.sources must not be empty")
	ErrNoStates    = fmt.Errorf("filter.states must not be empty")
)

const (
	SimulateSucceeded   = "succeeded"
	SimulateFailedStage = "failed-"
)

func checkErr(err error) {
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
}

func Defaults() Config {
	cfg := Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Config:          "config.yaml",
		MaxTaskDuration: 30,
		Workers:         runtime.GOMAXPROCS(0),
		Pipeline:        pipeline.Default(),
	}

	cfg.Webhook.Timeout = 10 * time.Second
	cfg.Webhook.UserAgent = "PipelineNotifier/1.0"
	cfg.Filter.Sources = filter.DefaultSources
	cfg.Filter.DetailTypes = filter.DefaultDetailTypes
	cfg.Filter.States = filter.DefaultStates
	cfg.Rmq.EventQueueName = "pipeline-events"
	cfg.Rmq.ResultQueueName = "pipeline-notifications"
	cfg.Nats.Subject = "pipeline.events"
	cfg.Nats.QueueGroup = "pipeline-notifier"

	return cfg
}

func New() *Config {
	cfg, err := Load(os.Args[1:])
	checkErr(err)

	return cfg
}

// Load layers flags, the config file and PN_ environment variables over Defaults.
// A missing config file is not an error.
func Load(args []string) (*Config, error) {
	config := viper.New()
	config.SetConfigType("yaml")

	b, err := json.Marshal(Defaults())
	if err != nil {
		return nil, err
	}

	tmp := viper.New()
	tmp.SetConfigType("json")
	if err := tmp.ReadConfig(bytes.NewBuffer(b)); err != nil {
		return nil, err
	}
	if err := config.MergeConfigMap(tmp.AllSettings()); err != nil {
		return nil, err
	}

	flags := pflag.NewFlagSet("pipeline-notifier", pflag.ContinueOnError)
	flags.String("config", "config.yaml", "Config file location")
	flags.Bool("noheader", false, "Disable the startup header")
	flags.Bool("lambda", false, "Run as an AWS Lambda handler")
	flags.String("simulate", "", "Walk a pipeline run through the notifier and exit (succeeded, failed-<stage>)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if err := config.BindPFlags(flags); err != nil {
		return nil, err
	}

	// merge, not read, so the file only overrides the keys it sets
	config.SetConfigFile(config.GetString("config"))
	if err := config.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", config.GetString("config"), err)
		}
		logrus.Debug("no config file at ", config.GetString("config"))
	}

	config.SetEnvPrefix("PN")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AllowEmptyEnv(true)
	config.AutomaticEnv()

	// empty defaults are omitted above, so these keys are unknown to AutomaticEnv
	for _, key := range []string{
		"webhook.url",
		"webhook.ssm_parameter",
		"aws.access_token",
		"aws.secret_key",
		"aws.region",
		"rmq.server_url",
		"nats.url",
		"nats.result_subject",
		"metrics.bind",
	} {
		if err := config.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := config.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	initLogging(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

type Config struct {
	LogLevel  string `json:"log_level,omitempty" mapstructure:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" mapstructure:"log_format,omitempty"`
	Config    string `json:"config,omitempty" mapstructure:"config,omitempty"`
	NoHeader  bool   `json:"noheader,omitempty" mapstructure:"noheader,omitempty"`
	NoLogs    bool   `json:"nologs,omitempty" mapstructure:"nologs,omitempty"`
	Lambda    bool   `json:"lambda,omitempty" mapstructure:"lambda,omitempty"`
	Simulate  string `json:"simulate,omitempty" mapstructure:"simulate,omitempty"`

	// Aws
	Aws struct {
		AccessToken string `json:"access_token,omitempty" mapstructure:"access_token,omitempty"`
		SecretKey   string `json:"secret_key,omitempty" mapstructure:"secret_key,omitempty"`
		Region      string `json:"region,omitempty" mapstructure:"region,omitempty"`
	} `json:"aws,omitempty" mapstructure:"aws,omitempty"`

	Rmq struct {
		ServerURL        string `json:"server_url,omitempty" mapstructure:"server_url,omitempty"`
		EventQueueName   string `json:"event_queue_name,omitempty" mapstructure:"event_queue_name,omitempty"`
		ResultQueueName  string `json:"result_queue_name,omitempty" mapstructure:"result_queue_name,omitempty"`
		RequeueOnFailure bool   `json:"requeue_on_failure,omitempty" mapstructure:"requeue_on_failure,omitempty"`
	} `json:"rmq,omitempty" mapstructure:"rmq,omitempty"`

	Nats struct {
		URL           string `json:"url,omitempty" mapstructure:"url,omitempty"`
		Subject       string `json:"subject,omitempty" mapstructure:"subject,omitempty"`
		QueueGroup    string `json:"queue_group,omitempty" mapstructure:"queue_group,omitempty"`
		ResultSubject string `json:"result_subject,omitempty" mapstructure:"result_subject,omitempty"`
	} `json:"nats,omitempty" mapstructure:"nats,omitempty"`

	Webhook struct {
		URL          string        `json:"url,omitempty" mapstructure:"url,omitempty"`
		SsmParameter string        `json:"ssm_parameter,omitempty" mapstructure:"ssm_parameter,omitempty"`
		Timeout      time.Duration `json:"timeout,omitempty" mapstructure:"timeout,omitempty"`
		StrictStatus bool          `json:"strict_status,omitempty" mapstructure:"strict_status,omitempty"`
		UserAgent    string        `json:"user_agent,omitempty" mapstructure:"user_agent,omitempty"`
	} `json:"webhook,omitempty" mapstructure:"webhook,omitempty"`

	Filter struct {
		Sources     []string `json:"sources,omitempty" mapstructure:"sources,omitempty"`
		DetailTypes []string `json:"detail_types,omitempty" mapstructure:"detail_types,omitempty"`
		States      []string `json:"states,omitempty" mapstructure:"states,omitempty"`
	} `json:"filter,omitempty" mapstructure:"filter,omitempty"`

	Metrics struct {
		Bind string `json:"bind,omitempty" mapstructure:"bind,omitempty"`
	} `json:"metrics,omitempty" mapstructure:"metrics,omitempty"`

	Pipeline pipeline.Pipeline `json:"pipeline,omitempty" mapstructure:"pipeline,omitempty"`

	Workers         int `json:"workers,omitempty" mapstructure:"workers,omitempty"`
	MaxTaskDuration int `json:"max_task_duration,omitempty" mapstructure:"max_task_duration,omitempty"`
}

// Validate reports every problem at once rather than the first one found.
func (c *Config) Validate() error {
	var err error

	if c.Webhook.URL == "" && c.Webhook.SsmParameter == "" {
		err = multierror.Append(err, ErrNoWebhook)
	}
	if c.Webhook.SsmParameter != "" && c.Aws.Region == "" {
		err = multierror.Append(err, fmt.Errorf("aws.region is required to read webhook.ssm_parameter"))
	}
	if c.Webhook.Timeout <= 0 {
		err = multierror.Append(err, fmt.Errorf("webhook.timeout must be positive, got %s", c.Webhook.Timeout))
	}

	if c.Rmq.ServerURL == "" && c.Nats.URL == "" && !c.Lambda && c.Simulate == "" {
		err = multierror.Append(err, ErrNoTransport)
	}
	if c.Rmq.ServerURL != "" && c.Rmq.EventQueueName == "" {
		err = multierror.Append(err, fmt.Errorf("rmq.event_queue_name is required"))
	}
	if c.Nats.URL != "" && c.Nats.Subject == "" {
		err = multierror.Append(err, fmt.Errorf("nats.subject is required"))
	}

	if len(c.Filter.Sources) == 0 {
		err = multierror.Append(err, ErrNoSources)
	}
	if len(c.Filter.States) == 0 {
		err = multierror.Append(err, ErrNoStates)
	}

	if len(c.Pipeline.Stages) == 0 {
		err = multierror.Append(err, ErrNoStages)
	}
	seen := map[string]bool{}
	for i, s := range c.Pipeline.Stages {
		if s.Name == "" {
			err = multierror.Append(err, fmt.Errorf("pipeline.stages[%d] has no name", i))
		} else if seen[s.Name] {
			err = multierror.Append(err, fmt.Errorf("pipeline.stages[%d] duplicates stage %q", i, s.Name))
		}
		seen[s.Name] = true
	}

	if c.Simulate != "" && c.Simulate != SimulateSucceeded {
		stage := strings.TrimPrefix(c.Simulate, SimulateFailedStage)
		if stage == c.Simulate || !seen[stage] {
			err = multierror.Append(err, fmt.Errorf("simulate must be %q or %q<stage>, got %q", SimulateSucceeded, SimulateFailedStage, c.Simulate))
		}
	}

	if c.Workers <= 0 {
		err = multierror.Append(err, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.MaxTaskDuration <= 0 {
		err = multierror.Append(err, fmt.Errorf("max_task_duration must be positive, got %d", c.MaxTaskDuration))
	}

	return err
}
