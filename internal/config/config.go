package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigError reports a missing required setting. It is fatal at startup,
// before any graph is built or executed.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("you must set the %s environment variable", e.Setting)
}

// Step names, also the keys of the toggle map. The toggle environment
// variable for each step is its upper-cased name.
const (
	StepExportBlocksAndTransactions = "export_blocks_and_transactions"
	StepExportReceiptsAndLogs       = "export_receipts_and_logs"
	StepExportContracts             = "export_contracts"
	StepExportTokens                = "export_tokens"
	StepExtractTokenTransfers       = "extract_token_transfers"
	StepExportTraces                = "export_traces"
)

// StepNames lists every known step in canonical order.
var StepNames = []string{
	StepExportBlocksAndTransactions,
	StepExportReceiptsAndLogs,
	StepExportContracts,
	StepExportTokens,
	StepExtractTokenTransfers,
	StepExportTraces,
}

// Config holds every environment-sourced setting of the export pipeline.
type Config struct {
	OutputBucket        string `yaml:"output_bucket"`
	ProviderURI         string `yaml:"web3_provider_uri"`
	ProviderURIArchival string `yaml:"web3_provider_uri_archival"`

	MaxWorkers    int  `yaml:"export_max_workers"`
	BatchSize     int  `yaml:"export_batch_size"`
	GenesisTraces bool `yaml:"export_genesis_traces_option"`
	DaoforkTraces bool `yaml:"export_daofork_traces_option"`

	// Toggles maps step name to its enable flag. Every known step has an
	// entry; missing environment variables default to enabled.
	Toggles map[string]bool `yaml:"toggles"`

	StorageType           string `yaml:"storage_type"`
	StorageRegion         string `yaml:"storage_region"`
	StorageLocalPath      string `yaml:"storage_local_path"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	EthereumETLBin string `yaml:"ethereumetl_bin"`

	ScheduleAt       string        `yaml:"schedule_at"`
	TaskTimeout      time.Duration `yaml:"task_timeout"`
	TaskRetries      int           `yaml:"task_retries"`
	TaskRetryDelay   time.Duration `yaml:"task_retry_delay"`
	SchedulerWorkers int           `yaml:"scheduler_workers"`

	NotificationEmails []string `yaml:"notification_emails"`
	EmailFrom          string   `yaml:"email_from"`
	SendGridAPIKey     string   `yaml:"-"`
	SlackToken         string   `yaml:"-"`
	SlackChannels      []string `yaml:"slack_channels"`
	LarkWebhookURL     string   `yaml:"lark_webhook_url"`
	WebhookURLs        []string `yaml:"webhook_urls"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("WEB3_PROVIDER_URI", "https://mainnet.infura.io/")
	v.SetDefault("EXPORT_MAX_WORKERS", 5)
	v.SetDefault("EXPORT_BATCH_SIZE", 10)
	v.SetDefault("STORAGE_TYPE", "GCS")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_LOCAL_PATH", "./export-data")
	v.SetDefault("ETHEREUMETL_BIN", "ethereumetl")
	v.SetDefault("SCHEDULE_AT", "01:00")
	v.SetDefault("TASK_TIMEOUT", "15h")
	v.SetDefault("TASK_RETRIES", 5)
	v.SetDefault("TASK_RETRY_DELAY", "5m")
	v.SetDefault("SCHEDULER_WORKERS", 2)
}

// parseBoolean interprets a raw toggle value the way the original exporter
// did: empty means the default, otherwise only "true" and "yes" enable.
func parseBoolean(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "true", "yes":
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads the pipeline configuration from the environment, merged over
// any config file previously bound into viper by the CLI. It fails fast
// with a *ConfigError when a required setting is absent.
func Load() (*Config, error) {
	v := viper.GetViper()
	v.AutomaticEnv()
	setDefaults(v)

	bucket := v.GetString("OUTPUT_BUCKET")
	if bucket == "" {
		return nil, &ConfigError{Setting: "OUTPUT_BUCKET"}
	}

	providerURI := v.GetString("WEB3_PROVIDER_URI")
	archivalURI := v.GetString("WEB3_PROVIDER_URI_ARCHIVAL")
	if archivalURI == "" {
		archivalURI = providerURI
	}

	toggles := make(map[string]bool, len(StepNames))
	for _, step := range StepNames {
		toggles[step] = parseBoolean(v.GetString(strings.ToUpper(step)), true)
	}

	cfg := &Config{
		OutputBucket:        bucket,
		ProviderURI:         providerURI,
		ProviderURIArchival: archivalURI,
		MaxWorkers:          v.GetInt("EXPORT_MAX_WORKERS"),
		BatchSize:           v.GetInt("EXPORT_BATCH_SIZE"),
		GenesisTraces:       parseBoolean(v.GetString("EXPORT_GENESIS_TRACES_OPTION"), true),
		DaoforkTraces:       parseBoolean(v.GetString("EXPORT_DAOFORK_TRACES_OPTION"), true),
		Toggles:             toggles,

		StorageType:           v.GetString("STORAGE_TYPE"),
		StorageRegion:         v.GetString("STORAGE_REGION"),
		StorageLocalPath:      v.GetString("STORAGE_LOCAL_PATH"),
		GoogleCredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),

		EthereumETLBin: v.GetString("ETHEREUMETL_BIN"),

		ScheduleAt:       v.GetString("SCHEDULE_AT"),
		TaskTimeout:      v.GetDuration("TASK_TIMEOUT"),
		TaskRetries:      v.GetInt("TASK_RETRIES"),
		TaskRetryDelay:   v.GetDuration("TASK_RETRY_DELAY"),
		SchedulerWorkers: v.GetInt("SCHEDULER_WORKERS"),

		NotificationEmails: splitList(v.GetString("NOTIFICATION_EMAILS")),
		EmailFrom:          v.GetString("EMAIL_FROM"),
		SendGridAPIKey:     v.GetString("SENDGRID_API_KEY"),
		SlackToken:         v.GetString("SLACK_TOKEN"),
		SlackChannels:      splitList(v.GetString("SLACK_CHANNELS")),
		LarkWebhookURL:     v.GetString("LARK_WEBHOOK_URL"),
		WebhookURLs:        splitList(v.GetString("WEBHOOK_URLS")),
	}

	logrus.Debugf("configuration loaded: bucket=%s storage=%s", cfg.OutputBucket, cfg.StorageType)
	return cfg, nil
}
