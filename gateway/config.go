package gateway

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alovak/terminal-playground/internal/validation"
	"gopkg.in/yaml.v3"
)

// Config is a configuration for the gateway application
type Config struct {
	HTTPAddr   string `yaml:"http_addr"`
	MerchantID string `yaml:"merchant_id"`
	TerminalID string `yaml:"terminal_id"`
	// ApprovalPolicy is "random" (approve with ApprovalRate) or "approve" (always approve).
	ApprovalPolicy string  `yaml:"approval_policy"`
	ApprovalRate   float64 `yaml:"approval_rate"`
	// ExpiryPolicy is "lenient" or "strict"; strict rejects cards whose expiry month has passed.
	ExpiryPolicy string `yaml:"expiry_policy"`
	// ExpiryTZ is an IANA timezone name used to resolve the current month (e.g., "Australia/Sydney").
	ExpiryTZ   string   `yaml:"expiry_tz"`
	Currencies []string `yaml:"currencies"`
	// HeartbeatInterval between simulated network management messages; 0 disables them.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// AMQPURL enables publishing notifications to RabbitMQ when set.
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:          "localhost:9000",
		MerchantID:        "BR_MERCHANT_001",
		TerminalID:        "BR_TERMINAL_001",
		ApprovalPolicy:    PolicyRandom,
		ApprovalRate:      0.9,
		ExpiryPolicy:      string(validation.ExpiryLenient),
		Currencies:        []string{"USD", "EUR"},
		HeartbeatInterval: 30 * time.Second,
		AMQPExchange:      "terminal_events",
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if
// any) and then the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.MerchantID = getenv("MERCHANT_ID", c.MerchantID)
	c.TerminalID = getenv("TERMINAL_ID", c.TerminalID)
	c.ApprovalPolicy = getenv("APPROVAL_POLICY", c.ApprovalPolicy)
	c.ExpiryPolicy = getenv("EXPIRY_POLICY", c.ExpiryPolicy)
	c.ExpiryTZ = getenv("EXPIRY_TZ", c.ExpiryTZ)
	c.AMQPURL = getenv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getenv("AMQP_EXCHANGE", c.AMQPExchange)

	if v := os.Getenv("APPROVAL_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("APPROVAL_RATE: %w", err)
		}
		c.ApprovalRate = rate
	}
	if v := os.Getenv("HEARTBEAT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HEARTBEAT_INTERVAL: %w", err)
		}
		c.HeartbeatInterval = d
	}
	if v := os.Getenv("CURRENCIES"); v != "" {
		c.Currencies = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := NewDecider(c.ApprovalPolicy, c.ApprovalRate, 0); err != nil {
		return err
	}
	if _, err := c.ValidationOptions(); err != nil {
		return err
	}
	if len(c.Currencies) == 0 {
		return fmt.Errorf("at least one currency is required")
	}
	for i, cur := range c.Currencies {
		cur = strings.ToUpper(strings.TrimSpace(cur))
		if len(cur) != 3 {
			return fmt.Errorf("currency %q is not an ISO 4217 code", cur)
		}
		c.Currencies[i] = cur
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat interval must not be negative")
	}
	return nil
}

// ValidationOptions derives the payment validation options from the config.
func (c *Config) ValidationOptions() (validation.Options, error) {
	policy := validation.ExpiryLenient
	if c.ExpiryPolicy != "" {
		p, err := validation.ParseExpiryPolicy(c.ExpiryPolicy)
		if err != nil {
			return validation.Options{}, err
		}
		policy = p
	}
	opts := validation.Options{Expiry: policy, Location: time.UTC}
	if c.ExpiryTZ != "" {
		loc, err := time.LoadLocation(c.ExpiryTZ)
		if err != nil {
			return validation.Options{}, fmt.Errorf("expiry timezone: %w", err)
		}
		opts.Location = loc
	}
	return opts, nil
}

func (c *Config) supportsCurrency(cur string) bool {
	for _, supported := range c.Currencies {
		if supported == cur {
			return true
		}
	}
	return false
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
