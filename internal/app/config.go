package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (STORE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	VNPay        VNPayConfig `env:"VNPAY" flag:"vnpay"`
	MoMo         MoMoConfig  `env:"MOMO" flag:"momo"`
	SMTP         SMTPConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// VNPayConfig holds the merchant-side VNPay settings.
type VNPayConfig struct {
	BaseURL    string `default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html" usage:"VNPay payment page URL"`
	TmnCode    string `usage:"VNPay terminal code"`
	HashSecret string `usage:"VNPay HMAC secret"`
	ReturnURL  string `usage:"URL VNPay redirects the shopper back to"`
	Version    string `default:"2.1.0" usage:"VNPay API version"`
	Command    string `default:"pay" usage:"VNPay command"`
	CurrCode   string `default:"VND" usage:"Currency code"`
	Locale     string `default:"vn" usage:"Payment page locale"`
	TimeZone   string `default:"Asia/Ho_Chi_Minh" usage:"Time zone for VNPay timestamps"`
}

// MoMoConfig holds the merchant-side MoMo settings.
type MoMoConfig struct {
	Endpoint    string `default:"https://test-payment.momo.vn/gw_payment/transactionProcessor" usage:"MoMo create-payment endpoint"`
	PartnerCode string `usage:"MoMo partner code"`
	AccessKey   string `usage:"MoMo access key"`
	SecretKey   string `usage:"MoMo HMAC secret"`
	ReturnURL   string `usage:"URL MoMo redirects the shopper back to"`
	NotifyURL   string `usage:"URL MoMo posts IPN notifications to"`
}

// SMTPConfig holds the order confirmation mail settings. An empty Host
// disables outgoing mail.
type SMTPConfig struct {
	Host        string `usage:"SMTP server host (empty disables mail)"`
	Port        int    `default:"587" usage:"SMTP server port"`
	Username    string `usage:"SMTP username"`
	Password    string `usage:"SMTP password"`
	FromAddress string `usage:"Sender address for order confirmations" flag:"smtp-from"`
	FromName    string `default:"Storefront" usage:"Sender display name" flag:"smtp-from-name"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
