package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Env      string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	LogJSON  bool
	Currency string `validate:"len=3"`

	CORSOrigins []string
	// TrustedProxies lists proxy CIDRs or IPs whose X-Forwarded-For is honored.
	// Empty trusts none and the socket peer is the client IP.
	TrustedProxies []string

	StoreDriver string `validate:"oneof=memory postgres mongo"`
	DatabaseURL string `validate:"required_if=StoreDriver postgres"`
	MongoURI    string `validate:"required_if=StoreDriver mongo"`
	MongoDB     string `validate:"required_if=StoreDriver mongo"`
	RedisAddr   string

	JWTSecret     string `validate:"required"`
	AdminEmail    string `validate:"omitempty,email"`
	AdminPassword string `validate:"required_with=AdminEmail"`
	OTPTTL        time.Duration

	PayPalClientID string `validate:"required"`
	PayPalSecret   string `validate:"required"`
	PayPalEnv      string `validate:"oneof=sandbox live"`
	PayPalBaseURL  string
	PayPalTimeout  time.Duration `validate:"gt=0"`

	InvoiceDir        string `validate:"required_without=InvoiceBucket"`
	InvoiceBucket     string
	InvoicePrefix     string
	InvoicePublicURL  string
	InvoiceS3Endpoint string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string `validate:"omitempty,email"`
}

func Default() Config {
	return Config{
		Env:           "dev",
		Port:          4242,
		LogJSON:       true,
		Currency:      "USD",
		StoreDriver:   StoreMemory,
		MongoDB:       "gmart",
		OTPTTL:        5 * time.Minute,
		PayPalEnv:     "sandbox",
		PayPalTimeout: 15 * time.Second,
		InvoiceDir:    "./public/invoices",
		InvoicePrefix: "invoices/",
		SMTPPort:      587,
		MailFrom:      "no-reply@gmart.com",
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

// Validate reports the first misconfigured field.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

func fromEnv(c Config) Config {
	if v := os.Getenv("GMART_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("GMART_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("GMART_LOG_JSON"); v != "" {
		switch v {
		case "1", "true", "TRUE":
			c.LogJSON = true
		case "0", "false", "FALSE":
			c.LogJSON = false
		}
	}
	if v := os.Getenv("GMART_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("GMART_TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("GMART_CURRENCY"); v != "" {
		c.Currency = strings.ToUpper(v)
	}
	if v := os.Getenv("GMART_STORE"); v != "" {
		c.StoreDriver = v
	}
	if v := os.Getenv("GMART_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("GMART_MONGODB_URI"); v != "" {
		c.MongoURI = v
	}
	if v := os.Getenv("GMART_MONGODB_DB"); v != "" {
		c.MongoDB = v
	}
	if v := os.Getenv("GMART_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("GMART_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("GMART_ADMIN_EMAIL"); v != "" {
		c.AdminEmail = v
	}
	if v := os.Getenv("GMART_ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}
	if v := os.Getenv("GMART_OTP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.OTPTTL = d
		}
	}
	if v := os.Getenv("GMART_PAYPAL_CLIENT_ID"); v != "" {
		c.PayPalClientID = v
	}
	if v := os.Getenv("GMART_PAYPAL_SECRET"); v != "" {
		c.PayPalSecret = v
	}
	if v := os.Getenv("GMART_PAYPAL_ENV"); v != "" {
		c.PayPalEnv = v
	}
	if v := os.Getenv("GMART_PAYPAL_BASE_URL"); v != "" {
		c.PayPalBaseURL = v
	}
	if v := os.Getenv("GMART_PAYPAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PayPalTimeout = d
		}
	}
	if v := os.Getenv("GMART_INVOICE_DIR"); v != "" {
		c.InvoiceDir = v
	}
	if v := os.Getenv("GMART_INVOICE_BUCKET"); v != "" {
		c.InvoiceBucket = v
	}
	if v := os.Getenv("GMART_INVOICE_PREFIX"); v != "" {
		c.InvoicePrefix = v
	}
	if v := os.Getenv("GMART_INVOICE_PUBLIC_URL"); v != "" {
		c.InvoicePublicURL = v
	}
	if v := os.Getenv("GMART_INVOICE_S3_ENDPOINT"); v != "" {
		c.InvoiceS3Endpoint = v
	}
	if v := os.Getenv("GMART_SMTP_HOST"); v != "" {
		c.SMTPHost = v
	}
	if v := os.Getenv("GMART_SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.SMTPPort = p
		}
	}
	if v := os.Getenv("GMART_SMTP_USER"); v != "" {
		c.SMTPUser = v
	}
	if v := os.Getenv("GMART_SMTP_PASS"); v != "" {
		c.SMTPPass = v
	}
	if v := os.Getenv("GMART_MAIL_FROM"); v != "" {
		c.MailFrom = v
	}
	return c
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
