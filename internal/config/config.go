package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverScylla = "scylla"
	DriverMemory = "memory"
)

type Config struct {
	Port          string
	Env           string
	StorageDriver string
	MemorySeed    string
	DotEnvLoaded  bool

	Scylla  ScyllaConfig
	Redis   RedisConfig
	Stripe  StripeConfig
	Orders  OrdersConfig
	SMTP    SMTPConfig
	MinIO   MinIOConfig
	Elastic ElasticConfig
	Invoice InvoiceConfig

	JWTSecret   string
	CORSOrigins []string
}

type ScyllaConfig struct {
	Hosts       []string
	SSLEnabled  bool
	CACertPath  string
	AutoMigrate bool

	OrdersKeyspace   string
	OrdersRole       string
	OrdersPassword   string
	UsersKeyspace    string
	UsersRole        string
	UsersPassword    string
	ProductsKeyspace string
	ProductsRole     string
	ProductsPassword string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

type OrdersConfig struct {
	CODDispatchSLA    time.Duration
	PaymentPendingTTL time.Duration
	SweepInterval     time.Duration
	CartCacheTTL      time.Duration
	OrderRateLimit    int
	CartRateLimit     int
	OutboundWorkers   int
	OutboundQueue     int
	OutboundTimeout   time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

type ElasticConfig struct {
	URL         string
	Username    string
	Password    string
	OrdersIndex string
}

type InvoiceConfig struct {
	FrontendURL string
	IBAN        string
	BIC         string
	CompanyName string
	Group       string
	Consumer    string
}

// Load lit le fichier .env s'il existe puis les variables d'environnement.
func Load() (*Config, error) {
	cfg := &Config{DotEnvLoaded: godotenv.Load(".env") == nil}

	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("APP_ENV", "production")
	cfg.StorageDriver = getEnv("STORAGE_DRIVER", DriverScylla)
	cfg.MemorySeed = os.Getenv("MEMORY_SEED_FILE")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "http://localhost:3000"))

	cfg.Scylla = ScyllaConfig{
		Hosts:            splitList(os.Getenv("SCYLLA_HOSTS")),
		SSLEnabled:       getBool("SCYLLA_SSL_ENABLED", false),
		CACertPath:       os.Getenv("SCYLLA_SSL_CA_PATH"),
		AutoMigrate:      getBool("SCYLLA_AUTO_MIGRATE", false),
		OrdersKeyspace:   os.Getenv("SCYLLA_KS_ORDERS_KEYSPACE"),
		OrdersRole:       os.Getenv("SCYLLA_KS_ORDERS_ROLE"),
		OrdersPassword:   os.Getenv("SCYLLA_KS_ORDERS_PASSWORD"),
		UsersKeyspace:    os.Getenv("SCYLLA_KS_USERS_KEYSPACE"),
		UsersRole:        os.Getenv("SCYLLA_KS_USERS_ROLE"),
		UsersPassword:    os.Getenv("SCYLLA_KS_USERS_PASSWORD"),
		ProductsKeyspace: os.Getenv("SCYLLA_KS_PRODUCTS_KEYSPACE"),
		ProductsRole:     os.Getenv("SCYLLA_KS_PRODUCTS_ROLE"),
		ProductsPassword: os.Getenv("SCYLLA_KS_PRODUCTS_PASSWORD"),
	}

	cfg.Redis = RedisConfig{
		Addr:     os.Getenv("REDIS_HOST"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getInt("REDIS_DB", 0),
		Stream:   getEnv("ORDER_EVENTS_STREAM", "orders.events"),
	}

	cfg.Stripe = StripeConfig{
		SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		Currency:      strings.ToLower(getEnv("CURRENCY", "eur")),
	}

	cfg.Orders = OrdersConfig{
		CODDispatchSLA:    time.Duration(getInt("COD_DISPATCH_SLA_DAYS", 5)) * 24 * time.Hour,
		PaymentPendingTTL: getDuration("PAYMENT_PENDING_TTL", 30*time.Minute),
		SweepInterval:     getDuration("SWEEP_INTERVAL", time.Minute),
		CartCacheTTL:      getDuration("CART_CACHE_TTL", 5*time.Minute),
		OrderRateLimit:    getInt("ORDER_RATE_LIMIT", 10),
		CartRateLimit:     getInt("CART_RATE_LIMIT", 20),
		OutboundWorkers:   getInt("OUTBOUND_WORKERS", 4),
		OutboundQueue:     getInt("OUTBOUND_QUEUE", 256),
		OutboundTimeout:   getDuration("OUTBOUND_TIMEOUT", 15*time.Second),
	}

	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     getInt("SMTP_PORT", 587),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     getEnv("SMTP_FROM", "noreply@eldocam.com"),
	}

	cfg.MinIO = MinIOConfig{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    getEnv("MINIO_BUCKET", "cedra-invoices"),
		UseSSL:    getBool("MINIO_USE_SSL", false),
		URLExpiry: getDuration("INVOICE_URL_EXPIRY", 7*24*time.Hour),
	}

	cfg.Elastic = ElasticConfig{
		URL:         os.Getenv("ELASTIC_URL"),
		Username:    os.Getenv("ELASTIC_USER"),
		Password:    os.Getenv("ELASTIC_PASSWORD"),
		OrdersIndex: getEnv("ELASTIC_ORDERS_INDEX", "orders"),
	}

	cfg.Invoice = InvoiceConfig{
		FrontendURL: getEnv("FRONTEND_INVOICE_URL", "http://localhost:3000/invoice"),
		IBAN:        getEnv("COMPANY_IBAN", "BE12345678901234"),
		BIC:         getEnv("COMPANY_BIC", "KREDBEBB"),
		CompanyName: getEnv("COMPANY_NAME", "Cedra SRL"),
		Group:       getEnv("INVOICE_CONSUMER_GROUP", "invoice-worker"),
		Consumer:    getEnv("INVOICE_CONSUMER_NAME", hostname()),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET manquant"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY manquant"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET manquant"))
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverScylla:
		if len(c.Scylla.Hosts) == 0 || c.Scylla.OrdersKeyspace == "" || c.Scylla.UsersKeyspace == "" {
			errs = append(errs, errors.New("SCYLLA_HOSTS, SCYLLA_KS_ORDERS_KEYSPACE et SCYLLA_KS_USERS_KEYSPACE sont requis"))
		}
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER invalide: "+c.StorageDriver))
	}
	if c.Orders.PaymentPendingTTL <= 0 || c.Orders.SweepInterval <= 0 {
		errs = append(errs, errors.New("PAYMENT_PENDING_TTL et SWEEP_INTERVAL doivent être positifs"))
	}
	return errors.Join(errs...)
}

func (c *Config) Development() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "invoice-worker"
}
