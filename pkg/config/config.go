package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BasePath       string
	Port           int
	PageSize       int
	Logging        Logging
	Postgresql     Postgresql
	RabbitMqURL    RabbitMQ
	Redis          Redis
	OpenStack      OpenStack
	Authentication Authentication
	// CredentialIdentity is the age X25519 identity used to seal and open broker credentials
	CredentialIdentity string
	Provisioning       Provisioning
	Catalog            Catalog
	Cluster            Cluster
	JaegerEndpoint     string
}

func New() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", 8080)
	v.SetDefault("PAGE_SIZE", 20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("PROVISIONING_TIMEOUT", 15*time.Minute)
	v.SetDefault("NODE_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("SWEEP_INTERVAL", time.Minute)
	v.SetDefault("CATALOG_RETRY_ATTEMPTS", 2)
	v.SetDefault("MAX_CLUSTER_SIZE", 10)
	v.SetDefault("PASSWORD_PATTERN", "")
	v.SetDefault("OS_DOMAIN_NAME", "Default")
	v.SetDefault("OS_REGION_NAME", "")
	v.SetDefault("JAEGER_ENDPOINT", "")

	basePath, err := requireEnv(v, "BASE_PATH")
	if err != nil {
		return Config{}, err
	}

	logging, err := newLogging(v)
	if err != nil {
		return Config{}, err
	}

	pg, err := newPostgresql(v)
	if err != nil {
		return Config{}, err
	}

	rb, err := newRabbitMQ(v)
	if err != nil {
		return Config{}, err
	}

	redis, err := newRedis(v)
	if err != nil {
		return Config{}, err
	}

	openStack, err := newOpenStack(v)
	if err != nil {
		return Config{}, err
	}

	auth, err := newAuthentication(v)
	if err != nil {
		return Config{}, err
	}

	identity, err := requireEnv(v, "CREDENTIAL_IDENTITY")
	if err != nil {
		return Config{}, err
	}

	provisioning, err := newProvisioning(v)
	if err != nil {
		return Config{}, err
	}

	cluster, err := newCluster(v)
	if err != nil {
		return Config{}, err
	}

	pageSize := v.GetInt("PAGE_SIZE")
	if pageSize < 1 {
		return Config{}, fmt.Errorf("PAGE_SIZE must be positive, got %d", pageSize)
	}

	retries := v.GetInt("CATALOG_RETRY_ATTEMPTS")
	if retries < 0 {
		return Config{}, fmt.Errorf("CATALOG_RETRY_ATTEMPTS can't be negative, got %d", retries)
	}

	return Config{
		BasePath:           basePath,
		Port:               v.GetInt("PORT"),
		PageSize:           pageSize,
		Logging:            logging,
		Postgresql:         pg,
		RabbitMqURL:        rb,
		Redis:              redis,
		OpenStack:          openStack,
		Authentication:     auth,
		CredentialIdentity: identity,
		Provisioning:       provisioning,
		Catalog:            Catalog{RetryAttempts: uint64(retries)},
		Cluster:            cluster,
		JaegerEndpoint:     v.GetString("JAEGER_ENDPOINT"),
	}, nil
}

type Logging struct {
	Level  slog.Level
	Pretty bool
}

func newLogging(v *viper.Viper) (Logging, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return Logging{}, fmt.Errorf("can't parse LOG_LEVEL: %v", err)
	}

	return Logging{
		Level:  level,
		Pretty: v.GetBool("LOG_PRETTY"),
	}, nil
}

type Postgresql struct {
	Host         string
	Port         int
	Username     string
	Password     string
	DatabaseName string
}

func newPostgresql(v *viper.Viper) (Postgresql, error) {
	host, err := requireEnv(v, "DATABASE_HOST")
	if err != nil {
		return Postgresql{}, err
	}
	port, err := requireEnvAsInt(v, "DATABASE_PORT")
	if err != nil {
		return Postgresql{}, err
	}
	username, err := requireEnv(v, "DATABASE_USERNAME")
	if err != nil {
		return Postgresql{}, err
	}
	password, err := requireEnv(v, "DATABASE_PASSWORD")
	if err != nil {
		return Postgresql{}, err
	}
	name, err := requireEnv(v, "DATABASE_NAME")
	if err != nil {
		return Postgresql{}, err
	}

	return Postgresql{
		Host:         host,
		Port:         port,
		Username:     username,
		Password:     password,
		DatabaseName: name,
	}, nil
}

type RabbitMQ struct {
	Host     string
	Port     int
	Username string
	Password string
}

func newRabbitMQ(v *viper.Viper) (RabbitMQ, error) {
	host, err := requireEnv(v, "RABBITMQ_HOST")
	if err != nil {
		return RabbitMQ{}, err
	}
	port, err := requireEnvAsInt(v, "RABBITMQ_PORT")
	if err != nil {
		return RabbitMQ{}, err
	}
	username, err := requireEnv(v, "RABBITMQ_USERNAME")
	if err != nil {
		return RabbitMQ{}, err
	}
	password, err := requireEnv(v, "RABBITMQ_PASSWORD")
	if err != nil {
		return RabbitMQ{}, err
	}

	return RabbitMQ{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}, nil
}

func (r RabbitMQ) GetUrl() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.Username, r.Password, r.Host, r.Port)
}

type Redis struct {
	Host string
	Port int
}

func newRedis(v *viper.Viper) (Redis, error) {
	host, err := requireEnv(v, "REDIS_HOST")
	if err != nil {
		return Redis{}, err
	}
	port, err := requireEnvAsInt(v, "REDIS_PORT")
	if err != nil {
		return Redis{}, err
	}

	return Redis{
		Host: host,
		Port: port,
	}, nil
}

type OpenStack struct {
	AuthURL    string
	Username   string
	Password   string
	ProjectID  string
	DomainName string
	Region     string
	// ImageID is the image every broker node boots from
	ImageID string
}

func newOpenStack(v *viper.Viper) (OpenStack, error) {
	authURL, err := requireEnv(v, "OS_AUTH_URL")
	if err != nil {
		return OpenStack{}, err
	}
	username, err := requireEnv(v, "OS_USERNAME")
	if err != nil {
		return OpenStack{}, err
	}
	password, err := requireEnv(v, "OS_PASSWORD")
	if err != nil {
		return OpenStack{}, err
	}
	projectID, err := requireEnv(v, "OS_PROJECT_ID")
	if err != nil {
		return OpenStack{}, err
	}
	imageID, err := requireEnv(v, "BROKER_IMAGE_ID")
	if err != nil {
		return OpenStack{}, err
	}

	return OpenStack{
		AuthURL:    authURL,
		Username:   username,
		Password:   password,
		ProjectID:  projectID,
		DomainName: v.GetString("OS_DOMAIN_NAME"),
		Region:     v.GetString("OS_REGION_NAME"),
		ImageID:    imageID,
	}, nil
}

type Authentication struct {
	// PublicKey is the PEM encoded key bearer tokens are verified against
	PublicKey string
}

func newAuthentication(v *viper.Viper) (Authentication, error) {
	publicKey, err := requireEnv(v, "JWT_PUBLIC_KEY")
	if err != nil {
		return Authentication{}, err
	}

	return Authentication{PublicKey: publicKey}, nil
}

type Provisioning struct {
	Timeout       time.Duration
	PollInterval  time.Duration
	SweepInterval time.Duration
}

func newProvisioning(v *viper.Viper) (Provisioning, error) {
	p := Provisioning{
		Timeout:       v.GetDuration("PROVISIONING_TIMEOUT"),
		PollInterval:  v.GetDuration("NODE_POLL_INTERVAL"),
		SweepInterval: v.GetDuration("SWEEP_INTERVAL"),
	}

	if p.Timeout <= 0 {
		return Provisioning{}, fmt.Errorf("PROVISIONING_TIMEOUT must be positive, got %q", v.GetString("PROVISIONING_TIMEOUT"))
	}
	if p.PollInterval <= 0 {
		return Provisioning{}, fmt.Errorf("NODE_POLL_INTERVAL must be positive, got %q", v.GetString("NODE_POLL_INTERVAL"))
	}
	if p.SweepInterval <= 0 {
		return Provisioning{}, fmt.Errorf("SWEEP_INTERVAL must be positive, got %q", v.GetString("SWEEP_INTERVAL"))
	}

	return p, nil
}

type Catalog struct {
	// RetryAttempts is the number of extra attempts made after a transient provider failure
	RetryAttempts uint64
}

type Cluster struct {
	// MaxSize is the largest number of nodes a single cluster may request
	MaxSize int
	// PasswordPattern is a regular expression every admin password must match. Empty accepts any
	// password.
	PasswordPattern string
}

func newCluster(v *viper.Viper) (Cluster, error) {
	maxSize := v.GetInt("MAX_CLUSTER_SIZE")
	if maxSize < 1 {
		return Cluster{}, fmt.Errorf("MAX_CLUSTER_SIZE must be positive, got %d", maxSize)
	}

	return Cluster{
		MaxSize:         maxSize,
		PasswordPattern: v.GetString("PASSWORD_PATTERN"),
	}, nil
}

func requireEnv(v *viper.Viper, key string) (string, error) {
	if !v.IsSet(key) {
		return "", fmt.Errorf("can't find environment variable: %s", key)
	}
	return v.GetString(key), nil
}

func requireEnvAsInt(v *viper.Viper, key string) (int, error) {
	valueStr, err := requireEnv(v, key)
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("can't parse value as integer: %v", err)
	}
	return value, nil
}
