package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultScoreboardURL = "https://cdn.nba.com/static/json/liveData/scoreboard/todaysScoreboard_00.json"

type Config struct {
	Env      string
	HttpPort string

	// object store
	S3Bucket     string
	S3Prefix     string
	S3Endpoint   string // empty for AWS; host[:port] or URL for minio/localstack
	S3Provider   string // aws|minio|generic
	S3UseSSL     bool
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string

	// producer
	SourceName       string
	ScoreboardURL    string
	FetchMaxAttempts int
	FetchRetryDelay  time.Duration

	// warehouse
	WarehouseDriver string // snowflake|postgres|sqlite
	Snowflake       Snowflake
	DBPath          string // used when WarehouseDriver=sqlite
	DBDsn           string // used when WarehouseDriver=postgres
	TargetTable     string
	StageName       string
	HistoryLimit    int

	// transformation
	DbtBinary     string
	DbtProjectDir string
	DbtSelect     string
}

type Snowflake struct {
	User      string
	Password  string
	Account   string
	Role      string
	Warehouse string
	Database  string
	Schema    string
}

// Load reads the optional dotenv files (missing ones are ignored) and then the
// process environment. Values already present in the environment win.
func Load(envFiles ...string) *Config {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		_ = godotenv.Load(f)
	}
	cfg := &Config{
		Env:      getEnv("APP_ENV", "dev"),
		HttpPort: getEnv("HTTP_PORT", "8080"),

		S3Bucket:     getEnv("S3_BUCKET_NAME", ""),
		S3Prefix:     getEnv("S3_PREFIX", "raw/"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3Provider:   getEnv("S3_PROVIDER", "aws"),
		S3UseSSL:     getBool("S3_USE_SSL", true),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		SourceName:       getEnv("SOURCE_NAME", "nba_scoreboard"),
		ScoreboardURL:    getEnv("SCOREBOARD_URL", DefaultScoreboardURL),
		FetchMaxAttempts: getInt("FETCH_MAX_ATTEMPTS", 3),
		FetchRetryDelay:  getDuration("FETCH_RETRY_DELAY", 300*time.Second),

		WarehouseDriver: strings.ToLower(getEnv("WAREHOUSE_DRIVER", "snowflake")),
		Snowflake: Snowflake{
			User:      getEnv("SNOWFLAKE_USER", ""),
			Password:  getEnv("SNOWFLAKE_PASSWORD", ""),
			Account:   getEnv("SNOWFLAKE_ACCOUNT", ""),
			Role:      getEnv("SNOWFLAKE_ROLE", ""),
			Warehouse: getEnv("SNOWFLAKE_WAREHOUSE", ""),
			Database:  getEnv("SNOWFLAKE_DATABASE", ""),
			Schema:    getEnv("SNOWFLAKE_SCHEMA", ""),
		},
		DBPath:       getEnv("DB_PATH", "data/courtside.db"),
		DBDsn:        getEnv("DATABASE_URL", getEnv("DB_DSN", "")),
		TargetTable:  getEnv("TARGET_TABLE", "RAW_NBA_SCOREBOARD"),
		StageName:    getEnv("STAGE_NAME", "nba_stage"),
		HistoryLimit: getInt("LOAD_HISTORY_LIMIT", 100),

		DbtBinary:     getEnv("DBT_BINARY", "dbt"),
		DbtProjectDir: getEnv("DBT_PROJECT_DIR", ""),
		DbtSelect:     getEnv("DBT_SELECT", "my_first_dbt_model"),
	}
	return cfg
}

// ValidateStore checks what the producer needs to write snapshots.
func (c *Config) ValidateStore() error {
	var missing []string
	c.requireStore(&missing)
	return missingErr(missing)
}

// ValidateLoad checks everything a load run needs, object store and warehouse
// alike, and reports all missing variables at once.
func (c *Config) ValidateLoad() error {
	var missing []string
	c.requireStore(&missing)
	require(&missing, "TARGET_TABLE", c.TargetTable)
	switch c.WarehouseDriver {
	case "snowflake":
		require(&missing, "SNOWFLAKE_USER", c.Snowflake.User)
		require(&missing, "SNOWFLAKE_PASSWORD", c.Snowflake.Password)
		require(&missing, "SNOWFLAKE_ACCOUNT", c.Snowflake.Account)
		require(&missing, "SNOWFLAKE_ROLE", c.Snowflake.Role)
		require(&missing, "SNOWFLAKE_WAREHOUSE", c.Snowflake.Warehouse)
		require(&missing, "SNOWFLAKE_DATABASE", c.Snowflake.Database)
		require(&missing, "SNOWFLAKE_SCHEMA", c.Snowflake.Schema)
		require(&missing, "STAGE_NAME", c.StageName)
	case "postgres", "postgresql":
		require(&missing, "DATABASE_URL", c.DBDsn)
		require(&missing, "STAGE_NAME", c.StageName)
	case "sqlite":
		require(&missing, "DB_PATH", c.DBPath)
		require(&missing, "STAGE_NAME", c.StageName)
	default:
		missing = append(missing, "WAREHOUSE_DRIVER")
	}
	return missingErr(missing)
}

func (c *Config) requireStore(missing *[]string) {
	require(missing, "S3_BUCKET_NAME", c.S3Bucket)
	require(missing, "S3_PREFIX", strings.Trim(c.S3Prefix, "/ "))
	require(missing, "AWS_ACCESS_KEY_ID", c.AWSAccessKey)
	require(missing, "AWS_SECRET_ACCESS_KEY", c.AWSSecretKey)
}

// Sanitized returns the non-secret settings, suitable for logging.
func (c *Config) Sanitized() []any {
	return []any{
		"env", c.Env,
		"bucket", c.S3Bucket,
		"prefix", c.S3Prefix,
		"region", c.AWSRegion,
		"warehouseDriver", c.WarehouseDriver,
		"snowflakeUser", c.Snowflake.User,
		"snowflakeAccount", c.Snowflake.Account,
		"snowflakeRole", c.Snowflake.Role,
		"snowflakeWarehouse", c.Snowflake.Warehouse,
		"snowflakeDatabase", c.Snowflake.Database,
		"snowflakeSchema", c.Snowflake.Schema,
		"table", c.TargetTable,
		"stage", c.StageName,
	}
}

func require(missing *[]string, name, val string) {
	if strings.TrimSpace(val) == "" {
		*missing = append(*missing, name)
	}
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Vars: missing}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}

func getBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d >= 0 {
		return d
	}
	return def
}
