package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchsync/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Token signing secret",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
	directoryDriver = configVar[string]{
		envKey:       "DIRECTORY_DRIVER",
		flagKey:      "directory-driver",
		defaultValue: app.DriverSQLite,
		usage:        "Room directory backend: sqlite or postgres",
	}
	databaseURL = configVar[string]{
		envKey:  "DATABASE_URL",
		flagKey: "database-url",
		usage:   "Postgres connection url",
	}
	sqlitePath = configVar[string]{
		envKey:       "SQLITE_PATH",
		flagKey:      "sqlite-path",
		defaultValue: "watchsync.db",
		usage:        "SQLite database file",
	}
	stateTTL = configVar[time.Duration]{
		envKey:       "STATE_TTL",
		flagKey:      "state-ttl",
		defaultValue: 14 * 24 * time.Hour,
		usage:        "Idle lifetime of a room's playback state and event log, 0 keeps them forever",
	}
	eventLogLimit = configVar[int64]{
		envKey:       "EVENT_LOG_LIMIT",
		flagKey:      "event-log-limit",
		defaultValue: 1000,
		usage:        "Maximum number of events kept per room",
	}
	wsEventsPerMinute = configVar[int]{
		envKey:       "WS_EVENTS_PER_MINUTE",
		flagKey:      "ws-events-per-minute",
		defaultValue: 100,
		usage:        "Realtime events allowed per user per minute",
	}
	wsLimiterCapacity = configVar[int]{
		envKey:       "WS_LIMITER_CAPACITY",
		flagKey:      "ws-limiter-capacity",
		defaultValue: 10_000,
		usage:        "Maximum number of users tracked by the realtime event limiter",
	}
	httpRequestsPerMinute = configVar[int]{
		envKey:       "HTTP_REQUESTS_PER_MINUTE",
		flagKey:      "http-requests-per-minute",
		defaultValue: 600,
		usage:        "HTTP requests allowed per client address per minute, 0 disables the limit",
	}
	tokenTTL = configVar[time.Duration]{
		envKey:       "TOKEN_TTL",
		flagKey:      "token-ttl",
		defaultValue: 24 * time.Hour,
		usage:        "Lifetime of issued access tokens",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, secret.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.String(directoryDriver.flagKey, directoryDriver.defaultValue, directoryDriver.usage)
	pflag.String(databaseURL.flagKey, databaseURL.defaultValue, databaseURL.usage)
	pflag.String(sqlitePath.flagKey, sqlitePath.defaultValue, sqlitePath.usage)
	pflag.Duration(stateTTL.flagKey, stateTTL.defaultValue, stateTTL.usage)
	pflag.Int64(eventLogLimit.flagKey, eventLogLimit.defaultValue, eventLogLimit.usage)
	pflag.Int(wsEventsPerMinute.flagKey, wsEventsPerMinute.defaultValue, wsEventsPerMinute.usage)
	pflag.Int(wsLimiterCapacity.flagKey, wsLimiterCapacity.defaultValue, wsLimiterCapacity.usage)
	pflag.Int(httpRequestsPerMinute.flagKey, httpRequestsPerMinute.defaultValue, httpRequestsPerMinute.usage)
	pflag.Duration(tokenTTL.flagKey, tokenTTL.defaultValue, tokenTTL.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(secret)
	bind(host)
	bind(port)
	bind(logLevel)
	bind(redisHost)
	bind(redisPort)
	bind(redisPassword)
	bind(directoryDriver)
	bind(databaseURL)
	bind(sqlitePath)
	bind(stateTTL)
	bind(eventLogLimit)
	bind(wsEventsPerMinute)
	bind(wsLimiterCapacity)
	bind(httpRequestsPerMinute)
	bind(tokenTTL)

	return &app.AppConfig{
		Secret:                viper.GetString(secret.flagKey),
		Host:                  viper.GetString(host.flagKey),
		Port:                  viper.GetInt(port.flagKey),
		LogLevel:              viper.GetString(logLevel.flagKey),
		RedisHost:             viper.GetString(redisHost.flagKey),
		RedisPort:             viper.GetInt(redisPort.flagKey),
		RedisPassword:         viper.GetString(redisPassword.flagKey),
		DirectoryDriver:       viper.GetString(directoryDriver.flagKey),
		DatabaseURL:           viper.GetString(databaseURL.flagKey),
		SQLitePath:            viper.GetString(sqlitePath.flagKey),
		StateTTL:              viper.GetDuration(stateTTL.flagKey),
		EventLogLimit:         viper.GetInt64(eventLogLimit.flagKey),
		WSEventsPerMinute:     viper.GetInt(wsEventsPerMinute.flagKey),
		WSLimiterCapacity:     viper.GetInt(wsLimiterCapacity.flagKey),
		HTTPRequestsPerMinute: viper.GetInt(httpRequestsPerMinute.flagKey),
		TokenTTL:              viper.GetDuration(tokenTTL.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
