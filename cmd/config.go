package main

import "time"

type Config struct {
	Host     string `env:"HOST,required=true"`
	Port     int    `env:"PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,required=true"`

	MembershipDBPath string `env:"MEMBERSHIP_DB_PATH,required=true"`
	BadgerFilepath   string `env:"BADGER_FILEPATH,required=true"`

	AuthTokenSecret   string        `env:"AUTH_TOKEN_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	StorageTimeout   time.Duration `env:"STORAGE_TIMEOUT,required=true"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,required=true"`
	ReadPageSize     int           `env:"READ_PAGE_SIZE,required=true"`
	MessageWindow    int           `env:"MESSAGE_WINDOW,required=true"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL,required=true"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,required=true"`

	InspectPort *int `env:"INSPECT_PORT"`
}
