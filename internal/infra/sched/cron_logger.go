package sched

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var _ cron.Logger = cronLogger{}

// cronLogger routes robfig/cron's own messages into zerolog.
type cronLogger struct {
	log *zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
