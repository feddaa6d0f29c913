package main

import "github.com/rs/zerolog"

// zlogger adapts a zerolog.Logger to raft.Logger's three leveled
// methods, the structured-backend option the core's Logger interface
// is designed to accept (see io.go).
type zlogger struct {
	zl zerolog.Logger
}

func (l zlogger) Debugf(format string, args ...interface{}) { l.zl.Debug().Msgf(format, args...) }
func (l zlogger) Infof(format string, args ...interface{})  { l.zl.Info().Msgf(format, args...) }
func (l zlogger) Warnf(format string, args ...interface{})  { l.zl.Warn().Msgf(format, args...) }
