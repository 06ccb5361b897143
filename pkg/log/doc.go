// Package log provides the controller's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context, backed by a formatter/outputs pipeline.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("client-listener"))
//	l.Info("listener started", log.Int("port", 10105))
//
// Use ApplyConfig to build a logger from a declarative Config, selecting
// text or JSON formatting and a console or file destination. To integrate
// with libraries that use the standard library logger, call RedirectStdLog.
package log
