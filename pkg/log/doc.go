/*
Package log provides structured logging shared by every core subsystem,
built on top of zerolog.

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│  Global Logger (zerolog.Logger), set via log.Init()       │
	│                        │                                  │
	│  Config{Level, JSONOutput, Output}                        │
	│                        │                                  │
	│  Component loggers: WithComponent("scheduler"),           │
	│  WithRouter(id), WithElement(name), WithThread(id)         │
	└────────────────────────────────────────────────────────┘

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Int("thread_id", 0).Msg("driver loop started")

A zero-value Logger is initialized at package load (Info level, console
output) so that code running before an explicit Init (tests, library use
as an embedded router) never logs into a discarded Logger.
*/
package log
