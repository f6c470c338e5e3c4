/*
Package log provides structured logging for confsync using zerolog.

A single global Logger is configured once at startup through Init. Packages
derive child loggers carrying their own context fields instead of building
loggers from scratch:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("scheduler")
	logger.Info().Int("interval_seconds", 4).Msg("next sync scheduled")

JSON output is meant for production and log shippers; console output is the
default for interactive use.

Third-party libraries that only accept an io.Writer (Raft, for instance) are
pointed at Writer so their lines land in the same stream with a component tag.
*/
package log
