// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// Loggers are immutable values configured with functional options at
// creation time:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatText),
//		log.WithTimeLayout("kitchen"))
//
// Attributes are attached with [Logger.With] and every level has a
// context-aware and a context-unaware variant. Context-unaware variants use
// [DefaultContextProvider].
//
// A process-wide default logger backs the package-level functions and is
// reconfigured with [Config]. The CLI adjusts it while parsing flags so that
// parse errors are already reported in the requested format.
//
// [LevelTrace] sits below [LevelDebug] and is used by the template evaluator
// to report per-expression cache decisions.
package log
