// Package cli contains the command line interface.
//
// # Usage
//
// The default command renders a template against layered configuration:
//
//	stackcomp -c base.yml -c prod.yml -s secrets.yml stack.yml.tmpl
//
// Other commands print the merged configuration, evaluate expressions,
// list the paths they read, manage encrypted documents and start an
// interactive session.
//
// # Configuration File
//
// Default flag values are read from config.yml in the per-user
// configuration directory. The map at key "config" holds flag values by
// name; a map named after a command applies only to that command. See the
// init command for a starting point.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (text, json)
//   - --log-time-layout: Set timestamp format (RFC3339, RFC3339Nano, etc.)
//   - --log-caller: Include caller information in log output
//   - --log-pretty: Colorize text output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory
package cli
