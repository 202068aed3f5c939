// Package cmd provides the subcommands of the command-line interface.
//
// Every command that reads configuration embeds [Layers], which selects the
// configuration and secret documents of an assembly pass.
package cmd

//nolint:gochecknoglobals
var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the configuration file that supplies default flag values.
	ConfigIdentifier = "config"

	// PasswordIdentifier is the kong variable identifier containing the name
	// of the environment variable holding the secrets password.
	PasswordIdentifier = "passwordEnv"
)
