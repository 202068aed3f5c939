package cli

import (
	"context"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/stackcomp/cli/cmd"
	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/pkg"
)

// CLI is the top-level command-line interface.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Assemble cmd.Assemble `cmd:"" default:"withargs" help:"Render a template against layered configuration"`
	Merge    cmd.Merge    `cmd:""                    help:"Print the merged configuration"`
	Eval     cmd.Eval     `cmd:""                    help:"Evaluate expressions against the configuration"`
	Deps     cmd.Deps     `cmd:""                    help:"Print the configuration paths expressions read"`
	Encrypt  cmd.Encrypt  `cmd:""                    help:"Encrypt the values of a configuration document"`
	Decrypt  cmd.Decrypt  `cmd:""                    help:"Decrypt the values of a configuration document"`
	Repl     cmd.Repl     `cmd:""                    help:"Explore the configuration interactively"`
	Init     cmd.Init     `cmd:""                    help:"Initialize configuration file"`
	Version  cmd.Version  `cmd:""                    help:"Print version"`
}

// Run executes the CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	if err := mkdirAllRequired(); err != nil {
		return err
	}

	configFilePath := configPath(baseConfig + ".yml")

	formats := make([]string, 0, len(config.Formats()))
	for _, f := range config.Formats() {
		formats = append(formats, string(f))
	}

	vars := kong.Vars{
		cmd.ConfigIdentifier:   configFilePath,
		cmd.CacheIdentifier:    pkg.CacheDir(),
		cmd.PasswordIdentifier: strings.ToUpper(pkg.Prefix()) + "_PASSWORD",
		"formats":              strings.Join(formats, ","),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Configure the logger before kong reports anything.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(kong.JSON, configPath(baseConfig+".json")),
		kong.Configuration(resolve(ctx, baseConfig), configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cli.Log.start(ctx)

	// [pprofConfig.start] is a no-op unless built with tag pprof and enabled.
	defer cli.Pprof.start(ctx)()

	return cmd.Run(ctx, ktx, &cli)
}
