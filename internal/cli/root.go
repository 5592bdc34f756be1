// Package cli provides the command-line interface for nbexplode.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/leapstack-labs/nbexplode/internal/cli/commands"
	"github.com/leapstack-labs/nbexplode/internal/cli/config"
	"github.com/leapstack-labs/nbexplode/internal/explode"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nbexplode [flags] <notebook>...",
		Short: "Explode a parametrized notebook into one notebook per parameter combination",
		Long: `Explode a parametrized notebook into as many notebooks as there are
combinations of parameters.

Takes a notebook where the first cell looks something like this:

    ## Parameters
    x = [ 1, 5, 10, 20 ]
    y = 'I love python'.split()

and creates 12 notebooks, with the first cell replaced by all combinations of
members of x and y. The first exploded notebook gets this first cell:

    ## Parameterized by sample.ipynb
    x = 1
    y = 'I'

and the last one gets:

    ## Parameterized by sample.ipynb
    x = 20
    y = 'python'

Assign a list of variable names to __save__ to append a cell that stores
them with numpy.savez when the generated notebook runs.`,
		Example: `  # Explode a notebook, printing each generated file name
  nbexplode sample.ipynb

  # Prefix generated files and keep quiet
  nbexplode -q -p sweep_ sample.ipynb other.ipynb

  # Preview the combinations without writing anything
  nbexplode plan sample.ipynb`,
		Version: Version,
		Args:    cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg)
			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Info("using config file", "path", configFile)
			}

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		RunE:          runExplode,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./nbexplode.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Be verbose")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Be quiet: no file names, critical log messages only")
	rootCmd.PersistentFlags().StringP("prefix", "p", "", "Prefix for the resulting filenames")

	rootCmd.Flags().BoolP("inplace", "i", false, "Overwrite existing notebook when given (accepted, no effect)")
	rootCmd.Flags().BoolP("stdout", "O", false, "Print converted output instead of sending it to a file (accepted, no effect)")

	// --in-place is an alias of --inplace
	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "in-place" {
			name = "inplace"
		}
		return pflag.NormalizedName(name)
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// runExplode explodes every input notebook in order. A notebook without a
// parameters cell is skipped; any other failure stops the run.
func runExplode(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	logger := config.GetLogger(ctx)

	ex := explode.New(explode.Config{
		Prefix:  cfg.Prefix,
		Quiet:   cfg.Quiet,
		Stdout:  cfg.Stdout,
		InPlace: cfg.InPlace,
		Out:     cmd.OutOrStdout(),
		Logger:  logger,
	})

	for _, path := range args {
		if _, err := ex.ExplodeFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command. An interrupt stops the run after the
// notebook being written.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for nbexplode.

To load completions:

Bash:
  $ source <(nbexplode completion bash)

Zsh:
  $ nbexplode completion zsh > "${fpath[1]}/_nbexplode"

Fish:
  $ nbexplode completion fish | source

PowerShell:
  PS> nbexplode completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
