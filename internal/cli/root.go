// Package cli implements the xlsx2marc command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/xlsx2marc/internal/logging"
	"github.com/JonMunkholm/xlsx2marc/internal/marc"
)

// EnvPrefix prefixes every environment variable the CLI reads, e.g.
// XLSX2MARC_LANG or XLSX2MARC_LOG_LEVEL.
const EnvPrefix = "XLSX2MARC"

// App holds the state shared by all commands.
type App struct {
	version string
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
	log     *slog.Logger
}

// New creates an App writing results to out and logs to errOut.
func New(version string, out, errOut io.Writer) *App {
	return &App{
		version: version,
		v:       viper.New(),
		out:     out,
		errOut:  errOut,
	}
}

// Execute runs the command line with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "xlsx2marc",
		Short:   "Convert catalog spreadsheets to MARC text",
		Version: a.version,
		Long: `xlsx2marc reads the active sheet of an .xlsx catalog workbook, groups
rows that describe the same title into one record with several holdings,
and writes the records as MARC line format (.mrk).`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().String("config", "", "config file (default is ./.xlsx2marc.yaml)")
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	root.SetVersionTemplate("xlsx2marc {{.Version}}\n")

	for _, name := range []string{"config", "log-level", "log-format"} {
		a.bindFlag(name, root.PersistentFlags().Lookup(name))
	}

	root.AddCommand(a.convertCommand(), a.schemaCommand(), a.templateCommand())
	return root
}

// setup reads the config file and environment before any command runs.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".xlsx2marc")
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	a.log = logging.New(a.errOut, a.v.GetString("log-level"), a.v.GetString("log-format"))
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debug("using config file", "path", used)
	}
	return nil
}

// bindFlag binds a flag to key; a failure is a programming error.
func (a *App) bindFlag(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// language returns the configured default 008 language.
func (a *App) language() string {
	if lang := marc.CleanText(a.v.GetString("lang")); lang != "" {
		return lang
	}
	return marc.DefaultLanguage
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
