// Command speakerhub runs the speaker identification service.
//
//	speakerhub [--config path] [serve]     API, workers and progress streams
//	speakerhub [--config path] rebuild-index   compact the embedding snapshot and exit
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kbukum/speakerhub/bootstrap"
	"github.com/kbukum/speakerhub/config"
	"github.com/kbukum/speakerhub/logger"

	// storage backends register themselves by provider name
	_ "github.com/kbukum/speakerhub/storage/local"
	_ "github.com/kbukum/speakerhub/storage/s3"
)

const serviceName = "speakerhub"

const (
	cmdServe        = "serve"
	cmdRebuildIndex = "rebuild-index"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", "", "path to config.yml")
	envFile := flags.String("env", "", "path to a .env file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	command := cmdServe
	if flags.NArg() > 0 {
		command = flags.Arg(0)
	}
	if command != cmdServe && command != cmdRebuildIndex {
		return fmt.Errorf("unknown command %q (want %s or %s)", command, cmdServe, cmdRebuildIndex)
	}

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	var cfg AppConfig
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}
	w := newWiring(app)
	if err := w.registerInfrastructure(); err != nil {
		return err
	}

	app.OnConfigure(w.configureResolver)

	ctx := context.Background()
	switch command {
	case cmdRebuildIndex:
		return app.RunTask(ctx, func(ctx context.Context) error {
			st, err := w.resolver.Rebuild(ctx)
			if err != nil {
				return err
			}
			app.Logger.Info("index rebuilt", logger.Fields(
				"total", st.Total,
				"live", st.Live,
				"identities", st.Identities,
				"generation", st.Generation,
			))
			return nil
		})
	default:
		app.OnConfigure(w.configureService)
		return app.Run(ctx)
	}
}
