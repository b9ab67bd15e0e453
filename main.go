package main

import (
	"os"

	"github.com/spf13/cobra"

	"gitlab.com/z0mbie42/rz-go/v2"
	"gitlab.com/z0mbie42/rz-go/v2/log"

	"github.com/sveniu/aws-lambda-letsencrypt-setup/config"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/provision"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/terminal"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/wizard"
)

const defaultLogLevel = rz.WarnLevel

var updateLambda bool

var rootCmd = &cobra.Command{
	Use:     "lambda-letsencrypt-setup",
	Short:   "Configure automated Lets-Encrypt certificates for CloudFront and ELB via AWS Lambda",
	Version: "1.0.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The wizard reports failures itself; suppress cobra's
		// duplicate error output.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true

		ui := terminal.New(os.Stdin, os.Stdout)

		prov, err := provision.NewAWS()
		if err != nil {
			ui.Failln("Could not initialize the AWS session; check your credentials.")
			return err
		}

		paths := wizard.DefaultPaths()

		if updateLambda {
			return wizard.UpdateLambda(ui, prov, paths)
		}

		engine := wizard.New(&config.Config{}, ui, prov, paths)
		return engine.Run()
	},
}

func init() {
	rootCmd.Flags().BoolVar(&updateLambda, "update-lambda", false,
		"Bundle zip from existing config and upload to a chosen Lambda function")
}

func main() {
	log.SetLogger(log.With(
		rz.Level(defaultLogLevel),
		rz.Fields(
			rz.Timestamp(true),
			rz.Caller(true),
		),
	))

	// Set log level based on LOG_LEVEL environment variable.
	if logLevelString, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if logLevel, err := rz.ParseLevel(logLevelString); err == nil {
			log.SetLogger(log.With(
				rz.Level(logLevel),
			))
		} else {
			log.Info(
				"Failed to parse log level string",
				rz.String("input_log_level_string", logLevelString),
				rz.String("environment_variable", "LOG_LEVEL"),
				rz.String("current_log_level", defaultLogLevel.String()),
			)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
