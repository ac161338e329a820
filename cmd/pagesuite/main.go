package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver/pwdriver"
)

var version = "0.1.0"

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).Run(args)
	if err == nil {
		return exitOK
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return ec.ExitCode()
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitConfig
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "pagesuite",
		Usage:     "Run browser UI tests with a screenshot of every failure",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading the environment, ignored when missing",
			},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadDotEnv(c.String("env-file")); err != nil {
				return cli.Exit(fmt.Sprintf("configuration error: %v", err), exitConfig)
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			installCommand(),
		},
		// Exit codes are handled by run, never by the library.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Download the playwright driver and browsers",
		ArgsUsage: "[chromium|firefox|webkit...]",
		Action: func(c *cli.Context) error {
			browsers := c.Args().Slice()
			if len(browsers) == 0 {
				browsers = []string{"chromium"}
			}
			if err := pwdriver.Install(browsers...); err != nil {
				return cli.Exit(fmt.Sprintf("install failed: %v", err), exitConfig)
			}
			fmt.Fprintf(c.App.Writer, "Installed %v\n", browsers)
			return nil
		},
	}
}
