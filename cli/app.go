// Package cli implements the proximityalarm command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/proximity/config"
	"go.viam.com/proximity/logging"
)

const (
	flagConfig      = "config"
	flagCamera      = "camera"
	flagVideo       = "video"
	flagFramesDir   = "frames-dir"
	flagHeadless    = "headless"
	flagDebug       = "debug"
	flagMetricsAddr = "metrics-addr"
	flagMaxFrames   = "max-frames"
	flagOutputDir   = "output-dir"
)

var configFlag = &cli.StringFlag{
	Name:    flagConfig,
	Aliases: []string{"c"},
	Usage:   "load configuration from `FILE` (.json, .yaml or .yml)",
}

// NewApp returns the proximityalarm application writing to out and errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "proximityalarm",
		Usage:           "raise an alarm when a vehicle comes closer than a meter to the camera",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "process frames until the stream ends or q is pressed",
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:  flagCamera,
						Usage: "read from the webcam with this device `INDEX`",
					},
					&cli.StringFlag{
						Name:  flagVideo,
						Usage: "read from a video `FILE`",
					},
					&cli.StringFlag{
						Name:  flagFramesDir,
						Usage: "read image files from `DIR` in name order",
					},
					&cli.BoolFlag{
						Name:  flagHeadless,
						Usage: "do not open a window",
					},
					&cli.BoolFlag{
						Name:    flagDebug,
						Aliases: []string{"vvv"},
						Usage:   "enable debug logging",
					},
					&cli.StringFlag{
						Name:  flagMetricsAddr,
						Usage: "serve Prometheus metrics on `ADDRESS`",
					},
					&cli.IntFlag{
						Name:  flagMaxFrames,
						Usage: "stop after `N` frames",
					},
					&cli.StringFlag{
						Name:  flagOutputDir,
						Usage: "write screenshots and point clouds to `DIR`",
					},
				},
				Action: RunAction,
			},
			{
				Name:   "check-config",
				Usage:  "validate a configuration file and print it with defaults filled in",
				Flags:  []cli.Flag{configFlag},
				Action: CheckConfigAction,
			},
		},
	}
}

// CheckConfigAction prints the effective configuration.
func CheckConfigAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

// RunAction runs the alarm until the stream ends, the window is quit or the command is
// interrupted.
func RunAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := logging.NewLogger("proximity")
	logger.SetLevel(cfg.Level())
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logging.ReplaceGlobal(logger)

	sys, err := newSystem(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	runErr := sys.run(c.Context)
	closeErr := sys.Close()
	if runErr != nil && errors.Is(runErr, c.Context.Err()) {
		logger.Info("interrupted")
		runErr = nil
	}
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String(flagConfig); path != "" {
		read, err := config.Read(path)
		if err != nil {
			return nil, err
		}
		cfg = read
	} else {
		cfg = config.Default()
	}

	switch {
	case c.String(flagFramesDir) != "":
		cfg.Camera.Type = config.SourceFrames
		cfg.Camera.FramesDir = c.String(flagFramesDir)
	case c.String(flagVideo) != "":
		cfg.Camera.Type = config.SourceVideo
		cfg.Camera.VideoPath = c.String(flagVideo)
	case c.IsSet(flagCamera):
		cfg.Camera.Type = config.SourceCamera
		cfg.Camera.Device = c.Int(flagCamera)
	}
	if c.Bool(flagHeadless) {
		cfg.Camera.Headless = true
	}
	if c.IsSet(flagMaxFrames) {
		cfg.Camera.MaxFrames = c.Int(flagMaxFrames)
	}
	if addr := c.String(flagMetricsAddr); addr != "" {
		cfg.Metrics.Address = addr
	}
	if dir := c.String(flagOutputDir); dir != "" {
		cfg.Output.Dir = dir
	}
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrap(err, "invalid command line options")
	}
	return cfg, nil
}
