package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ironsheep/image-proxy/internal/config"
)

// newRootCmd builds the command tree. Running the root without a
// subcommand serves.
func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	root := &cobra.Command{
		Use:   "image-proxy",
		Short: "Image transformation proxy",
		Long: `image-proxy fetches a remote image named in each request, applies one
transform (resize, rotate, grayscale, crop, edge or grid) and returns the
result over a minimal HTTP/1.1 response.

Requests look like:

  GET v1/resize/100x100 url:http://example.com/a.jpg

Configuration comes from flags, IMAGE_PROXY_* environment variables and an
optional config file, in that order of precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v, configPath)
		},
	}
	root.SetVersionTemplate("image-proxy {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	pf.String("listen", "", "address to bind (default 0.0.0.0)")
	pf.IntP("port", "p", 0, "port to listen on (default 8080)")
	pf.Int("workers", 0, "concurrent fetch/transform workers; 0 runs them on the event loop")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")
	bindFlags(v, root)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v, configPath)
		},
	}
	root.AddCommand(serve, newVersionCmd())
	return root
}

// bindFlags maps flags onto config keys. A flag only overrides the file and
// environment when it was set explicitly.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	for key, flag := range map[string]string{
		"listen":         "listen",
		"port":           "port",
		"workers":        "workers",
		"logging.level":  "log-level",
		"logging.format": "log-format",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}
}
