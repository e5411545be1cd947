package options

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tableflip.dev/tilegrid/pkg/config"
)

// ConfigOptions holds flags that override config keys. Only flags the user
// sets take effect; everything else resolves from the file, the environment
// or the defaults.
type ConfigOptions struct {
	Tiles        string
	ImageURL     string
	CachePath    string
	CacheBackend string
	LogLevel     string
}

// flagKeys maps flag names onto config keys.
var flagKeys = map[string]string{
	"tiles":         config.KeyTilesPath,
	"image-url":     config.KeyImageURL,
	"cache-path":    config.KeyCachePath,
	"cache-backend": config.KeyCacheBackend,
	"log-level":     config.KeyLogLevel,
}

func AddConfigArgs(cmd *cobra.Command, o *ConfigOptions) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.Tiles, "tiles", "t", "",
		"Tiles file (yaml or json). Generated tiles are used when empty.")
	f.StringVar(&o.ImageURL, "image-url", "",
		"Image URL template with {id}, {size} and {face} placeholders.")
	f.StringVar(&o.CachePath, "cache-path", "",
		"Directory for the persisted image cache.")
	f.StringVar(&o.CacheBackend, "cache-backend", "",
		"Persisted cache backend, one of diskv, sqlite or memory.")
	f.StringVar(&o.LogLevel, "log-level", "",
		"Log level, one of debug, info, warn or error.")
	_ = cmd.RegisterFlagCompletionFunc("cache-backend", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{config.BackendDiskv, config.BackendSQLite, config.BackendMemory}, cobra.ShellCompDirectiveNoFileComp
	})
}

// Load resolves the configuration for cmd.
func (o *ConfigOptions) Load(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := config.Read(v); err != nil {
		return nil, err
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return nil, bindErr
	}
	return config.FromViper(v)
}
