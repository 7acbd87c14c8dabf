package sites

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

// ErrSiteConfigNotFound is returned when neither <site>.config.js nor <site>.config.json exists.
var ErrSiteConfigNotFound = errors.New("site config not found")

// ReadSiteConfig loads the configuration of site from dir. The JavaScript module
// `<site>.config.js` is preferred; a `<site>.config.json` sibling is the fallback.
func ReadSiteConfig(dir, site string) (queue.SiteConfig, error) {
	jsPath := filepath.Join(dir, site+".config.js")
	data, err := os.ReadFile(jsPath) // #nosec G304 -- path is derived from discovered channel files.
	switch {
	case err == nil:
		return queue.SiteConfig{
			Path:   jsPath,
			Site:   site,
			Ignore: jsConfigIgnored(data),
		}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return queue.SiteConfig{}, fmt.Errorf("read %s: %w", jsPath, err)
	}

	jsonPath := filepath.Join(dir, site+".config.json")
	if _, err := os.Stat(jsonPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return queue.SiteConfig{}, fmt.Errorf("%w: %s", ErrSiteConfigNotFound, jsPath)
		}
		return queue.SiteConfig{}, fmt.Errorf("stat %s: %w", jsonPath, err)
	}

	v := viper.New()
	v.SetConfigFile(jsonPath)
	if err := v.ReadInConfig(); err != nil {
		return queue.SiteConfig{}, fmt.Errorf("read %s: %w", jsonPath, err)
	}
	cfg := queue.SiteConfig{
		Path:   jsonPath,
		Site:   v.GetString("site"),
		Ignore: v.GetBool("ignore"),
	}
	if cfg.Site == "" {
		cfg.Site = site
	}
	return cfg, nil
}
