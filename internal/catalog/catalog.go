package catalog

import (
	"fmt"
	"os"
	"sort"

	"pointsplane/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var Module = fx.Module("catalog",
	fx.Provide(Provide),
)

// Package is a static catalog entry. The catalog is read once at startup and
// never mutated; events referencing unknown package ids are skipped.
type Package struct {
	ID            string `yaml:"id"`
	Label         string `yaml:"label"`
	PriceMinor    int64  `yaml:"price_minor"`
	Currency      string `yaml:"currency"`
	Points        int64  `yaml:"points"`
	PriorityBoost int    `yaml:"priority_boost"`
}

type Catalog struct {
	packages map[string]Package
}

type file struct {
	Packages []Package `yaml:"packages"`
}

func Provide(cfg *config.Config) *Catalog {
	c, err := Load(cfg.Catalog.Path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Info("catalog file not found, using built-in packages", zap.String("path", cfg.Catalog.Path))
			return Default()
		}
		zap.L().Error("failed to load catalog", zap.String("path", cfg.Catalog.Path), zap.Error(err))
		os.Exit(1)
	}
	return c
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if len(f.Packages) == 0 {
		return nil, fmt.Errorf("catalog %s defines no packages", path)
	}

	packages := make(map[string]Package, len(f.Packages))
	for _, p := range f.Packages {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry without id")
		}
		if p.Points < 0 {
			return nil, fmt.Errorf("package %s grants negative points", p.ID)
		}
		if p.Currency == "" {
			p.Currency = "usd"
		}
		packages[p.ID] = p
	}

	return &Catalog{packages: packages}, nil
}

// Default mirrors the packages the bot sells.
func Default() *Catalog {
	return &Catalog{packages: map[string]Package{
		"p200":  {ID: "p200", Label: "500 points", PriceMinor: 399, Currency: "usd", Points: 500, PriorityBoost: 1},
		"p500":  {ID: "p500", Label: "2000 points", PriceMinor: 999, Currency: "usd", Points: 2000, PriorityBoost: 1},
		"p1000": {ID: "p1000", Label: "5000 points", PriceMinor: 1999, Currency: "usd", Points: 5000, PriorityBoost: 1},
	}}
}

func (c *Catalog) Lookup(id string) (Package, bool) {
	p, ok := c.packages[id]
	return p, ok
}

func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.packages))
	for id := range c.packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
