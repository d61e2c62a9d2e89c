package localization

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// SeedFile is the path of the seed catalog of lang inside folder.
func SeedFile(folder string, lang string) string {
	return filepath.Join(folder, fmt.Sprintf("messages.%s.toml", lang))
}

// SeedLanguages lists the languages that have a seed file in folder.
func SeedLanguages(folder string) []string {
	if folder == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(folder, "messages.*.toml"))
	if err != nil {
		return nil
	}

	langs := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "messages."), ".toml")
		if name != "" {
			langs = append(langs, name)
		}
	}
	return langs
}

// LoadSeeds reads messages.<lang>.toml files from folder as the starting
// catalogs of langs. Seeds are served until the backend answers, and never
// replace a fetched catalog. Missing files are skipped.
func (c *Cache) LoadSeeds(folder string, langs ...string) error {
	if folder == "" {
		return nil
	}

	var errs []error
	for _, lang := range langs {
		lang = Normalize(lang)
		if c.isDefault(lang) {
			continue
		}

		entries, err := readSeedFile(SeedFile(folder, lang), lang)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.seed(lang, entries)
	}
	return errors.Join(errs...)
}

func readSeedFile(path string, lang string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	bundle := i18n.NewBundle(language.Make(lang))
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	file, err := bundle.LoadMessageFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	entries := make(map[string]string, len(file.Messages))
	for _, m := range file.Messages {
		entries[m.ID] = m.Other
	}
	return entries, nil
}
