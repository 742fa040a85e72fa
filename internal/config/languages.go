package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kobzarvs/kit/internal/logger"
)

// Language forces a lexer for matching file names. Name is a lexer name
// or alias understood by the highlighter ("go", "bash", "diff", ...).
type Language struct {
	Name      string   `toml:"name"`
	FileTypes []string `toml:"file-types"`
}

type Languages struct {
	Languages []Language `toml:"language"`
}

// Match finds the first language whose file-types contain the path's
// extension or its base name.
func (l Languages) Match(path string) *Language {
	base := filepath.Base(path)
	baseLower := strings.ToLower(base)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	for i := range l.Languages {
		lang := &l.Languages[i]
		for _, ft := range lang.FileTypes {
			ftLower := strings.ToLower(ft)
			if ftLower == baseLower || (ext != "" && ftLower == ext) {
				return lang
			}
			if strings.HasPrefix(ftLower, ".") && strings.TrimPrefix(ftLower, ".") == ext {
				return lang
			}
		}
	}
	return nil
}

// LoadLanguages reads languages.toml. A missing file means no overrides.
// Entries without a name are rejected; unknown keys are logged and
// ignored.
func LoadLanguages() (Languages, error) {
	path, err := LanguagesPath()
	if err != nil {
		return Languages{}, err
	}
	var langs Languages
	md, err := toml.DecodeFile(path, &langs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Languages{}, nil
	case err != nil:
		return Languages{}, fmt.Errorf("%s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warn("unknown languages.toml key", "key", key.String())
	}
	for i, lang := range langs.Languages {
		if strings.TrimSpace(lang.Name) == "" {
			return Languages{}, fmt.Errorf("%s: language %d has no name", path, i+1)
		}
	}
	return langs, nil
}

func LanguagesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "languages.toml"), nil
}
