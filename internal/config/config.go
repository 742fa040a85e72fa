package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Keymap maps key names to action names. Movement maps key names to
// navigation commands ("cursor up", "cursor page down", ...).
type Keymap struct {
	Normal   map[string]string `toml:"normal"`
	General  map[string]string `toml:"general"`
	Movement map[string]string `toml:"movement"`
}

type PagerOptions struct {
	TabWidth            int     `toml:"tab-width"`
	BatchSize           int     `toml:"batch-size"`
	RedrawIntervalMs    int     `toml:"redraw-interval-ms"`
	ResolveDelayMs      int     `toml:"resolve-delay-ms"`
	ConfidenceThreshold float64 `toml:"confidence-threshold"`
	SyntaxStyle         string  `toml:"syntax-style"`
	Editor              string  `toml:"editor"`
	Opener              string  `toml:"opener"`
	GitBranchSymbol     string  `toml:"git-branch-symbol"`
}

type Theme struct {
	Theme                  string `toml:"theme"`
	Foreground             string `toml:"foreground"`
	Background             string `toml:"background"`
	StatuslineForeground   string `toml:"statusline-foreground"`
	StatuslineBackground   string `toml:"statusline-background"`
	CommandlineForeground  string `toml:"commandline-foreground"`
	CommandlineBackground  string `toml:"commandline-background"`
	HighlightForeground    string `toml:"highlight-foreground"`
	HighlightBackground    string `toml:"highlight-background"`
	BannerForeground       string `toml:"banner-foreground"`
	BannerBackground       string `toml:"banner-background"`
	DiffAddForeground      string `toml:"diff-add-foreground"`
	DiffAddBackground      string `toml:"diff-add-background"`
	DiffDelForeground      string `toml:"diff-del-foreground"`
	DiffDelBackground      string `toml:"diff-del-background"`
	MenuForeground         string `toml:"menu-foreground"`
	MenuBackground         string `toml:"menu-background"`
	MenuSelectedForeground string `toml:"menu-selected-foreground"`
	MenuSelectedBackground string `toml:"menu-selected-background"`
	MenuDisabledForeground string `toml:"menu-disabled-foreground"`
	BorderForeground       string `toml:"border-foreground"`
	HelpKeyForeground      string `toml:"help-key-foreground"`
}

type Config struct {
	Pager  PagerOptions `toml:"pager"`
	Theme  Theme        `toml:"theme"`
	Keymap Keymap       `toml:"keymap"`
}

func Default() Config {
	return Config{
		Pager: PagerOptions{
			TabWidth:            4,
			BatchSize:           100,
			RedrawIntervalMs:    200,
			ResolveDelayMs:      1,
			ConfidenceThreshold: 0.3,
			SyntaxStyle:         "monokai",
			GitBranchSymbol:     "git:",
		},
		Theme: Theme{
			Foreground:             "default",
			Background:             "default",
			StatuslineForeground:   "#B3B1AD",
			StatuslineBackground:   "#0F1419",
			CommandlineForeground:  "#B3B1AD",
			CommandlineBackground:  "#0F1419",
			HighlightForeground:    "white",
			HighlightBackground:    "darkgray",
			BannerForeground:       "black",
			BannerBackground:       "white",
			DiffAddForeground:      "white",
			DiffAddBackground:      "#3FA34D",
			DiffDelForeground:      "white",
			DiffDelBackground:      "#D2474E",
			MenuForeground:         "#B3B1AD",
			MenuBackground:         "#0F1419",
			MenuSelectedForeground: "#0A0E14",
			MenuSelectedBackground: "#E6B450",
			MenuDisabledForeground: "#3E4B59",
			BorderForeground:       "#3E4B59",
			HelpKeyForeground:      "#59C2FF",
		},
		Keymap: Keymap{
			Normal: map[string]string{
				":":         "command_prompt",
				"/":         "search_prompt",
				"!":         "pipe_prompt",
				"Q":         "close_or_quit",
				"esc":       "close_or_quit",
				"q":         "back_or_quit",
				"p":         "print",
				"s":         "toggle_syntax",
				"e":         "edit",
				"g":         "general",
				"G":         "scroll_bottom",
				"n":         "search_next",
				"N":         "search_prev",
				"d":         "diff_clipboard",
				"y":         "yank",
				"?":         "help",
				"f":         "files",
				"u":         "urls",
				"o":         "objects",
				"backspace": "pop",
			},
			General: map[string]string{
				"?": "help",
				"q": "close_or_quit",
				"g": "scroll_top",
			},
			Movement: map[string]string{
				"k":      "cursor up",
				"j":      "cursor down",
				"h":      "cursor left",
				"l":      "cursor right",
				"ctrl+u": "cursor page up",
				"ctrl+d": "cursor page down",
			},
		},
	}
}

func Load() (Config, error) {
	cfg := Default()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var userCfg Config
	if _, err := toml.Decode(string(data), &userCfg); err != nil {
		return cfg, err
	}

	if userCfg.Pager.TabWidth > 0 {
		cfg.Pager.TabWidth = userCfg.Pager.TabWidth
	}
	if userCfg.Pager.BatchSize > 0 {
		cfg.Pager.BatchSize = userCfg.Pager.BatchSize
	}
	if userCfg.Pager.RedrawIntervalMs > 0 {
		cfg.Pager.RedrawIntervalMs = userCfg.Pager.RedrawIntervalMs
	}
	if userCfg.Pager.ResolveDelayMs > 0 {
		cfg.Pager.ResolveDelayMs = userCfg.Pager.ResolveDelayMs
	}
	if userCfg.Pager.ConfidenceThreshold > 0 {
		cfg.Pager.ConfidenceThreshold = userCfg.Pager.ConfidenceThreshold
	}
	if userCfg.Pager.SyntaxStyle != "" {
		cfg.Pager.SyntaxStyle = userCfg.Pager.SyntaxStyle
	}
	if userCfg.Pager.Editor != "" {
		cfg.Pager.Editor = userCfg.Pager.Editor
	}
	if userCfg.Pager.Opener != "" {
		cfg.Pager.Opener = userCfg.Pager.Opener
	}
	if userCfg.Pager.GitBranchSymbol != "" {
		cfg.Pager.GitBranchSymbol = userCfg.Pager.GitBranchSymbol
	}
	if userCfg.Theme.Theme != "" {
		cfg.Theme.Theme = userCfg.Theme.Theme
	}
	if cfg.Theme.Theme != "" {
		theme, err := LoadTheme(cfg.Theme.Theme)
		if err != nil {
			return cfg, err
		}
		mergeTheme(&cfg.Theme, theme)
	}
	// Explicit [theme] keys win over the named theme file.
	mergeTheme(&cfg.Theme, userCfg.Theme)
	mergeKeys(cfg.Keymap.Normal, userCfg.Keymap.Normal)
	mergeKeys(cfg.Keymap.General, userCfg.Keymap.General)
	mergeKeys(cfg.Keymap.Movement, userCfg.Keymap.Movement)

	return cfg, nil
}

func mergeKeys(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeTheme(dst *Theme, src Theme) {
	if src.Foreground != "" {
		dst.Foreground = src.Foreground
	}
	if src.Background != "" {
		dst.Background = src.Background
	}
	if src.StatuslineForeground != "" {
		dst.StatuslineForeground = src.StatuslineForeground
	}
	if src.StatuslineBackground != "" {
		dst.StatuslineBackground = src.StatuslineBackground
	}
	if src.CommandlineForeground != "" {
		dst.CommandlineForeground = src.CommandlineForeground
	}
	if src.CommandlineBackground != "" {
		dst.CommandlineBackground = src.CommandlineBackground
	}
	if src.HighlightForeground != "" {
		dst.HighlightForeground = src.HighlightForeground
	}
	if src.HighlightBackground != "" {
		dst.HighlightBackground = src.HighlightBackground
	}
	if src.BannerForeground != "" {
		dst.BannerForeground = src.BannerForeground
	}
	if src.BannerBackground != "" {
		dst.BannerBackground = src.BannerBackground
	}
	if src.DiffAddForeground != "" {
		dst.DiffAddForeground = src.DiffAddForeground
	}
	if src.DiffAddBackground != "" {
		dst.DiffAddBackground = src.DiffAddBackground
	}
	if src.DiffDelForeground != "" {
		dst.DiffDelForeground = src.DiffDelForeground
	}
	if src.DiffDelBackground != "" {
		dst.DiffDelBackground = src.DiffDelBackground
	}
	if src.MenuForeground != "" {
		dst.MenuForeground = src.MenuForeground
	}
	if src.MenuBackground != "" {
		dst.MenuBackground = src.MenuBackground
	}
	if src.MenuSelectedForeground != "" {
		dst.MenuSelectedForeground = src.MenuSelectedForeground
	}
	if src.MenuSelectedBackground != "" {
		dst.MenuSelectedBackground = src.MenuSelectedBackground
	}
	if src.MenuDisabledForeground != "" {
		dst.MenuDisabledForeground = src.MenuDisabledForeground
	}
	if src.BorderForeground != "" {
		dst.BorderForeground = src.BorderForeground
	}
	if src.HelpKeyForeground != "" {
		dst.HelpKeyForeground = src.HelpKeyForeground
	}
}

func ThemePath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "theme", name+".toml"), nil
}

// LoadTheme reads theme/<name>.toml, accepting both bare keys and a
// [theme] table.
func LoadTheme(name string) (Theme, error) {
	path, err := ThemePath(name)
	if err != nil {
		return Theme{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, err
	}
	var wrap struct {
		Theme Theme `toml:"theme"`
	}
	md, err := toml.Decode(string(data), &wrap)
	if err != nil {
		return Theme{}, err
	}
	if md.IsDefined("theme") {
		return wrap.Theme, nil
	}
	var t Theme
	if _, err := toml.Decode(string(data), &t); err != nil {
		return Theme{}, err
	}
	return t, nil
}

func ConfigDir() (string, error) {
	if v := os.Getenv("KIT_CONFIG_HOME"); v != "" {
		return filepath.Clean(v), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "kit"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kit"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
