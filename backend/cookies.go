package backend

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// CookieProfile names the cookie file handed to yt-dlp. An empty FilePath
// means the request runs without cookies.
type CookieProfile struct {
	Platform string
	FilePath string
}

// HasCookies reports whether a cookie file was selected.
func (p CookieProfile) HasCookies() bool {
	return p.FilePath != ""
}

// CookieSelector maps a media URL to the cookie file for its platform.
//
// Lookup order for a platform tag: a file named in the profiles INI, then
// <dir>/<platform>.txt, then the default file. Files that do not exist are
// skipped.
type CookieSelector struct {
	dir         string
	defaultFile string
	files       map[string]string // platform -> explicit cookie file
	domains     map[string]string // extra domain -> platform
	logger      *slog.Logger
}

// NewCookieSelector builds a selector from cfg. When cfg.ProfilesINI is set the
// file must load; each section names a platform:
//
//	[youtube]
//	file    = cookies/yt-premium.txt
//	domains = music.youtube.com, youtube-nocookie.com
func NewCookieSelector(cfg CookiesConfig, logger *slog.Logger) (*CookieSelector, error) {
	if logger == nil {
		logger = Logger
	}
	s := &CookieSelector{
		dir:         cfg.Dir,
		defaultFile: cfg.DefaultFile,
		files:       make(map[string]string),
		domains:     make(map[string]string),
		logger:      componentLogger(logger, "cookies"),
	}
	if cfg.ProfilesINI == "" {
		return s, nil
	}

	file, err := ini.Load(cfg.ProfilesINI)
	if err != nil {
		return nil, fmt.Errorf("load cookie profiles %s: %w", cfg.ProfilesINI, err)
	}
	base := filepath.Dir(cfg.ProfilesINI)
	for _, section := range file.Sections() {
		name := strings.ToLower(section.Name())
		if name == strings.ToLower(ini.DefaultSection) {
			if path := section.Key("file").String(); path != "" {
				s.defaultFile = resolveRelative(base, path)
			}
			continue
		}
		if path := section.Key("file").String(); path != "" {
			s.files[name] = resolveRelative(base, path)
		}
		for _, d := range section.Key("domains").Strings(",") {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				s.domains[d] = name
			}
		}
	}
	s.logger.Debug("cookie profiles loaded",
		slog.String("path", cfg.ProfilesINI),
		slog.Int("profiles", len(s.files)),
		slog.Int("domains", len(s.domains)))
	return s, nil
}

func resolveRelative(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Platform returns the platform tag for rawURL, or "" if unknown.
func (s *CookieSelector) Platform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	for domain, tag := range s.domains {
		if hostMatches(host, domain) {
			return tag
		}
	}
	return PlatformForHost(host)
}

// Select returns the cookie profile for rawURL.
func (s *CookieSelector) Select(rawURL string) CookieProfile {
	platform := s.Platform(rawURL)
	if platform != "" {
		if path, ok := s.files[platform]; ok && fileExists(path) {
			return CookieProfile{Platform: platform, FilePath: path}
		}
		if s.dir != "" {
			path := filepath.Join(s.dir, platform+".txt")
			if fileExists(path) {
				return CookieProfile{Platform: platform, FilePath: path}
			}
		}
	}
	if s.defaultFile != "" && fileExists(s.defaultFile) {
		return CookieProfile{Platform: "default", FilePath: s.defaultFile}
	}
	return CookieProfile{Platform: platform}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
