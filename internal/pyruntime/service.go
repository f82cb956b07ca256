package pyruntime

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/pyappify/pyappify/internal/config"
	"github.com/pyappify/pyappify/internal/events"
	"github.com/pyappify/pyappify/internal/logging"
	"github.com/pyappify/pyappify/internal/paths"
)

// Service provisions runtimes and virtual environments.
type Service struct {
	log    *logging.Logger
	sink   events.Sink
	layout paths.Layout
	cfg    *config.Config
	http   *resty.Client
}

// New creates a provisioner. Downloads retry transient failures before
// falling back to the mirror.
func New(log *logging.Logger, sink events.Sink, layout paths.Layout, cfg *config.Config) *Service {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil

	client := resty.NewWithClient(rc.StandardClient()).
		SetTimeout(30 * time.Minute).
		SetDoNotParseResponse(true)

	return &Service{log: log, sink: sink, layout: layout, cfg: cfg, http: client}
}

// EnsureRuntime makes the pinned patch release for the spec's series
// available and returns its interpreter path together with the resolved
// version. An empty spec falls back to the configured default series.
func (s *Service) EnsureRuntime(ctx context.Context, app, spec string) (string, string, error) {
	if spec == "" {
		spec = s.cfg.Runtime.DefaultVersion
		s.log.Info("profile does not constrain the runtime, using default",
			zap.String("series", spec))
	}

	version, err := Resolve(spec)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(s.layout.RuntimesDir(), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create runtimes dir: %w", err)
	}

	series, _ := seriesOf(spec)
	installed, err := findInstalled(s.layout.RuntimesDir(), series, version, func(v string) bool {
		_, statErr := os.Stat(s.layout.RuntimePython(v))
		return statErr == nil
	})
	if err != nil {
		return "", "", err
	}
	if installed != "" {
		s.log.Info("runtime already installed",
			zap.String("version", installed),
			zap.String("path", s.layout.RuntimeDir(installed)))
		return s.layout.RuntimePython(installed), installed, nil
	}

	s.sink.Info(app, fmt.Sprintf("Python %s not installed. Downloading...", version))
	if err := s.install(ctx, app, version); err != nil {
		return "", "", err
	}
	return s.layout.RuntimePython(version), version, nil
}

// install downloads and unpacks one runtime, trying the mirror when the
// primary source fails. The installation directory is removed whenever the
// interpreter does not come out usable.
func (s *Service) install(ctx context.Context, app, version string) error {
	urls, err := downloadURLs(version, s.cfg.Runtime.PreferMirror)
	if err != nil {
		return err
	}

	var lastErr error
	for _, source := range urls {
		archivePath, err := s.download(ctx, app, source)
		if err != nil {
			s.log.Warn("runtime download failed",
				zap.String("url", source), zap.Error(err))
			lastErr = err
			continue
		}

		installDir := s.layout.RuntimeDir(version)
		if err := s.unpack(app, archivePath, installDir); err != nil {
			os.Remove(archivePath)
			lastErr = err
			continue
		}
		os.Remove(archivePath)

		if _, err := os.Stat(s.layout.RuntimePython(version)); err != nil {
			os.RemoveAll(installDir)
			lastErr = fmt.Errorf("interpreter missing after extracting %s, installation is corrupt", source)
			continue
		}

		s.sink.Info(app, fmt.Sprintf("Python %s installed.", version))
		return nil
	}
	return fmt.Errorf("failed to install Python %s: %w", version, lastErr)
}

// download streams one archive into the runtimes directory, reporting
// progress through the sink. Partial files are removed on failure.
func (s *Service) download(ctx context.Context, app, source string) (string, error) {
	name, err := fileNameFromURL(source)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(s.layout.RuntimesDir(), name)

	s.sink.Info(app, fmt.Sprintf("Downloading %s", source))

	req := s.http.R().SetContext(ctx)
	if isMirror(source) {
		req.SetHeader("User-Agent", mirrorUserAgent())
	}
	resp, err := req.Get(source)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", source, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("download %s failed with status %s", source, resp.Status())
	}

	if err := writeStream(dest, body, events.NewProgress(s.sink, app, "Downloading", resp.RawResponse.ContentLength)); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to save %s: %w", source, err)
	}
	return dest, nil
}

func (s *Service) unpack(app, archivePath, installDir string) error {
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return fmt.Errorf("failed to create install dir %s: %w", installDir, err)
	}
	s.sink.Info(app, fmt.Sprintf("Extracting %s", filepath.Base(archivePath)))
	if err := extractArchive(archivePath, installDir); err != nil {
		os.RemoveAll(installDir)
		return fmt.Errorf("failed to extract %s: %w", archivePath, err)
	}
	return nil
}

func fileNameFromURL(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", source, err)
	}
	name := filepath.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("no filename in URL %q", source)
	}
	return name, nil
}
