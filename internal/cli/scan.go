package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/fullres/internal/control"
	"github.com/vietddude/fullres/internal/page"
)

var scanBase string

var scanCmd = &cobra.Command{
	Use:   "scan <page-url|file>",
	Short: "Find linked thumbnails in an HTML page and acquire their originals",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanBase, "base", "", "base url for relative links when scanning a file")
	addEngineFlags(scanCmd)
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	applyEngineFlags(cmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	body, base, err := openPage(ctx, args[0])
	if err != nil {
		return err
	}
	defer body.Close()

	candidates, err := page.Scan(body, base)
	if err != nil {
		return err
	}
	slog.Info("Page scanned", "source", args[0], "candidates", len(candidates))

	app, err := control.NewApp(cfg, control.WithRunID(runID))
	if err != nil {
		return err
	}
	defer app.Close()

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.IsVideo() {
			slog.Debug("Skipping video link", "href", c.AnchorHref)
			continue
		}
		ids = append(ids, c.ID)
		app.Engine().Submit(ctx, c.Request())
	}
	app.Engine().Wait()

	return printInstances(cmd.OutOrStdout(), lookup(app.Engine(), ids))
}

func openPage(ctx context.Context, src string) (io.ReadCloser, string, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}
		if cfg.Fetch.UserAgent != "" {
			req.Header.Set("User-Agent", cfg.Fetch.UserAgent)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("fetch page: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", fmt.Errorf("fetch page: http %d", resp.StatusCode)
		}
		base := scanBase
		if base == "" {
			base = resp.Request.URL.String()
		}
		return resp.Body, base, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, "", fmt.Errorf("open page: %w", err)
	}
	return f, scanBase, nil
}
