package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// sampleDoc seeds a fresh docs directory so the index is never empty on
// first boot.
const sampleDoc = `## Webhook SSL Configuration
When migrating to headless, SSL certificates must be renewed.
Error: SSLHandshakeError indicates certificate mismatch.
Fix: Renew cert at Settings > Webhooks > Advanced.
`

// IngestDir reads every markdown file under dir and ingests it, one
// source per file. A missing directory is created and seeded with a
// sample document rather than treated as an error.
func (ix *Index) IngestDir(ctx context.Context, dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create docs dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "webhooks.md"), []byte(sampleDoc), 0o644); err != nil {
			return 0, fmt.Errorf("seed docs dir: %w", err)
		}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return 0, fmt.Errorf("list docs: %w", err)
	}
	sort.Strings(files)

	total := 0
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			ix.logger.Warn("skipping unreadable doc", zap.String("file", file), zap.Error(err))
			continue
		}
		count := ix.IngestSource(ctx, filepath.Base(file), string(content))
		total += count
	}

	ix.logger.Info("documentation ingested", zap.String("dir", dir), zap.Int("chunks", total))
	return total, nil
}
