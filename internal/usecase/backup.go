package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"BTCPulse/pkg/logger"
	"BTCPulse/pkg/util"
)

// BackupLayout names backup folders, e.g. 20240131_040000.
const BackupLayout = "20060102_150405"

const manifestFile = "manifest.json"

type BackupManifest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Source    string    `json:"source"`
	Files     []string  `json:"files"`
	Bytes     int64     `json:"bytes"`
}

type BackupReport struct {
	Dir      string
	Manifest BackupManifest
	Pruned   []string
}

func (r BackupReport) Summary() string {
	return fmt.Sprintf("backup %s: %d files, %s, pruned %d",
		r.Dir, len(r.Manifest.Files), humanize.Bytes(uint64(r.Manifest.Bytes)), len(r.Pruned))
}

// BackupUseCase snapshots the data directory's JSON files and prunes old snapshots.
type BackupUseCase struct {
	dataDir   string
	backupDir string
	retention time.Duration
	now       func() time.Time
	log       *logger.Logger
}

func NewBackupUseCase(dataDir, backupDir string, retention time.Duration, l *logger.Logger) *BackupUseCase {
	if l == nil {
		l = logger.Nop()
	}
	return &BackupUseCase{dataDir: dataDir, backupDir: backupDir, retention: retention, now: time.Now, log: l}
}

// Run copies dataDir/*.json into backupDir/<timestamp> and removes snapshots
// whose folder date is older than the retention.
func (uc *BackupUseCase) Run(ctx context.Context) (BackupReport, error) {
	now := uc.now()
	dest := filepath.Join(uc.backupDir, now.Format(BackupLayout))
	rep := BackupReport{Dir: dest, Manifest: BackupManifest{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Source:    uc.dataDir,
		Files:     []string{},
	}}

	files, err := filepath.Glob(filepath.Join(uc.dataDir, "*.json"))
	if err != nil {
		return rep, fmt.Errorf("list data files: %w", err)
	}
	sort.Strings(files)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return rep, fmt.Errorf("create backup dir: %w", err)
	}

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := copyFile(src, filepath.Join(dest, filepath.Base(src)))
		if err != nil {
			return rep, err
		}
		rep.Manifest.Files = append(rep.Manifest.Files, filepath.Base(src))
		rep.Manifest.Bytes += n
	}
	if err := util.WriteJSONAtomic(filepath.Join(dest, manifestFile), rep.Manifest); err != nil {
		return rep, fmt.Errorf("write manifest: %w", err)
	}
	uc.log.Info("backup written",
		logger.String("dir", dest),
		logger.Int("files", len(rep.Manifest.Files)),
		logger.String("size", humanize.Bytes(uint64(rep.Manifest.Bytes))),
	)

	pruned, err := uc.prune(now)
	rep.Pruned = pruned
	if err != nil {
		return rep, fmt.Errorf("prune backups: %w", err)
	}
	return rep, nil
}

func (uc *BackupUseCase) prune(now time.Time) ([]string, error) {
	entries, err := os.ReadDir(uc.backupDir)
	if err != nil {
		return nil, err
	}
	cutoff := util.StartOfDay(now.Add(-uc.retention))
	var pruned []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		day, _, _ := strings.Cut(e.Name(), "_")
		t, err := time.ParseInLocation("20060102", day, time.UTC)
		if err != nil || !t.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(uc.backupDir, e.Name())); err != nil {
			return pruned, err
		}
		pruned = append(pruned, e.Name())
		uc.log.Info("old backup removed", logger.String("dir", e.Name()), logger.String("age", humanize.RelTime(t, now, "ago", "from now")))
	}
	return pruned, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", src, err)
	}
	return n, nil
}
