// Package backup packs the active orders and their images into a zip archive
// and restores such archives by merging them into the live store.
package backup

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"order-ledger/internal/core"
	"order-ledger/internal/imagestore"
)

const (
	ordersEntry = core.OrdersDocument
	imagesDir   = "Images"

	// copyLimit bounds concurrent image copies during restore.
	copyLimit = 4
)

// Stage names the restore step that failed.
type Stage string

const (
	StageOpen   Stage = "open"
	StageLocate Stage = "locate"
	StageDecode Stage = "decode"
	StageImages Stage = "images"
)

var stageMessages = map[Stage]string{
	StageOpen:   "备份文件无法打开",
	StageLocate: "在备份文件中找不到订单数据(app_orders.json)",
	StageDecode: "订单数据无法解析",
	StageImages: "图片恢复失败",
}

// RestoreError reports which stage of a restore failed. Nothing has been
// merged into the store when it is returned.
type RestoreError struct {
	Stage Stage
	Err   error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("%s: %v", stageMessages[e.Stage], e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// ErrOrdersMissing is wrapped by a StageLocate RestoreError.
var ErrOrdersMissing = errors.New("app_orders.json not found in archive")

// Images is the part of the image store a backup touches.
type Images interface {
	Open(id string) (io.ReadCloser, error)
	Put(id string, r io.Reader) error
	Has(id string) bool
}

// FileName names an archive created at now.
func FileName(now time.Time) string {
	return "商家记账本备份_" + now.Format("2006-01-02_15-04-05") + ".zip"
}

// WriteSummary describes a written archive.
type WriteSummary struct {
	Orders        int `json:"orders"`
	Images        int `json:"images"`
	MissingImages int `json:"missingImages"`
}

// Write encodes orders as app_orders.json and adds every referenced image
// under Images/<id>.jpg. Images missing from the store are skipped.
func Write(ctx context.Context, w io.Writer, orders []core.Order, images Images, logger *zap.Logger) (WriteSummary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var sum WriteSummary

	doc, err := core.EncodeOrders(orders)
	if err != nil {
		return sum, fmt.Errorf("failed to encode orders: %w", err)
	}

	zw := zip.NewWriter(w)
	entry, err := zw.Create(ordersEntry)
	if err != nil {
		return sum, fmt.Errorf("failed to add %s: %w", ordersEntry, err)
	}
	if _, err := entry.Write(doc); err != nil {
		return sum, fmt.Errorf("failed to write %s: %w", ordersEntry, err)
	}
	sum.Orders = len(orders)

	for _, id := range referencedImages(orders) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		added, err := addImage(zw, images, id)
		if err != nil {
			return sum, err
		}
		if !added {
			sum.MissingImages++
			logger.Warn("image missing from store, not backed up", zap.String("image_id", id))
			continue
		}
		sum.Images++
	}

	if err := zw.Close(); err != nil {
		return sum, fmt.Errorf("failed to finish archive: %w", err)
	}
	return sum, nil
}

func addImage(zw *zip.Writer, images Images, id string) (bool, error) {
	src, err := images.Open(id)
	if err != nil {
		if errors.Is(err, imagestore.ErrImageNotFound) || errors.Is(err, imagestore.ErrInvalidID) {
			return false, nil
		}
		return false, err
	}
	defer src.Close()

	dst, err := zw.Create(path.Join(imagesDir, id+".jpg"))
	if err != nil {
		return false, fmt.Errorf("failed to add image %s: %w", id, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return false, fmt.Errorf("failed to copy image %s: %w", id, err)
	}
	return true, nil
}

func referencedImages(orders []core.Order) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, o := range orders {
		for _, id := range o.ImageIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ── Restore ───────────────────────────────────────────────────────────────────

// RestoreSummary reports the outcome of a successful restore.
type RestoreSummary struct {
	core.MergeResult
	ImagesCopied  int `json:"imagesCopied"`
	ImagesSkipped int `json:"imagesSkipped"`
}

// Merger receives the decoded orders.
type Merger interface {
	MergeImported(ctx context.Context, candidates []core.Order) core.MergeResult
}

// Restore reads an archive, decodes app_orders.json wherever it sits, copies
// images the store does not already hold, then merges the orders. Any
// failure before the merge leaves the store untouched.
func Restore(ctx context.Context, r io.ReaderAt, size int64, images Images, store Merger, logger *zap.Logger) (RestoreSummary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var sum RestoreSummary

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return sum, &RestoreError{Stage: StageOpen, Err: err}
	}

	ordersFile := findEntry(zr, ordersEntry)
	if ordersFile == nil {
		return sum, &RestoreError{Stage: StageLocate, Err: ErrOrdersMissing}
	}
	orders, err := decodeEntry(ordersFile)
	if err != nil {
		return sum, &RestoreError{Stage: StageDecode, Err: err}
	}

	// Images live next to app_orders.json.
	prefix := path.Join(path.Dir(ordersFile.Name), imagesDir) + "/"
	if path.Dir(ordersFile.Name) == "." {
		prefix = imagesDir + "/"
	}
	copied, skipped, err := copyImages(ctx, zr, prefix, images)
	if err != nil {
		return sum, &RestoreError{Stage: StageImages, Err: err}
	}
	sum.ImagesCopied, sum.ImagesSkipped = copied, skipped

	sum.MergeResult = store.MergeImported(ctx, orders)
	logger.Info("backup restored",
		zap.Int("imported", sum.Imported),
		zap.Int("skipped", sum.Skipped),
		zap.Int("images_copied", copied))
	return sum, nil
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(f.Name) == name && !isHidden(f.Name) {
			return f
		}
	}
	return nil
}

// isHidden skips macOS resource forks such as __MACOSX/._app_orders.json.
func isHidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || part == "__MACOSX" {
			return true
		}
	}
	return false
}

func decodeEntry(f *zip.File) ([]core.Order, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return core.DecodeOrders(data)
}

func copyImages(ctx context.Context, zr *zip.Reader, prefix string, images Images) (copied, skipped int, err error) {
	var todo []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || isHidden(f.Name) || path.Dir(f.Name)+"/" != prefix {
			continue
		}
		id, ok := imagestore.IDFromFileName(f.Name)
		if !ok {
			continue
		}
		if images.Has(id) {
			skipped++
			continue
		}
		todo = append(todo, f)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyLimit)
	for _, f := range todo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, _ := imagestore.IDFromFileName(f.Name)
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", f.Name, err)
			}
			defer rc.Close()
			if err := images.Put(id, rc); err != nil {
				return fmt.Errorf("failed to restore image %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, skipped, err
	}
	return len(todo), skipped, nil
}
