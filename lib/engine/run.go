// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/archivist/lib/archive"
	"github.com/bureau-foundation/archivist/lib/checkpoint"
	"github.com/bureau-foundation/archivist/lib/extraction"
	"github.com/bureau-foundation/archivist/lib/metadata"
	"github.com/bureau-foundation/archivist/lib/security"
)

// fileBatchSize is how many stored files accumulate before their
// records are committed in one transaction.
const fileBatchSize = 128

// run is the state of one Import. Everything except the stored-file
// queue is touched only by the traversal goroutine.
type run struct {
	engine     *Engine
	policy     Policy
	detector   *security.Detector
	result     *Result
	checkpoint *checkpoint.Checkpoint
	logger     *slog.Logger
	stack      *extraction.Stack
	dirs       *dirBatcher

	// totalBytes and totalFiles are running totals across the whole
	// tree, seeded from the checkpoint on resume.
	totalBytes int64
	totalFiles int64

	rootHash string
}

// drain pops items until the stack is empty or a fatal error occurs.
// A depth limit or violation on one branch never stops its siblings.
func (r *run) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, ok := r.stack.Pop()
		if !ok {
			return nil
		}
		if err := r.process(ctx, item); err != nil {
			return err
		}
	}
}

func (r *run) process(ctx context.Context, item extraction.Item) error {
	record, ok, err := r.recordArchive(ctx, item)
	if err != nil || !ok {
		return err
	}
	archiveID := record.ID
	if extraction.IsDepthLimitReached(item.Depth, r.policy.MaxDepth) {
		r.skipAtDepthLimit(item)
		return nil
	}

	r.result.MaxDepth = max(r.result.MaxDepth, item.Depth)
	r.checkpoint.ObserveDepth(item.Depth)

	status, extractErr := r.extract(ctx, item, record)
	if extractErr != nil {
		status = metadata.StatusFailed
	}
	// Recorded with a fresh context so a cancelled run still marks
	// the archive failed.
	if err := r.engine.workspace.Metadata.UpdateArchiveStatus(context.WithoutCancel(ctx), archiveID, status); err != nil {
		return errors.Join(extractErr, fmt.Errorf("engine: updating status of %s: %w", item.VirtualPath, err))
	}
	r.result.ArchivesProcessed++
	return extractErr
}

// recordArchive stores the archive bytes and inserts its pending row.
// The archive stays pending until its extraction finishes, so a tree
// cut short by a crash or a violation is marked by its status. ok is
// false when the archive could not be stored; that is a warning, not a
// run failure.
func (r *run) recordArchive(ctx context.Context, item extraction.Item) (record metadata.Archive, ok bool, err error) {
	hash := r.rootHash
	if item.Depth > 0 {
		hash, err = r.engine.workspace.Objects.StoreFile(ctx, item.ArchivePath)
		if err != nil {
			r.result.warn(ArchiveError, item.VirtualPath, "storing nested archive: %v", err)
			r.checkpoint.RecordError()
			return metadata.Archive{}, false, nil
		}
	}
	info, err := os.Stat(item.ArchivePath)
	if err != nil {
		r.result.warn(ArchiveError, item.VirtualPath, "stat: %v", err)
		return metadata.Archive{}, false, nil
	}
	format := archive.DetectName(item.ArchivePath)
	if format == archive.FormatUnknown {
		format, _ = archive.Detect(item.ArchivePath)
	}

	record = metadata.Archive{
		Hash:            hash,
		VirtualPath:     item.VirtualPath,
		OriginalName:    filepath.Base(item.ArchivePath),
		Type:            format.String(),
		Size:            info.Size(),
		ParentArchiveID: item.ParentArchiveID,
		Depth:           item.Depth,
		Status:          metadata.StatusPending,
	}
	record.ID, err = r.engine.workspace.Metadata.InsertArchive(ctx, record)
	if err != nil {
		return metadata.Archive{}, false, fmt.Errorf("engine: recording archive %s: %w", item.VirtualPath, err)
	}
	return record, true, nil
}

func (r *run) skipAtDepthLimit(item extraction.Item) {
	r.result.DepthSkips++
	r.result.warn(DepthLimitReached, item.VirtualPath,
		"archive at depth %d not expanded (max_depth %d)", item.Depth, r.policy.MaxDepth)
	r.logger.Info("depth limit reached",
		"virtual_path", item.VirtualPath,
		"depth", item.Depth,
		"max_depth", r.policy.MaxDepth,
	)
}

// extract expands one archive into item.TargetDir. The returned error
// is fatal to the run; everything else is reported through warnings
// and the returned status.
func (r *run) extract(ctx context.Context, item extraction.Item, parent metadata.Archive) (metadata.ArchiveStatus, error) {
	archiveID := parent.ID
	reader, err := archive.Open(item.ArchivePath, archive.FormatUnknown)
	if err != nil {
		r.result.warn(ArchiveError, item.VirtualPath, "opening: %v", err)
		r.checkpoint.RecordError()
		return metadata.StatusFailed, nil
	}
	defer reader.Close()

	info, err := os.Stat(item.ArchivePath)
	if err != nil {
		r.result.warn(ArchiveError, item.VirtualPath, "stat: %v", err)
		return metadata.StatusFailed, nil
	}
	archiveSize := info.Size()

	if lister, ok := reader.(archive.Lister); ok {
		entries := lister.Entries()
		r.scanListing(item, entries)
		r.queueDirectories(item, entries)
	}

	stored := &storedFiles{}
	workers := newPool(r.policy.MaxParallelFiles)
	status := metadata.StatusCompleted
	// Entries resolving to a path already written in this archive would
	// overwrite it while a worker may still be storing it.
	targets := make(map[string]string)
	startTotal := r.totalBytes
	var archiveBytes int64
	var fatal error

entries:
	for {
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.result.warn(ArchiveError, item.VirtualPath, "reading entry: %v", err)
			r.checkpoint.RecordError()
			status = metadata.StatusFailed
			break
		}

		switch entry.Type {
		case archive.EntryDir:
			if resolved, ok := r.resolve(item, entry.Name); ok {
				if err := r.dirs.Add(resolved.Path); err != nil {
					r.result.warn(FileSkipped, item.VirtualPath+"/"+resolved.Relative, "%v", err)
				}
			}
			continue
		case archive.EntrySymlink, archive.EntryOther:
			r.result.warn(FileSkipped, item.VirtualPath+"/"+entry.Name, "%s entries are not extracted", entry.Type)
			continue
		}

		resolved, ok := r.resolve(item, entry.Name)
		if !ok {
			continue
		}
		virtualPath := item.VirtualPath + "/" + resolved.Relative
		if first, seen := targets[resolved.Path]; seen {
			r.result.warn(FileSkipped, virtualPath, "duplicate of entry %q", first)
			continue
		}
		targets[resolved.Path] = entry.Name

		if r.checkpoint.IsExtracted(resolved.Path) {
			r.result.Resumed++
			continue
		}
		if entry.Size >= 0 {
			if violation := r.check(item, entry, entry.Size, archiveSize, archiveBytes+entry.Size, startTotal); violation != nil {
				if err := r.halt(item, virtualPath, violation); err != nil {
					fatal = err
				}
				status = metadata.StatusFailed
				break entries
			}
		}
		if entry.Size > r.policy.MaxFileSize {
			r.result.warn(FileSkipped, virtualPath, "declared size %d exceeds max_file_size %d", entry.Size, r.policy.MaxFileSize)
			if entry.CompressedSize < 0 {
				// Skipping still decompresses the entry.
				archiveBytes += entry.Size
			}
			continue
		}

		if err := r.dirs.Ensure(filepath.Dir(resolved.Path)); err != nil {
			r.result.warn(FileSkipped, virtualPath, "%v", err)
			continue
		}
		written, err := r.materialize(reader, resolved.Path)
		if err != nil {
			os.Remove(resolved.Path)
			r.result.warn(FileSkipped, virtualPath, "writing: %v", err)
			r.checkpoint.RecordError()
			continue
		}
		archiveBytes += written
		if violation := r.check(item, entry, written, archiveSize, archiveBytes, startTotal); violation != nil {
			os.Remove(resolved.Path)
			if err := r.halt(item, virtualPath, violation); err != nil {
				fatal = err
			}
			status = metadata.StatusFailed
			break
		}
		if written > r.policy.MaxFileSize {
			os.Remove(resolved.Path)
			r.result.warn(FileSkipped, virtualPath, "size exceeds max_file_size %d", r.policy.MaxFileSize)
			continue
		}
		r.totalBytes += written

		if archive.DetectName(entry.Name) != archive.FormatUnknown {
			ratio := security.CompressionRatio(compressedSize(entry, archiveSize), written)
			if err := r.pushNested(ctx, item, archiveID, resolved, virtualPath, ratio); err != nil {
				fatal = err
				break
			}
			continue
		}

		task := fileTask{
			path:        resolved.Path,
			virtualPath: virtualPath,
			name:        path.Base(resolved.Relative),
			size:        written,
			modTime:     entry.ModTime,
			depth:       item.Depth,
			archiveID:   archiveID,
		}
		workers.Go(func() { stored.add(r.store(ctx, task)) })

		if stored.len() >= fileBatchSize {
			if err := r.commit(ctx, parent, stored); err != nil {
				fatal = err
				break
			}
		}
	}

	workers.Wait()
	if err := r.dirs.Flush(); err != nil {
		r.result.warn(FileSkipped, item.VirtualPath, "%v", err)
	}
	if err := r.commit(context.WithoutCancel(ctx), parent, stored); err != nil {
		return metadata.StatusFailed, errors.Join(fatal, err)
	}
	return status, fatal
}

// resolve maps an entry name to its target path, recording a warning
// when the name is rejected or shortened.
func (r *run) resolve(item extraction.Item, name string) (archive.Resolved, bool) {
	resolved, err := r.policy.Paths.Resolve(item.TargetDir, name)
	if err != nil {
		r.result.warn(PathResolutionError, item.VirtualPath+"/"+name, "%v", err)
		return archive.Resolved{}, false
	}
	if resolved.Shortened {
		r.result.warn(PathShortened, item.VirtualPath+"/"+name, "stored as %s", resolved.Relative)
	}
	return resolved, true
}

// scanListing runs the pre-extraction pattern scan over a directory
// listing. Findings are advisory.
func (r *run) scanListing(item extraction.Item, entries []archive.Entry) {
	scan := make([]security.Entry, 0, len(entries))
	for _, entry := range entries {
		scan = append(scan, security.Entry{
			Name:             entry.Name,
			CompressedSize:   entry.CompressedSize,
			UncompressedSize: entry.Size,
			IsDir:            entry.Type == archive.EntryDir,
		})
	}
	for _, warning := range r.detector.DetectSuspiciousPatterns(item.VirtualPath, scan) {
		target := warning.Path
		if target != item.VirtualPath {
			target = item.VirtualPath + "/" + target
		}
		r.result.warn(HighCompressionRatio, target, "%s", warning.Message)
		r.logger.Warn("suspicious archive pattern",
			"virtual_path", target,
			"message", warning.Message,
		)
	}
}

// queueDirectories batches creation of every directory the listing
// will need before any content is read.
func (r *run) queueDirectories(item extraction.Item, entries []archive.Entry) {
	for _, entry := range entries {
		if entry.Type != archive.EntryDir && entry.Type != archive.EntryFile {
			continue
		}
		resolved, err := r.policy.Paths.Resolve(item.TargetDir, entry.Name)
		if err != nil {
			continue
		}
		dir := filepath.Dir(resolved.Path)
		if entry.Type == archive.EntryDir {
			dir = resolved.Path
		}
		if err := r.dirs.Add(dir); err != nil {
			r.logger.Warn("creating directories", "virtual_path", item.VirtualPath, "error", err)
		}
	}
}

// compressedSize is the compressed side of an entry's ratio. Entries
// inside a single compressed stream have no size of their own, so the
// whole archive stands in for them.
func compressedSize(entry *archive.Entry, archiveSize int64) int64 {
	if entry.CompressedSize >= 0 {
		return entry.CompressedSize
	}
	return archiveSize
}

// check evaluates one entry of size bytes. Entries with their own
// compressed size are judged alone. Stream entries have none, so the
// archive's output so far is judged against its size on disk, and the
// cumulative total is taken from before the archive started so its
// output is not counted twice.
func (r *run) check(item extraction.Item, entry *archive.Entry, size, archiveSize, archiveBytes, startTotal int64) *security.Violation {
	uncompressed := size
	cumulative := r.totalBytes
	if entry.CompressedSize < 0 {
		uncompressed = archiveBytes
		cumulative = startTotal
	}
	if halt, violation := r.detector.Evaluate(security.Check{
		CompressedSize:   compressedSize(entry, archiveSize),
		UncompressedSize: uncompressed,
		Depth:            item.Depth,
		CumulativeSize:   cumulative,
		AncestorRatios:   item.Context.RatioChain,
	}); halt {
		return violation
	}
	if r.totalBytes+size > r.policy.MaxTotalSize {
		return &security.Violation{
			Kind:     security.CumulativeSizeExceeded,
			Severity: security.Critical,
			Message: fmt.Sprintf("extracted total %d would exceed max_total_size %d",
				r.totalBytes+size, r.policy.MaxTotalSize),
			Metrics:        security.NewMetrics(compressedSize(entry, archiveSize), size, item.Depth),
			CumulativeSize: r.totalBytes,
		}
	}
	return nil
}

// halt records a violation. It returns an error only when the
// violation is critical and the engine aborts on critical violations.
func (r *run) halt(item extraction.Item, virtualPath string, violation *security.Violation) error {
	r.result.Violations = append(r.result.Violations, violation)
	r.result.warn(SecurityEvent, virtualPath, "%s", violation.Message)
	r.checkpoint.RecordError()
	r.logger.Warn("security violation",
		"virtual_path", virtualPath,
		"archive", item.VirtualPath,
		"kind", violation.Kind.String(),
		"severity", violation.Severity.String(),
		"compressed_size", violation.Metrics.CompressedSize,
		"uncompressed_size", violation.Metrics.UncompressedSize,
		"ratio", violation.Metrics.Ratio,
		"depth", violation.Metrics.Depth,
		"risk_score", violation.Metrics.RiskScore,
		"cumulative_size", violation.CumulativeSize,
	)
	if violation.IsCritical() && r.engine.abortOnCritical {
		return fmt.Errorf("engine: aborting at %s: %w", virtualPath, violation)
	}
	return nil
}

// materialize writes the current entry to target. It stops one byte
// past max_file_size so the caller can tell an oversized entry from
// one that fits.
func (r *run) materialize(reader archive.Reader, target string) (int64, error) {
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	buffer := make([]byte, r.policy.BufferSize)
	written, err := io.CopyBuffer(file, io.LimitReader(reader, r.policy.MaxFileSize+1), buffer)
	closeErr := file.Close()
	if err != nil {
		return written, err
	}
	return written, closeErr
}

// pushNested queues a nested archive for expansion, or records it
// unexpanded when its depth is at the limit.
func (r *run) pushNested(ctx context.Context, parent extraction.Item, parentID int64, resolved archive.Resolved, virtualPath string, ratio float64) error {
	base := filepath.Base(resolved.Path)
	stem := archive.TrimSuffix(base)
	if stem == "" {
		stem = base + ".d"
	}
	child := extraction.Item{
		ArchivePath:     resolved.Path,
		TargetDir:       filepath.Join(filepath.Dir(resolved.Path), stem),
		VirtualPath:     virtualPath,
		Depth:           parent.Depth + 1,
		ParentArchiveID: parentID,
		Context: parent.Context.
			WithProgress(r.totalBytes, r.totalFiles).
			CreateChild(parent.VirtualPath).
			WithRatio(ratio),
	}

	if extraction.IsDepthLimitReached(child.Depth, r.policy.MaxDepth) {
		if _, _, err := r.recordArchive(ctx, child); err != nil {
			return err
		}
		r.skipAtDepthLimit(child)
		return nil
	}
	if err := r.stack.Push(child); err != nil {
		return fmt.Errorf("engine: queueing %s: %w", virtualPath, err)
	}
	return nil
}

type fileTask struct {
	path        string
	virtualPath string
	name        string
	size        int64
	modTime     time.Time
	depth       int
	archiveID   int64
}

type storeOutcome struct {
	task   fileTask
	record metadata.File
	err    error
}

// store copies one materialized file into the object store and builds
// its record. Runs on a worker goroutine.
func (r *run) store(ctx context.Context, task fileTask) storeOutcome {
	hash, err := r.engine.workspace.Objects.StoreFile(ctx, task.path)
	if err != nil {
		return storeOutcome{task: task, err: err}
	}
	mimeType, err := sniffMIME(task.path)
	if err != nil {
		return storeOutcome{task: task, err: err}
	}
	return storeOutcome{
		task: task,
		record: metadata.File{
			Hash:            hash,
			VirtualPath:     task.virtualPath,
			OriginalName:    task.name,
			Size:            task.size,
			ModifiedTime:    task.modTime,
			MIMEType:        mimeType,
			ParentArchiveID: task.archiveID,
			Depth:           task.depth,
		},
	}
}

func sniffMIME(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	head := make([]byte, archive.SniffSize)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	return archive.DetectMIME(head[:n]), nil
}

// storedFiles collects worker outcomes for the traversal goroutine.
type storedFiles struct {
	mu       sync.Mutex
	outcomes []storeOutcome
}

func (s *storedFiles) add(outcome storeOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func (s *storedFiles) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

func (s *storedFiles) take() []storeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcomes := s.outcomes
	s.outcomes = nil
	return outcomes
}

// commit inserts the finished files together with their parent
// archive row in one transaction, then marks them in the checkpoint. A
// file whose store failed is a warning.
func (r *run) commit(ctx context.Context, parent metadata.Archive, stored *storedFiles) error {
	outcomes := stored.take()
	if len(outcomes) == 0 {
		return nil
	}
	records := make([]metadata.File, 0, len(outcomes))
	var committed []storeOutcome
	for _, outcome := range outcomes {
		if outcome.err != nil {
			r.result.warn(FileSkipped, outcome.task.virtualPath, "storing: %v", outcome.err)
			r.checkpoint.RecordError()
			r.logger.Warn("storing file failed",
				"virtual_path", outcome.task.virtualPath,
				"error", outcome.err,
			)
			continue
		}
		records = append(records, outcome.record)
		committed = append(committed, outcome)
	}
	if len(records) == 0 {
		return nil
	}
	if _, _, err := r.engine.workspace.Metadata.InsertArchiveWithFiles(ctx, parent, records); err != nil {
		return fmt.Errorf("engine: recording %d files: %w", len(records), err)
	}

	for _, outcome := range committed {
		r.checkpoint.MarkExtracted(outcome.task.path, outcome.task.size)
		r.result.FilesExtracted++
		r.result.BytesExtracted += outcome.task.size
		r.totalFiles++
	}
	if _, err := r.engine.workspace.Checkpoints.SaveIfDue(r.checkpoint); err != nil {
		r.logger.Warn("saving checkpoint", "error", err)
	}
	return nil
}
