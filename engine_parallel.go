package vsense

import (
	"context"
	"fmt"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/jward/vsense/internal/analysis"
	"github.com/jward/vsense/internal/parser"
	"github.com/jward/vsense/internal/store"
)

// workers returns the pool size for n items.
func (e *Engine) workers(n int) int {
	if !e.useParallel {
		return 1
	}
	return max(1, min(goruntime.NumCPU(), n))
}

// pool runs fn over n items with the Engine's worker count. fn must only
// touch item i.
func (e *Engine) pool(ctx context.Context, n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workCh := make(chan int, n)
	for i := range n {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for range e.workers(n) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					continue
				}
				fn(i)
			}
		}()
	}
	wg.Wait()
}

// parseAll parses sources concurrently. Results keep the input order.
func (e *Engine) parseAll(ctx context.Context, sources []source) []parsed {
	results := make([]parsed, len(sources))
	e.pool(ctx, len(sources), func(i int) {
		s := sources[i]
		f, errs := parser.ParseFile(s.path, e.moduleOf(s.path), s.src)
		results[i] = parsed{source: s, file: f, errs: errs}
	})
	if ctx.Err() != nil {
		return nil
	}
	return results
}

// extractItem holds everything a parallel extraction worker needs.
type extractItem struct {
	path   string
	fileID int64
	batch  *store.BatchedStore

	// Signature hashes of the file's declarations before the change.
	oldSigs map[string]bool
	err     error
}

// persist writes the rows of every source whose persisted hash differs
// from its content, in three phases:
//
//	Phase A (serial):   Capture old signatures and dependents, clear old rows.
//	Phase B (parallel): Extract into one BatchedStore per file.
//	Phase C (serial):   Commit batches and grow the blast radius.
func (e *Engine) persist(ctx context.Context, an *analysis.Analyzer, sources []source) error {
	// ---- Phase A: Serial file preparation ----
	var items []*extractItem
	for _, s := range sources {
		item, skip, err := e.prepareFile(an, s)
		if err != nil {
			return fmt.Errorf("vsense: prepare %s: %w", s.path, err)
		}
		if !skip {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil
	}

	// ---- Phase B: Parallel extraction ----
	e.pool(ctx, len(items), func(i int) {
		item := items[i]
		f := an.Snapshot().File(item.path)
		item.err = extractFile(an, f, item.fileID, item.batch)
	})
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("vsense: %w", err)
	}

	// ---- Phase C: Serial commit ----
	var errs []error
	for _, item := range items {
		if item.err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", item.path, item.err))
			continue
		}
		if err := e.store.CommitBatch(item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", item.path, err))
			continue
		}
		e.blastRadius[item.fileID] = true
		if !sameSignatures(item.oldSigs, item.batch.Declarations) {
			f, err := e.store.FileByID(item.fileID)
			if err == nil && f != nil {
				err = e.addDependents(f, true)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("blast radius %s: %w", item.path, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("vsense: persisting had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile does Phase A work for one source. skip means the persisted
// rows already match its content.
func (e *Engine) prepareFile(an *analysis.Analyzer, s source) (*extractItem, bool, error) {
	f := an.Snapshot().File(s.path)
	if f == nil {
		return nil, true, nil
	}
	existing, err := e.store.FileByPath(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == s.hash && existing.Module == f.Module {
		return nil, true, nil
	}

	row := &store.File{
		Path:        s.path,
		Module:      f.Module,
		Hash:        s.hash,
		LineCount:   f.LineCount(),
		ParseErrors: len(e.errs[s.path]),
		LastIndexed: time.Now(),
	}

	item := &extractItem{path: s.path, batch: store.NewBatchedStore()}
	if existing == nil {
		if _, err := e.store.InsertFile(row); err != nil {
			return nil, false, fmt.Errorf("insert file: %w", err)
		}
		item.fileID = row.ID
		return item, false, nil
	}

	// Dependents must be read before the old rows and their resolutions go.
	old, err := e.store.DeclarationsByFile(existing.ID)
	if err != nil {
		return nil, false, fmt.Errorf("capture old declarations: %w", err)
	}
	item.oldSigs = make(map[string]bool, len(old))
	for _, d := range old {
		item.oldSigs[d.SignatureHash] = true
	}
	if err := e.addDependents(existing, existing.Module != f.Module); err != nil {
		return nil, false, fmt.Errorf("blast radius: %w", err)
	}
	if err := e.store.DeleteFileData(existing.ID); err != nil {
		return nil, false, fmt.Errorf("delete old data: %w", err)
	}
	row.ID = existing.ID
	if err := e.store.UpdateFile(row); err != nil {
		return nil, false, fmt.Errorf("update file: %w", err)
	}
	item.fileID = existing.ID
	return item, false, nil
}

// addDependents adds to the blast radius the files whose resolved
// references point into f. When f's declarations changed shape, files
// that import its module or share it are added too, since names they
// could not resolve before may now resolve.
func (e *Engine) addDependents(f *store.File, declarationsChanged bool) error {
	ids, err := e.store.FilesReferencingFile(f.ID)
	if err != nil {
		return err
	}
	if declarationsChanged {
		importers, err := e.store.FilesImportingSource(f.Module)
		if err != nil {
			return err
		}
		ids = append(ids, importers...)
		siblings, err := e.store.FilesByModule(f.Module)
		if err != nil {
			return err
		}
		for _, s := range siblings {
			ids = append(ids, s.ID)
		}
	}
	for _, id := range ids {
		e.blastRadius[id] = true
	}
	return nil
}

// sameSignatures reports whether a file's declarations kept the same set
// of signature hashes.
func sameSignatures(old map[string]bool, current []store.Declaration) bool {
	if old == nil {
		return false
	}
	now := make(map[string]bool, len(current))
	for _, d := range current {
		now[d.SignatureHash] = true
	}
	if len(now) != len(old) {
		return false
	}
	for h := range now {
		if !old[h] {
			return false
		}
	}
	return true
}
