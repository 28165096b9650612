package offheap

import (
	"errors"
	"fmt"
	"os"

	"github.com/andreyvit/offheap/engine"
	"github.com/andreyvit/offheap/logger"
)

const dirPerm = 0o755

// resource owns the engine and directory of one collection. Registry
// closers hold resources, never collections, so that a collection can
// become unreachable while its storage is still open.
type resource struct {
	id         uint64
	dir        string
	persistent bool
	open       engine.Opener
	ecfg       engine.Config
	eng        engine.Engine
	log        logger.Logger
}

func newResource(id uint64, dir string, cfg *Config, cmp *engine.Comparer) *resource {
	log := cfg.log().With("collection", id)
	return &resource{
		id:         id,
		dir:        dir,
		persistent: cfg.Persistent,
		open:       cfg.opener(cmp != nil),
		ecfg: engine.Config{
			Dir:       dir,
			CacheSize: cfg.CacheSize,
			Comparer:  cmp,
			Logger:    log,
		},
		log: log,
	}
}

// start opens the engine. With wipe, any previous content of the directory
// is discarded first.
func (r *resource) start(wipe bool) error {
	if wipe {
		if err := os.RemoveAll(r.dir); err != nil {
			return fmt.Errorf("%w: wipe %s: %w", ErrEngine, r.dir, err)
		}
	}
	if err := os.MkdirAll(r.dir, dirPerm); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrEngine, r.dir, err)
	}
	eng, err := r.open(r.ecfg)
	if err != nil {
		if !r.persistent {
			os.RemoveAll(r.dir)
		}
		return engineErr(err)
	}
	r.eng = eng
	r.log.Debug("opened", "dir", r.dir, "persistent", r.persistent)
	return nil
}

// shutdown closes the engine and, for non-persistent collections, removes
// the directory. Calling it again is a no-op.
func (r *resource) shutdown() error {
	eng := r.eng
	if eng == nil {
		return nil
	}
	r.eng = nil
	var errs []error
	if err := eng.Close(); err != nil && !errors.Is(err, engine.ErrClosed) {
		errs = append(errs, engineErr(err))
	}
	if !r.persistent {
		if err := os.RemoveAll(r.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", r.dir, err))
		}
	}
	r.log.Debug("closed", "dir", r.dir)
	return errors.Join(errs...)
}

func (r *resource) closed() bool {
	return r.eng == nil
}
