package parallel

import "sync"

// blockPool recycles image-block memory between passes.
//
// Blocks are pooled per byte size; a grid reconfigured to another tile size
// or sample length simply draws from a different bucket.
//
// Thread safety: blockPool is safe for concurrent use.
type blockPool struct {
	pools sync.Map // int -> *sync.Pool
}

// get returns a zeroed block of exactly size bytes.
func (p *blockPool) get(size int) []byte {
	if size <= 0 {
		return nil
	}
	bp := p.bucket(size).Get().(*[]byte)
	b := *bp
	clear(b)
	return b
}

// put returns a block to its bucket. Nil and empty blocks are ignored.
func (p *blockPool) put(b []byte) {
	if len(b) == 0 {
		return
	}
	p.bucket(len(b)).Put(&b)
}

func (p *blockPool) bucket(size int) *sync.Pool {
	if pool, ok := p.pools.Load(size); ok {
		return pool.(*sync.Pool)
	}
	pool := &sync.Pool{
		New: func() any {
			b := make([]byte, size)
			return &b
		},
	}
	actual, _ := p.pools.LoadOrStore(size, pool)
	return actual.(*sync.Pool)
}

// blocks is the package-level image-block pool shared by all grids.
var blocks blockPool
