package link

// CacheOps is the cache-coherence seam for platforms with a non-coherent
// DMA path: TX buffers must be cleaned before DMA hands them to the
// transmitter, and DMA-filled RX buffers must be invalidated before the
// CPU reads them. Grounded directly on
// original_source/Core/Src/gkl_link.c's dcache_clean_by_addr, which
// cleans the D-cache over an aligned address range before a DMA TX and
// would invalidate it before a DMA-filled RX buffer is read.
//
// NoopCache is the only implementation in this module: the tests use it,
// and host.Controller.AddPump passes it on every build, the tinygo/rp2xxx
// build included, so no cache maintenance is performed anywhere.
type CacheOps interface {
	CleanTX(buf []byte)
	InvalidateRX(buf []byte)
}

// NoopCache satisfies CacheOps for coherent or single-core targets (the
// host build, and any MCU target without a D-cache in front of its DMA
// engine).
type NoopCache struct{}

func (NoopCache) CleanTX(buf []byte)      {}
func (NoopCache) InvalidateRX(buf []byte) {}
