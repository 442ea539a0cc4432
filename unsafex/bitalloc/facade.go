package bitalloc

import (
	"sync"
	"unsafe"
)

// headerSize is the fixed footprint reserved at the front of the
// caller's buffer for the end_pos capacity header.
const headerSize = 8

// engine is the capability interface both bitmap engines implement.
// The facade reads IsReentrant at construction to decide whether it
// needs to install a mutex around every operation.
type engine interface {
	Alloc(length, start, end int, ord Ordering) int
	Free(start, length int, ord Ordering)
	Usage(ord Ordering) int
	IsReentrant() bool
	BitsPerWord() int
}

// Allocator is the public, serialized bit-range allocator. It wraps one
// bitmap engine with a buffer-derived bit capacity and, when the engine
// is not internally safe for concurrent use, a process-wide mutex.
//
// Allocator does not own buffer: the caller owns its lifetime and must
// ensure it remains live and suitably aligned for the chosen word width
// for as long as the Allocator is used.
type Allocator struct {
	endPos int
	eng    engine
	mu     *sync.Mutex
}

// New constructs a lock-free, 64-bit-word allocator over buffer.
func New(buffer []byte) *Allocator { return newLockFreeAllocator[uint64](buffer) }

// New32 constructs a lock-free, 32-bit-word allocator over buffer.
func New32(buffer []byte) *Allocator { return newLockFreeAllocator[uint32](buffer) }

// NewSerial constructs a mutex-guarded, 64-bit-word allocator over
// buffer. Use this when the host platform lacks atomic support for
// 64-bit words, or when a simpler, non-racy implementation is preferred.
func NewSerial(buffer []byte) *Allocator { return newPlainAllocator[uint64](buffer) }

// NewSerial32 constructs a mutex-guarded, 32-bit-word allocator.
func NewSerial32(buffer []byte) *Allocator { return newPlainAllocator[uint32](buffer) }

// NewSerial16 constructs a mutex-guarded, 16-bit-word allocator. 16-bit
// words have no lock-free counterpart: sync/atomic cannot CAS a uint16.
func NewSerial16(buffer []byte) *Allocator { return newPlainAllocator[uint16](buffer) }

// NewSerial8 constructs a mutex-guarded, 8-bit-word allocator. 8-bit
// words have no lock-free counterpart: sync/atomic cannot CAS a uint8.
func NewSerial8(buffer []byte) *Allocator { return newPlainAllocator[uint8](buffer) }

func newLockFreeAllocator[W AtomicWord](buffer []byte) *Allocator {
	endPos := computeEndPos[W](len(buffer))
	words := bitmapWords[W](buffer)
	writeEndPos(buffer, endPos)
	return &Allocator{endPos: endPos, eng: NewLockFree[W](words)}
}

// globalMutex serializes every operation of every mutex-guarded Allocator.
var globalMutex sync.Mutex

func newPlainAllocator[W Word](buffer []byte) *Allocator {
	endPos := computeEndPos[W](len(buffer))
	words := bitmapWords[W](buffer)
	writeEndPos(buffer, endPos)
	return &Allocator{endPos: endPos, eng: NewPlain[W](words), mu: &globalMutex}
}

// computeEndPos derives the usable bit capacity from a buffer length:
// subtract the header footprint, round down to a whole number of
// words, scale to bits.
func computeEndPos[W Word](bufferLen int) int {
	bytesPerWord := bitsPerWord[W]() / 8
	remaining := bufferLen - headerSize
	if remaining < bytesPerWord {
		return 0
	}
	return (remaining / bytesPerWord) * bitsPerWord[W]()
}

// bitmapWords reinterprets the tail of buffer (past the header) as a
// []W without copying, the same arena-carving idiom used elsewhere in
// this module's unsafe-pointer arithmetic.
func bitmapWords[W Word](buffer []byte) []W {
	bytesPerWord := bitsPerWord[W]() / 8
	if len(buffer) < headerSize+bytesPerWord {
		return nil
	}
	n := (len(buffer) - headerSize) / bytesPerWord
	base := unsafe.Pointer(&buffer[headerSize])
	return unsafe.Slice((*W)(base), n)
}

func writeEndPos(buffer []byte, endPos int) {
	if len(buffer) < headerSize {
		return
	}
	*(*uint64)(unsafe.Pointer(&buffer[0])) = uint64(endPos)
}

// BufferEndPos reads back the end_pos header written at the front of a
// buffer previously passed to one of the New* constructors, without
// constructing an Allocator. Useful for external inspection of a
// serialized buffer (e.g. one mapped from shared memory).
func BufferEndPos(buffer []byte) int {
	if len(buffer) < headerSize {
		return 0
	}
	return int(*(*uint64)(unsafe.Pointer(&buffer[0])))
}

// Alloc reserves a contiguous run of length bits and returns its start
// index. It fails with ErrInvalidLength if length is 0, or
// ErrOutOfSpace if no run of that length is available.
func (a *Allocator) Alloc(length int) (int, error) {
	if length == 0 {
		return 0, ErrInvalidLength
	}
	if a.mu != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
	}
	p := a.eng.Alloc(length, 0, a.endPos, OrderingAcquire)
	if p == a.endPos {
		return 0, ErrOutOfSpace
	}
	return p, nil
}

// Free clears bits [start, start+length). The caller must pass the
// exact (start, length) returned by a prior Alloc; behavior is
// undefined otherwise.
func (a *Allocator) Free(start, length int) {
	if length == 0 {
		return
	}
	if a.mu != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
	}
	a.eng.Free(start, length, OrderingRelease)
}

// Usage returns the number of currently allocated bits.
func (a *Allocator) Usage() int {
	if a.mu != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
	}
	return a.eng.Usage(OrderingAcquire)
}

// Size returns end_pos, the allocator's bit capacity.
func (a *Allocator) Size() int {
	return a.endPos
}

// IsReentrant reports whether the underlying engine is safe for
// unsynchronized concurrent use (true for New/New32, false otherwise).
func (a *Allocator) IsReentrant() bool {
	return a.mu == nil
}
