package regs

// Bank is a block of 32-bit hardware registers addressed by byte offset.
// Every access is volatile: it is performed exactly once, in program order.
type Bank interface {
	Load(off uintptr) uint32
	Store(off uintptr, v uint32)
}

// Memory is a region of device memory shared with the controller's DMA
// engine. Word accesses through Bank must be 4-byte aligned.
type Memory interface {
	Bank
	LoadByte(off uintptr) byte
	StoreByte(off uintptr, b byte)

	// Base returns the absolute address of the region as seen by the
	// controller.
	Base() uintptr

	// Size returns the size of the region in bytes.
	Size() uintptr
}

// Block provides read-modify-write helpers over a Bank.
type Block struct {
	Bank Bank
}

// Read returns the value of the register at off.
func (b Block) Read(off uintptr) uint32 {
	return b.Bank.Load(off)
}

// Write stores v to the register at off.
func (b Block) Write(off uintptr, v uint32) {
	b.Bank.Store(off, v)
}

// Set sets the bits in mask. Not for write-one-to-clear registers.
func (b Block) Set(off uintptr, mask uint32) {
	b.Bank.Store(off, b.Bank.Load(off)|mask)
}

// Clear clears the bits in mask. Not for write-one-to-clear registers.
func (b Block) Clear(off uintptr, mask uint32) {
	b.Bank.Store(off, b.Bank.Load(off)&^mask)
}

// Modify clears the bits in clear, then sets the bits in set, in a single
// read-modify-write.
func (b Block) Modify(off uintptr, clear, set uint32) {
	b.Bank.Store(off, b.Bank.Load(off)&^clear|set)
}

// Has returns true if every bit in mask is set.
func (b Block) Has(off uintptr, mask uint32) bool {
	return b.Bank.Load(off)&mask == mask
}

// Wait spins until the bits in mask equal want.
func (b Block) Wait(off uintptr, mask, want uint32) {
	for b.Bank.Load(off)&mask != want {
	}
}
