package sweep

import "math/rand/v2"

// NewRNG returns the generator a worker owns while running one cell. Streams depend
// only on the run seed, the worker's rank and the cell index, so distinct workers draw
// independent replicates and any cell can be reproduced on its own.
func NewRNG(seed uint64, rank, cell int) *rand.Rand {
	hi := splitmix64(seed ^ splitmix64(uint64(rank)+1))
	lo := splitmix64(hi ^ splitmix64(uint64(cell)+0x632be59bd9b4e019))
	return rand.New(rand.NewPCG(hi, lo))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
