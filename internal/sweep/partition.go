package sweep

// ReplicatesPerWorker is the number of trials each of workers runs for one cell: total
// divided by workers, rounded down. The remainder is dropped, and a pool larger than
// total runs nothing.
func ReplicatesPerWorker(total, workers int) int {
	if workers <= 0 || total <= 0 {
		return 0
	}
	return total / workers
}

// RealizedTotal is the number of rows persisted per cell.
func RealizedTotal(total, workers int) int {
	return ReplicatesPerWorker(total, workers) * workers
}
