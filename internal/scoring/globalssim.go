package scoring

import "sync"

// globalSSIMWindow sets the block size SSIM is averaged over when scoring
// a whole canvas, rather than the single-line sample ssimImprovement works
// against: each block is globalSSIMWindow² (64) consecutive elements of
// the buffer. Blocks are evaluated by up to 64 goroutines, each over a
// contiguous range of blocks.
const globalSSIMWindow = 8

// GlobalSSIM computes the mean SSIM over non-overlapping blocks of
// globalSSIMWindow² consecutive elements of a full image buffer, for backtracking's
// "global SSIM" accept/reject decision (spec.md §4.12), which needs a
// whole-canvas quality measure rather than a single candidate line's
// local estimate.
func GlobalSSIM(target, current []float64) float64 {
	n := len(target)
	if n == 0 || len(current) != n {
		return 1
	}

	// The image width is not known here, so the buffer is split into
	// fixed-size 1-D chunks. In a row-major buffer each chunk is a
	// horizontal run of pixels, not a square 2-D window; the last chunk
	// may be shorter.
	blockSize := globalSSIMWindow * globalSSIMWindow
	numBlocks := (n + blockSize - 1) / blockSize

	sums := make([]float64, numBlocks)
	var wg sync.WaitGroup
	workers := numBlocks
	if workers > 64 {
		workers = 64
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (numBlocks + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= numBlocks {
			break
		}
		if end > numBlocks {
			end = numBlocks
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for b := start; b < end; b++ {
				lo := b * blockSize
				hi := lo + blockSize
				if hi > n {
					hi = n
				}
				sums[b] = localSSIM(target[lo:hi], current[lo:hi])
			}
		}(start, end)
	}
	wg.Wait()

	var total float64
	for _, s := range sums {
		total += s
	}
	return total / float64(numBlocks)
}
