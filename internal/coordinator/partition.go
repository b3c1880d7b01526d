package coordinator

import "github.com/RoaringBitmap/roaring"

// WorkerRange describes the chunk indices and byte range assigned to one
// range worker, after resume-aware trimming.
type WorkerRange struct {
	WorkerID     int
	StartChunk   int // inclusive
	ChunkCount   int // number of chunks this worker must emit
	ByteStart    int64
	ByteEnd      int64 // inclusive
	IsLastWorker bool
}

// Partition splits chunkCount chunks across n workers: each worker k of n
// owns chunks [k*chunksPerWorker, (k+1)*chunksPerWorker), except worker n-1
// which owns through chunkCount-1.
func Partition(chunkCount int, n int, chunkSize int64, contentLength int64) []WorkerRange {
	chunksPerWorker := chunkCount / n
	ranges := make([]WorkerRange, n)

	for k := 0; k < n; k++ {
		isLast := k == n-1
		startChunk := k * chunksPerWorker
		count := chunksPerWorker
		byteStart := int64(startChunk) * chunkSize

		var byteEnd int64
		if isLast {
			count = chunkCount - startChunk
			byteEnd = contentLength - 1
		} else {
			endChunk := startChunk + chunksPerWorker
			byteEnd = int64(endChunk)*chunkSize - 1
		}

		ranges[k] = WorkerRange{
			WorkerID:     k,
			StartChunk:   startChunk,
			ChunkCount:   count,
			ByteStart:    byteStart,
			ByteEnd:      byteEnd,
			IsLastWorker: isLast,
		}
	}
	return ranges
}

// TrimPrefix advances wr's effective start over any prefix of chunks already
// marked done in bitmap. Trimming is prefix-only: it stops at the first
// unset chunk (or the end of the worker's own range) and never looks at
// interior holes, which are handled by the range worker's own per-chunk
// skip logic.
func TrimPrefix(wr WorkerRange, chunkSize int64, bitmap *roaring.Bitmap) WorkerRange {
	start := wr.StartChunk
	remaining := wr.ChunkCount
	end := wr.StartChunk + wr.ChunkCount

	for start < end && bitmap.Contains(uint32(start)) {
		start++
		remaining--
	}

	wr.ByteStart += int64(start-wr.StartChunk) * chunkSize
	wr.StartChunk = start
	wr.ChunkCount = remaining
	return wr
}

// ClampConnections limits the requested connection count so that every
// worker fetches at least minBytesPerConnection.
func ClampConnections(contentLength int64, requested int, minBytesPerConnection int64) int {
	if requested <= 0 {
		requested = 1
	}
	if contentLength/int64(requested) > minBytesPerConnection {
		return requested
	}

	eff := int(contentLength / minBytesPerConnection)
	if eff < 1 {
		eff = 1
	}
	return eff
}

// ChunkCount returns ceil(contentLength / chunkSize).
func ChunkCount(contentLength, chunkSize int64) int {
	n := contentLength / chunkSize
	if contentLength%chunkSize != 0 {
		n++
	}
	return int(n)
}
