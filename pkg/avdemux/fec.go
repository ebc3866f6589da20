package avdemux

import "fmt"

// Reconstruct recovers any missing data shards given a set of present
// shards (data and/or parity) over GF(256), Reed-Solomon-style (§4.7:
// "if up to fec_count data shards are missing and >= equivalent FEC shards
// are present, reconstruction is attempted").
//
// present maps shard index (0..dataCount-1 are data, dataCount..
// dataCount+parityCount-1 are parity) to that shard's bytes. All present
// shards must be the same length. Returns the full dataCount data shards in
// order, or an error if too many data shards are missing for the available
// parity to cover.
func Reconstruct(dataCount, parityCount int, present map[int][]byte) ([][]byte, error) {
	missingData := 0
	for i := 0; i < dataCount; i++ {
		if _, ok := present[i]; !ok {
			missingData++
		}
	}
	if missingData == 0 {
		out := make([][]byte, dataCount)
		for i := 0; i < dataCount; i++ {
			out[i] = present[i]
		}
		return out, nil
	}
	if missingData > parityCount || missingData > len(present) {
		return nil, fmt.Errorf("avdemux: %d data shards missing, only %d parity available", missingData, parityCount)
	}
	if len(present) < dataCount {
		return nil, fmt.Errorf("avdemux: only %d of %d shards available", len(present), dataCount)
	}

	generator := buildGeneratorMatrix(dataCount, parityCount)

	rows := make([]int, 0, dataCount)
	shards := make([][]byte, 0, dataCount)
	for i := 0; i < dataCount+parityCount && len(rows) < dataCount; i++ {
		if s, ok := present[i]; ok {
			rows = append(rows, i)
			shards = append(shards, s)
		}
	}

	sub := generator.subMatrix(rows)
	inv, err := sub.invert()
	if err != nil {
		return nil, fmt.Errorf("avdemux: reconstruct: %w", err)
	}

	return inv.multiplyShards(shards), nil
}

// EncodeParity computes parityCount parity shards from dataCount equal-
// length data shards, using the same Vandermonde generator Reconstruct
// inverts against. Exposed for tests and for any future encoder-side use
// (this gateway is a receiver, so production code only ever calls
// Reconstruct, but the encoder is the decoder's spec and keeping both sides
// in the same file keeps the generator construction singly defined).
func EncodeParity(dataCount, parityCount int, data [][]byte) [][]byte {
	generator := buildGeneratorMatrix(dataCount, parityCount)
	parityRows := generator[dataCount:]
	return parityRows.multiplyShards(data)
}
