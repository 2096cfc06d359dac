// Package checkpoint persists enrichment progress so an interrupted run can
// be recombined or resumed.
//
// A checkpoint directory holds one CSV file per completed chunk, named
// <prefix><id>.csv, plus a manifest.json describing the run that wrote them.
// Each chunk row records its position in the source table, so chunk files
// can be folded back into the table in any order.
//
//	mgr, err := checkpoint.NewManager("data/checkpoints", "chunk_")
//	if err != nil {
//		return err
//	}
//	if err := mgr.SaveChunk(chunk); err != nil {
//		return err
//	}
//	chunks, err := mgr.LoadChunks()
//
// The directory belongs to one run at a time; nothing is locked.
package checkpoint
