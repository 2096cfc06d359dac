// Package enrich fills a table of monument categories with generated
// definitions and their web sources.
//
// A Runner walks the table either in a single in-memory pass or chunk by
// chunk, writing every finished chunk to the checkpoint directory before
// starting the next. After the chunk loop ends, whether it finished, hit a
// write failure or was cancelled, all chunk files on disk are folded back
// into the table by row position, so the caller always gets every result
// that reached disk.
//
// Generation failures never stop a run. The row gets the failure text
// "ERROR <reason>: COULD NOT GENERATE DEFINITION" and an empty source list;
// resume runs regenerate exactly those rows and rows with no definition,
// and leave every other row as it was.
package enrich
