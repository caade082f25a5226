// Package workspace ties the snapshot store to engine handles.
//
// A Session owns one open engine handle for one stored record. Run executes
// a batch of statements, exports the database afterwards and saves the new
// snapshot when its bytes changed, so the stored data is always a snapshot
// taken between batches.
//
// Sessions serialize their own calls. Two sessions opened on the same id
// save independently and the last save wins.
package workspace
