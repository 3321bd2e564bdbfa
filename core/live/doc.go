// Package live connects time-varying geometry sources to the engine.
//
// A source's producer goroutine parses frames and appends them to a Gate.
// The render loop asks the gate for a per-view snapshot at a time t; the gate
// answers from cache when t is unchanged and otherwise builds into the view's
// spare buffer, so a snapshot already handed out is never written while its
// holder may still read it.
//
// Concrete sources: DirSource follows a directory of text frame files,
// WSSource reads a websocket stream, OrbitSource synthesizes bodies on
// circular orbits and ChanSource serves frames pushed by the caller.
package live
