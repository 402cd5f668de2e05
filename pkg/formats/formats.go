// Package formats reads and writes the interchange files used for source meshes
// and cached LOD levels.
package formats

// Note: Wavefront OBJ is implemented in obj.go
