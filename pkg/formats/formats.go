// Package formats reads and writes the files the cloth simulator exchanges with
// the outside world: Wavefront OBJ meshes, GAT terrain height tables, and VCF
// vertex frame caches.
package formats
