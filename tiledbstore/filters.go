// Package tiledbstore is a reference implementation of the noise-map
// core's Persistence collaborator, backed by TileDB arrays. It is
// intentionally outside the core module boundary: package noisemap never
// imports it, since persistence is treated as an external collaborator
// whose only contract with the core is the Persistence interface.
package tiledbstore

import (
	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// zstdFilter initialises the Zstandard compression filter at the given
// level. Built once per filter list.
func zstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}

	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}

	return filt, nil
}

// newFilterList builds a single-stage zstd filter list at the given
// compression level, the pipeline attached to every attribute.
func newFilterList(ctx *tiledb.Context, level int32) (*tiledb.FilterList, error) {
	list, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return nil, err
	}

	filt, err := zstdFilter(ctx, level)
	if err != nil {
		list.Free()
		return nil, err
	}
	defer filt.Free()

	if err := list.AddFilter(filt); err != nil {
		list.Free()
		return nil, err
	}

	return list, nil
}

// arrayOpen opens an existing array for the given query mode, closing it
// again on error so callers never leak a half-open handle.
func arrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}

	if err := array.Open(mode); err != nil {
		array.Free()
		return nil, err
	}

	return array, nil
}
