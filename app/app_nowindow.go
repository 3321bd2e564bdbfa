//go:build !cgo

package app

type gpuTarget struct{}
