//go:build cgo && libpd

package main

import (
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/native/libpd"
)

const backendName = "libpd"

func newEngine() native.Engine {
	return libpd.New()
}
