package wad

import "github.com/juju/loggo"

var logger = loggo.GetLogger("wadkit")

// SetLogger replaces the package logger, for example with a child of an application's
// own module.
func SetLogger(l loggo.Logger) {
	logger = l
}
