package cli

// NewRootCmd exposes the command tree to the tests.
var NewRootCmd = newRootCmd
