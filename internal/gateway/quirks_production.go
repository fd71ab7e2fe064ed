//go:build production

package gateway

const quirksCompiled = false

var sandboxQuirkCodes = map[string]bool{}
