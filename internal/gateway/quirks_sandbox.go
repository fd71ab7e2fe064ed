//go:build !production

package gateway

const quirksCompiled = true

// sandboxQuirkCodes are success codes the UAT environment returns instead of
// PAYMENT_SUCCESS.
var sandboxQuirkCodes = map[string]bool{
	"SUCCESS":           true,
	"PAYMENT_COMPLETED": true,
}
