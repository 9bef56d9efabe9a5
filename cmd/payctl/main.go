// Command payctl runs the offline checks of the payment pipeline from a shell:
// modulus validation, Confirmation of Payee name matching, rail selection and
// setting a user's PIN when seeding accounts.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
