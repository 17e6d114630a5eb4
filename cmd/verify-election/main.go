// Command verify-election verifies the integrity of a DRE-ip election dump
// using the P-256 elliptic curve. It uses the same verification
// implementation as the server, and is by definition compatible with the
// dumps produced by the question dump endpoint.
//
// Exit codes:
//
//	0: success
//	255: ran successfully, but the election failed to verify
//	other: error
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/verivote/dreip-backend/verifier"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: verify-election <dump.json>\n\n")
		fmt.Fprintf(os.Stderr, "Verify the integrity of a DRE-ip election using the P-256 elliptic curve.\n\n")
		fmt.Fprintf(os.Stderr, "Exit codes:\n")
		fmt.Fprintf(os.Stderr, "     0: Success\n")
		fmt.Fprintf(os.Stderr, "   255: Ran successfully, but election failed to verify.\n")
		fmt.Fprintf(os.Stderr, " Other: Error\n")
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(flag.Arg(0)))
}

func run(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("IO error: %v\n", err)
		return 1
	}
	results, err := verifier.ParseResults(data)
	if err != nil {
		fmt.Printf("Invalid election dump: %v\n", err)
		return 1
	}
	if err := results.Verify(); err != nil {
		fmt.Printf("Election failed to verify: %v\n", err)
		return 255
	}
	fmt.Println("Election successfully verified.")
	return 0
}
