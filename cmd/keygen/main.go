// keygen generates a CKKS context for cipherpanel deployments.
//
// The compute deployment only needs the public material; run with
// -with-secret=false and ship the resulting directory to it, keeping the
// full directory on the oracle side.
package main

import (
	"flag"
	"fmt"
	"os"

	"cipherpanel/internal/fhe"
)

func main() {
	var (
		dir        = flag.String("dir", "./keys", "output directory")
		logN       = flag.Int("logn", 0, "ring degree log2 (0 = default)")
		levels     = flag.Int("levels", 0, "ciphertext levels (0 = default)")
		logScale   = flag.Int("logscale", 0, "scale log2 (0 = default)")
		withSecret = flag.Bool("with-secret", true, "also write the secret key")
	)
	flag.Parse()

	o := fhe.DefaultOptions()
	if *logN > 0 {
		o.LogN = *logN
	}
	if *levels > 0 {
		o.Levels = *levels
	}
	if *logScale > 0 {
		o.LogScale = *logScale
	}

	fmt.Fprintf(os.Stderr, "generating CKKS context (logN=%d levels=%d logScale=%d)...\n",
		o.LogN, o.Levels, o.LogScale)
	m, err := fhe.Generate(o)
	if err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
	if err := m.Save(*dir, *withSecret); err != nil {
		fmt.Fprintln(os.Stderr, "save:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (secret=%v)\n", *dir, *withSecret)
}
