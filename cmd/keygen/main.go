// Package main prints the keypairs a search worker derives, for checking
// stored results and debugging patterns.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/twin-miner/internal/miner"
)

func main() {
	_ = godotenv.Load()

	var (
		version  = flag.String("version", envOr("MINER_VERSION_TAG", "v1"), "Search version tag")
		workerID = flag.Uint("worker", 0, "Worker id")
		sequence = flag.Uint64("sequence", 0, "First sequence number")
		count    = flag.Uint64("count", 1, "Number of consecutive sequences to print")
		pattern  = flag.String("pattern", "", "Optional pattern (8 chars, or ABCD..WXYZ) to score against")
		weights  = flag.String("weights", envOr("MINER_WEIGHTS", miner.DefaultWeights.String()), "Comma separated position weights")
		verify   = flag.String("verify", "", "Decode a private key and print its address instead of generating")
		color    = flag.Bool("color", true, "Highlight matched characters")
	)
	flag.Parse()

	if *verify != "" {
		_, address, err := miner.KeyFromPrivateKey(*verify)
		if err != nil {
			fatalf("invalid private key: %v", err)
		}
		fmt.Println(address)
		return
	}

	if *workerID > uint(^uint32(0)) {
		fatalf("worker id %d does not fit in 32 bits", *workerID)
	}

	var (
		scorer *miner.Scorer
		target miner.Pattern
	)
	if *pattern != "" {
		w, err := miner.ParseWeights(*weights)
		if err != nil {
			fatalf("invalid weights: %v", err)
		}
		target, err = miner.ParsePattern(*pattern)
		if err != nil {
			fatalf("invalid pattern: %v", err)
		}
		scorer = miner.NewScorer(w)
	}

	hash := miner.NewVersionHash(*version)
	gen := miner.NewGenerator(hash)
	fmt.Printf("version %q (%s), worker %d\n", *version, hash, *workerID)

	for i := uint64(0); i < *count; i++ {
		seq := *sequence + i
		c := gen.Generate(uint32(*workerID), seq) // #nosec G115 - range checked above

		fmt.Printf("\nsequence:    %d\n", seq)
		fmt.Printf("address:     %s\n", c.Address)
		fmt.Printf("private key: %s\n", c.PrivateKey())

		if scorer != nil {
			score, err := scorer.Score(target, c.Address)
			if err != nil {
				fatalf("score: %v", err)
			}
			fmt.Printf("match:       %s vs %s (score: %d)\n", scorer.FormatMatch(c.Address, score, *color), target, score)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
