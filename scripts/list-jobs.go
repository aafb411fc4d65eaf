//go:build ignore

// Prints a summary of recent transfer jobs from a running orchestrator.
//
// Usage:
//
//	go run scripts/list-jobs.go -api http://localhost:8080
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "Orchestrator base URL")
	flag.Parse()

	resp, err := http.Get(*apiURL + "/transfers")
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var jobs []struct {
		ID           string  `json:"id"`
		FromChain    string  `json:"fromChain"`
		ToChain      string  `json:"toChain"`
		Amount       string  `json:"amount"`
		Status       string  `json:"status"`
		ErrorMessage *string `json:"errorMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d recent jobs\n\n", len(jobs))
	counts := map[string]int{}
	for _, job := range jobs {
		counts[job.Status]++
		fmt.Printf("%-36s  %-10s -> %-10s  %12s  %s", job.ID, job.FromChain, job.ToChain, job.Amount, job.Status)
		if job.ErrorMessage != nil {
			fmt.Printf("  (%s)", *job.ErrorMessage)
		}
		fmt.Println()
	}

	fmt.Println()
	for status, n := range counts {
		fmt.Printf("  %s: %d\n", status, n)
	}
}
