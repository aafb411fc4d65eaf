//go:build ignore

// Submits a transfer to a running orchestrator and polls the job until it
// reaches a terminal state.
//
// Usage:
//
//	go run scripts/submit-transfer.go -api http://localhost:8080 \
//	  -from-chain ethereum -to-chain base \
//	  -source 0x... -dest 0x... -amount 10.5
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "Orchestrator base URL")
	fromChain := flag.String("from-chain", "ethereum", "Source chain")
	toChain := flag.String("to-chain", "base", "Destination chain")
	source := flag.String("source", "", "User source address")
	dest := flag.String("dest", "", "User destination address")
	amount := flag.String("amount", "", "Amount in human units")
	flag.Parse()

	if *source == "" || *dest == "" || *amount == "" {
		fmt.Fprintln(os.Stderr, "source, dest and amount are required")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{
		"userSourceAddress": *source,
		"userDestAddress":   *dest,
		"amount":            *amount,
		"fromChain":         *fromChain,
		"toChain":           *toChain,
	})

	resp, err := http.Post(*apiURL+"/transfers", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var submitted struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusAccepted {
		fmt.Fprintf(os.Stderr, "✗ rejected (%d): %s\n", resp.StatusCode, submitted.Error)
		os.Exit(1)
	}

	fmt.Printf("✓ Submitted job %s (%s)\n", submitted.JobID, submitted.Status)
	fmt.Printf("  Send %s from %s on %s to the relay address, then wait.\n\n", *amount, *source, *fromChain)

	for {
		time.Sleep(3 * time.Second)

		r, err := http.Get(*apiURL + "/transfers/" + submitted.JobID)
		if err != nil {
			fmt.Printf("  poll error: %v\n", err)
			continue
		}

		var job struct {
			Status        string  `json:"status"`
			DepositTxHash *string `json:"depositTxHash"`
			BurnTxHash    *string `json:"burnTxHash"`
			MintTxHash    *string `json:"mintTxHash"`
			PayoutTxHash  *string `json:"payoutTxHash"`
			ErrorMessage  *string `json:"errorMessage"`
		}
		err = json.NewDecoder(r.Body).Decode(&job)
		r.Body.Close()
		if err != nil {
			fmt.Printf("  decode error: %v\n", err)
			continue
		}

		fmt.Printf("  status=%s", job.Status)
		if job.DepositTxHash != nil {
			fmt.Printf(" deposit=%s", *job.DepositTxHash)
		}
		fmt.Println()

		switch job.Status {
		case "completed":
			fmt.Printf("\n✓ Transfer completed\n")
			if job.BurnTxHash != nil {
				fmt.Printf("  burn:   %s\n", *job.BurnTxHash)
			}
			if job.MintTxHash != nil {
				fmt.Printf("  mint:   %s\n", *job.MintTxHash)
			}
			if job.PayoutTxHash != nil {
				fmt.Printf("  payout: %s\n", *job.PayoutTxHash)
			}
			return
		case "failed":
			reason := "unknown"
			if job.ErrorMessage != nil {
				reason = *job.ErrorMessage
			}
			fmt.Printf("\n✗ Transfer failed: %s\n", reason)
			os.Exit(1)
		}
	}
}
