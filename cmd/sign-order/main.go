// Command sign-order builds and signs an order request ready for
// POST /api/v1/orders. With no key given it generates a fresh one.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"duomarket/pkg/api"
	"duomarket/pkg/crypto"
)

func main() {
	var (
		keyHex = flag.String("key", "", "hex private key (generated when empty)")
		mkt    = flag.String("market", "mkt-1", "market id")
		option = flag.Uint("option", 0, "outcome: 0 = A, 1 = B")
		side   = flag.Uint("side", 0, "side: 0 = bid, 1 = ask")
		price  = flag.Int64("price", 50, "limit price, 1..99")
		qty    = flag.Int64("qty", 10, "quantity of shares")
	)
	flag.Parse()

	var (
		signer *crypto.Signer
		err    error
	)
	if *keyHex == "" {
		signer, err = crypto.GenerateKey()
		if err != nil {
			fatalf("generate key: %v", err)
		}
		fmt.Printf("Address:     %s\n", signer.Address().Hex())
		fmt.Printf("Private Key: %s (keep secret)\n\n", signer.PrivateKeyHex())
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
		if err != nil {
			fatalf("load key: %v", err)
		}
		fmt.Printf("Address: %s\n\n", signer.Address().Hex())
	}

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		fatalf("generate nonce: %v", err)
	}

	digest := crypto.OrderDigest(*mkt, byte(*option), byte(*side), *price, *qty, nonce)
	sig, err := signer.Sign(digest)
	if err != nil {
		fatalf("sign: %v", err)
	}

	req := api.SubmitOrderRequest{
		Trader:    signer.Address().Hex(),
		MarketID:  *mkt,
		Option:    byte(*option),
		Side:      byte(*side),
		Price:     *price,
		Qty:       *qty,
		Nonce:     nonce,
		Signature: fmt.Sprintf("0x%x", sig),
	}

	if !crypto.VerifySignature(signer.Address(), digest, sig) {
		fatalf("signature failed self-verification")
	}

	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fatalf("marshal: %v", err)
	}

	fmt.Println("Signed order request:")
	fmt.Println(string(body))
	fmt.Println()
	fmt.Println("Submit with:")
	fmt.Println("  curl -X POST http://localhost:8080/api/v1/orders \\")
	fmt.Println("    -H 'Content-Type: application/json' \\")
	fmt.Printf("    -d '%s'\n", mustCompact(body))
}

func mustCompact(b []byte) string {
	var req api.SubmitOrderRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return string(b)
	}
	out, err := json.Marshal(req)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
