package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func main() {
	if v := os.Getenv("E2E_BASE_URL"); v != "" {
		baseURL = v
	}
	symbol := "NABIL"
	if v := os.Getenv("E2E_SYMBOL"); v != "" {
		symbol = v
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Market data
	checkEndpoint("GET", "/stocks/"+symbol, nil, 200)

	// 3. Two buys accumulate into one position
	key := fmt.Sprintf("e2e-buy-%d", time.Now().UnixNano())
	buy := map[string]interface{}{"symbol": symbol, "quantity": "10", "rate": "100", "idempotency_key": key}
	checkEndpoint("POST", "/holdings", buy, 201)
	checkEndpoint("POST", "/holdings", buy, 200)
	checkEndpoint("POST", "/holdings", map[string]interface{}{"symbol": symbol, "quantity": "5", "rate": "120"}, 201)

	res := checkEndpoint("GET", "/holding-list?symbol="+symbol, nil, 200)
	fmt.Printf("Holding after buys: %v\n", res["data"])

	// 4. Partial sell keeps the position
	sell := checkEndpoint("POST", "/sell", map[string]interface{}{"symbol": symbol, "sell_quantity": "5", "sell_rate": "130"}, 200)
	fmt.Printf("Partial sell: %v\n", sell["data"])

	// 5. Overselling is rejected
	checkEndpoint("POST", "/sell", map[string]interface{}{"symbol": symbol, "sell_quantity": "1000", "sell_rate": "130"}, 422)

	// 6. Full sell closes it
	checkEndpoint("POST", "/sell", map[string]interface{}{"symbol": symbol, "sell_quantity": "10", "sell_rate": "130", "is_held_under_one_year": true}, 200)
	checkEndpoint("POST", "/sell", map[string]interface{}{"symbol": symbol, "sell_quantity": "1", "sell_rate": "130"}, 404)

	// 7. Reporting
	checkEndpoint("GET", "/logs?symbol="+symbol+"&type=sell", nil, 200)
	checkEndpoint("GET", "/unrealized", nil, 200)
	checkEndpoint("GET", "/summary", nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) map[string]interface{} {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))

	var out map[string]interface{}
	_ = json.Unmarshal(respBody, &out)
	return out
}
