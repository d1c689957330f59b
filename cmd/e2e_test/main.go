package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

// Smoke test against a running server. Needs a quote service that resolves
// AAPL behind QUOTE_API_URL.
func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint("GET", "/health", "", nil, 200)

	// 2. Register (fresh username per run)
	username := fmt.Sprintf("e2e-user-%d", time.Now().UnixNano())
	token := register(username)
	fmt.Printf("Registered %s\n", username)

	// 3. Quote
	checkEndpoint("GET", "/quote/AAPL", token, nil, 200)

	// 4. Buy
	checkEndpoint("POST", "/buy", token, map[string]interface{}{"symbol": "AAPL", "shares": 2}, 201)

	// 5. Portfolio
	checkEndpoint("GET", "/portfolio", token, nil, 200)

	// 6. Sell everything back
	checkEndpoint("POST", "/sell", token, map[string]interface{}{"symbol": "AAPL", "shares": 2}, 201)

	// 7. Deposit
	checkEndpoint("POST", "/deposit", token, map[string]interface{}{"amount": "100.00"}, 200)

	// 8. History should show both trades
	checkEndpoint("GET", "/history", token, nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path, token string, body interface{}, expectedStatus int) {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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
}

func register(username string) string {
	reqBody := map[string]interface{}{
		"username":     username,
		"password":     "e2e-password-1!",
		"confirmation": "e2e-password-1!",
	}
	jsonBody, _ := json.Marshal(reqBody)
	resp, err := http.Post(baseURL+"/register", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Fatalf("Register failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("Register failed with status %d: %s", resp.StatusCode, string(body))
	}

	var res map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&res)
	token, _ := res["token"].(string)
	if token == "" {
		log.Fatal("Register returned no token")
	}
	return token
}
