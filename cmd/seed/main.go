package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"
)

// Seed development data through the gateway API: an admin account, a couple of
// categories, and a market per category, with some onramped cash and minted
// supply to trade against.
func main() {
	base := os.Getenv("GATEWAY_URL")
	if base == "" {
		base = "http://localhost:3000/api/v1"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("Failed to create cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar, Timeout: 2 * time.Minute}

	// An existing admin means the environment is already seeded.
	if status, _ := post(client, base+"/signup", map[string]any{
		"username": "opx-admin",
		"email":    "admin@tradeopx.dev",
		"password": "changeme-admin",
		"role":     "admin",
	}); status == http.StatusConflict {
		fmt.Println("Admin already exists. No need to seed.")
		os.Exit(0)
	}

	mustPost(client, base+"/signin", map[string]any{
		"email":    "admin@tradeopx.dev",
		"password": "changeme-admin",
	})

	mustPost(client, base+"/onramp", map[string]any{"amount": 100000})

	categories := []map[string]any{
		{"title": "Cricket", "icon": "cricket.png", "description": "Cricket matches and tournaments"},
		{"title": "Elections", "icon": "ballot.png", "description": "Election outcomes"},
	}
	for _, c := range categories {
		mustPost(client, base+"/admin/category", c)
	}

	markets := []map[string]any{
		{
			"symbol":        "IND-WC-2027",
			"description":   "Will India win the 2027 World Cup?",
			"endTime":       time.Now().AddDate(1, 0, 0).Format(time.RFC3339),
			"sourceOfTruth": "icc-cricket.com",
			"categoryTitle": "Cricket",
		},
		{
			"symbol":        "US-PRES-DEM",
			"description":   "Will the Democratic candidate win the next US presidential election?",
			"endTime":       time.Now().AddDate(2, 0, 0).Format(time.RFC3339),
			"sourceOfTruth": "apnews.com",
			"categoryTitle": "Elections",
		},
	}
	for _, m := range markets {
		mustPost(client, base+"/admin/market", m)
		mustPost(client, base+"/admin/mint", map[string]any{
			"symbol":   m["symbol"],
			"quantity": 100,
			"price":    5,
		})
	}

	fmt.Println("Successfully seeded markets and supply!")
}

func post(client *http.Client, url string, body map[string]any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func mustPost(client *http.Client, url string, body map[string]any) {
	status, err := post(client, url, body)
	if err != nil {
		log.Fatalf("Failed to POST %s: %v", url, err)
	}
	if status >= 300 {
		log.Fatalf("POST %s returned %d", url, status)
	}
}
