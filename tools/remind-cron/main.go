// remind-cron triggers the reminder scan endpoint on an interval, standing in
// for a real cron entry. The service itself runs no background scheduler.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "tutorbook base url")
		password = flag.String("admin-password", getenv("ADMIN_PASSWORD", ""), "tutor admin password")
		interval = flag.Duration("interval", 15*time.Minute, "time between scans")
		once     = flag.Bool("once", false, "run a single scan and exit")
	)
	flag.Parse()

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/admin/reminders/scan"

	for {
		if err := scan(url, *password); err != nil {
			fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
			if *once {
				os.Exit(1)
			}
		}
		if *once {
			return
		}
		time.Sleep(*interval)
	}
}

func scan(url, password string) error {
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	if password != "" {
		req.Header.Set("X-Admin-Password", password)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Reminded int `json:"reminded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	fmt.Printf("reminded=%d\n", out.Reminded)
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
