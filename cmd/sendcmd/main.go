// Command sendcmd obtains an API token from a running gateway and queues a
// device command, printing the job id.
//
//	sendcmd -device 123456789012345 -command INTERVAL 60
//	sendcmd -command RESET            # every logged-in device
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type commandRequest struct {
	DeviceID string   `json:"deviceId"`
	Command  string   `json:"command"`
	Args     []string `json:"args,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "gateway API base URL")
	user := flag.String("user", getEnv("API_USER", "admin"), "API user")
	password := flag.String("password", os.Getenv("API_PASSWORD"), "API password")
	device := flag.String("device", "", "device id, empty to broadcast")
	command := flag.String("command", "", "command to send (ALARM_OFF, RESET, INTERVAL, ...)")
	timeout := flag.Duration("timeout", 0, "give up on the job after this long")
	flag.Parse()

	if *command == "" {
		fmt.Fprintln(os.Stderr, "sendcmd: -command is required")
		flag.Usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: 5 * time.Second}

	// Get a token with retries, the gateway may still be starting
	var token string
	var err error
	for i := 0; i < 5; i++ {
		token, err = getToken(client, *baseURL, *user, *password)
		if err == nil {
			break
		}
		fmt.Printf("Attempt %d: Failed to get token, retrying... (%v)\n", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		fmt.Printf("Failed to get token after retries: %v\n", err)
		os.Exit(1)
	}

	req := commandRequest{DeviceID: *device, Command: *command, Args: flag.Args()}
	if *timeout > 0 {
		req.Timeout = timeout.String()
	}
	jobID, err := pushCommand(client, *baseURL, token, req)
	if err != nil {
		fmt.Printf("Failed to queue command: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(jobID)
}

func getToken(client *http.Client, baseURL, user, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Username: user, Password: password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(baseURL+"/api/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("error decoding token response: %w", err)
	}
	return login.AccessToken, nil
}

func pushCommand(client *http.Client, baseURL, token string, cmd commandRequest) (string, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/commands", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("error decoding command response: %w", err)
	}
	return out.JobID, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
