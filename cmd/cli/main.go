package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "embed":
		handleEmbed(args)
	case "data":
		handleData(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: biportal auth <login|login-ms|logout|who|hash>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "login":
		loginPassword(args[1:])
	case "login-ms":
		loginMicrosoft(args[1:])
	case "logout":
		logout()
	case "who":
		whoAmI()
	case "hash":
		hashPassword(args[1:])
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleEmbed(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: biportal embed <config>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "config":
		embedConfig(args[1:])
	default:
		fmt.Printf("unknown embed command: %s\n", subCmd)
	}
}

func handleData(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: biportal data <admin|client>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "admin":
		dataAdmin(args[1:])
	case "client":
		dataClient(args[1:])
	default:
		fmt.Printf("unknown data command: %s\n", subCmd)
	}
}

// Auth commands
func loginPassword(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *username == "" || *password == "" {
		fmt.Println("Error: username and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"username": *username, "password": *password}
	doLogin("/auth/login-password", payload, *username)
}

func loginMicrosoft(args []string) {
	fs := flag.NewFlagSet("login-ms", flag.ExitOnError)
	email := fs.String("email", "", "federated email")

	fs.Parse(args)

	if *email == "" {
		fmt.Println("Error: email is required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"federatedEmail": *email}
	doLogin("/auth/login-microsoft", payload, *email)
}

func doLogin(path string, payload map[string]string, subject string) {
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s (role: %v)\n", subject, result["role"])
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logout() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

// hashPassword prints a bcrypt hash suitable for the users table
func hashPassword(args []string) {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	password := fs.String("password", "", "password to hash")
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")

	fs.Parse(args)

	if *password == "" {
		fmt.Println("Error: password is required")
		fs.PrintDefaults()
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), *cost)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(string(hash))
}

// Embed commands
func embedConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	clientKey := fs.String("client", "", "client key")

	fs.Parse(args)

	if *clientKey == "" {
		fmt.Println("Error: client key is required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"clientKey": *clientKey}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", getAPIURL()+"/embed-config", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != 200 {
		fmt.Printf("✗ Embed config failed: %v\n", result)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tVALUE")
	for _, field := range []string{"reportId", "workspaceId", "embedUrl", "expiration"} {
		fmt.Fprintf(w, "%s\t%v\n", field, result[field])
	}
	w.Flush()
}

// Data commands
func dataAdmin(args []string) {
	_ = args
	req, _ := http.NewRequest("GET", getAPIURL()+"/data/admin", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Request failed: %v\n", result)
		return
	}

	var datasets map[string][]map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&datasets)

	keys := make([]string, 0, len(datasets))
	for k := range datasets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tROWS")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, len(datasets[k]))
	}
	w.Flush()
}

func dataClient(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: biportal data client <client-key>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/data/"+args[0], nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Request failed: %v\n", result)
		return
	}

	var rows []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&rows)
	if len(rows) == 0 {
		fmt.Println("No rows")
		return
	}

	cols := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprintf(w, "%v", row[c])
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("BIPORTAL_API"); url != "" {
		return url
	}
	return "http://localhost:5050/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.biportal/token"
}

func saveToken(token string) error {
	os.MkdirAll(os.Getenv("HOME")+"/.biportal", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`BI Portal CLI

Usage:
  biportal <command> [options]

Commands:
  auth   Authentication (login, login-ms, logout, who, hash)
  embed  Embed token operations (config)
  data   Tabular data (admin, client)
  help   Show this help message

Environment Variables:
  BIPORTAL_API    API endpoint (default: http://localhost:5050/api)

Examples:
  biportal auth login -username alice -password pass
  biportal auth login-ms -email alice@example.com
  biportal auth hash -password pass
  biportal embed config -client CLIENTA
  biportal data client CLIENTA
`)
}
