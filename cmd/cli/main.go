package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
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
	case "tenant":
		handleTenant(args)
	case "invitation":
		handleInvitation(args)
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
		fmt.Println("Usage: tenantplane auth <login|logout|who>")
		return
	}

	switch args[0] {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tenantplane tenant <list|get|log|approve|reject|suspend|reinstate|delete|recover|purge>")
		return
	}

	switch args[0] {
	case "list":
		listTenants(args[1:])
	case "get":
		getTenant(args[1:])
	case "log":
		moderationLog(args[1:])
	case "approve":
		moderateTenant("approve", args[1:])
	case "reject":
		moderateTenant("reject", args[1:])
	case "suspend":
		moderateTenant("suspend", args[1:])
	case "reinstate":
		moderateTenant("reinstate", args[1:])
	case "delete":
		deleteTenant(args[1:], false)
	case "recover":
		recoverTenant(args[1:])
	case "purge":
		deleteTenant(args[1:], true)
	default:
		fmt.Printf("unknown tenant command: %s\n", args[0])
	}
}

func handleInvitation(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tenantplane invitation <list|create|resend|revoke>")
		return
	}

	switch args[0] {
	case "list":
		listInvitations(args[1:])
	case "create":
		createInvitation(args[1:])
	case "resend":
		resendInvitation(args[1:])
	case "revoke":
		revokeInvitation(args[1:])
	default:
		fmt.Printf("unknown invitation command: %s\n", args[0])
	}
}

// Auth commands

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	result := decodeEnvelope(resp)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result["message"])
	}
}

func logoutUser() {
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

// Tenant commands

func listTenants(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "filter by status (PENDING, APPROVED, REJECTED, SUSPENDED, REINSTATED)")
	fs.Parse(args)

	url := getAPIURL() + "/tenants"
	if *status != "" {
		url += "?status=" + *status
	}

	data, ok := apiGet(url)
	if !ok {
		return
	}

	tenants, _ := data["tenants"].([]interface{})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED")
	for _, item := range tenants {
		t, _ := item.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\t%v\n", t["id"], t["status"], t["createdAt"])
	}
	w.Flush()
	fmt.Printf("total: %v\n", data["total"])
}

func getTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tenantplane tenant get <tenant-id>")
		return
	}
	data, ok := apiGet(getAPIURL() + "/tenants/" + args[0])
	if !ok {
		return
	}
	pretty, _ := json.MarshalIndent(data, "", "  ")
	fmt.Println(string(pretty))
}

func moderationLog(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tenantplane tenant log <tenant-id>")
		return
	}
	data, ok := apiGet(getAPIURL() + "/tenants/" + args[0] + "/moderation-log")
	if !ok {
		return
	}

	entries, _ := data["entries"].([]interface{})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tBY\tAT\tREASON")
	for _, item := range entries {
		e, _ := item.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", e["action"], e["by"], e["at"], e["reason"])
	}
	w.Flush()
}

func moderateTenant(action string, args []string) {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	reason := fs.String("reason", "", "moderation reason (required for reject)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Printf("Usage: tenantplane tenant %s <tenant-id> [-reason text]\n", action)
		return
	}
	id := fs.Arg(0)

	body, _ := json.Marshal(map[string]string{"reason": *reason})
	data, ok := apiDo("POST", getAPIURL()+"/tenants/"+id+"/"+action, body)
	if !ok {
		return
	}
	fmt.Printf("✓ Tenant %s is now %v\n", id, data["status"])
}

func deleteTenant(args []string, purge bool) {
	if len(args) < 1 {
		verb := "delete"
		if purge {
			verb = "purge"
		}
		fmt.Printf("Usage: tenantplane tenant %s <tenant-id>\n", verb)
		return
	}

	url := getAPIURL() + "/tenants/" + args[0]
	if purge {
		url += "/purge"
	}
	data, ok := apiDo("DELETE", url, nil)
	if !ok {
		return
	}
	fmt.Printf("✓ Tenant %s: %v\n", args[0], data["status"])
}

func recoverTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tenantplane tenant recover <tenant-id>")
		return
	}
	data, ok := apiDo("POST", getAPIURL()+"/tenants/"+args[0]+"/recover", nil)
	if !ok {
		return
	}
	fmt.Printf("✓ Tenant %s: %v\n", args[0], data["status"])
}

// Invitation commands

func listInvitations(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "filter by status (PENDING, ACCEPTED, EXPIRED, REVOKED)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: tenantplane invitation list <tenant-id> [-status STATUS]")
		return
	}

	url := getAPIURL() + "/tenants/" + fs.Arg(0) + "/invitations"
	if *status != "" {
		url += "?status=" + *status
	}
	data, ok := apiGet(url)
	if !ok {
		return
	}

	invs, _ := data["invitations"].([]interface{})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tSTATUS\tEXPIRES")
	for _, item := range invs {
		inv, _ := item.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", inv["id"], inv["email"], inv["role"], inv["status"], inv["expiresAt"])
	}
	w.Flush()
}

func createInvitation(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	email := fs.String("email", "", "invitee email")
	role := fs.String("role", "STAFF", "role to grant (STAFF, MANAGER, ADMIN, MEMBER)")
	fs.Parse(args)

	if fs.NArg() < 1 || *email == "" {
		fmt.Println("Usage: tenantplane invitation create <tenant-id> -email user@example.com [-role ROLE]")
		return
	}

	body, _ := json.Marshal(map[string]string{"email": *email, "role": *role})
	data, ok := apiDo("POST", getAPIURL()+"/tenants/"+fs.Arg(0)+"/invitations", body)
	if !ok {
		return
	}
	fmt.Printf("✓ Invitation created\n  url: %v\n", data["url"])
}

func resendInvitation(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: tenantplane invitation resend <tenant-id> <invitation-id>")
		return
	}
	data, ok := apiDo("POST", getAPIURL()+"/tenants/"+args[0]+"/invitations/"+args[1]+"/resend", nil)
	if !ok {
		return
	}
	fmt.Printf("✓ Invitation resent\n  url: %v\n", data["url"])
}

func revokeInvitation(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: tenantplane invitation revoke <tenant-id> <invitation-id>")
		return
	}
	if _, ok := apiDo("DELETE", getAPIURL()+"/tenants/"+args[0]+"/invitations/"+args[1], nil); !ok {
		return
	}
	fmt.Println("✓ Invitation revoked")
}

// Helper functions

func apiGet(url string) (map[string]interface{}, bool) {
	return apiDo("GET", url, nil)
}

func apiDo(method, url string, body []byte) (map[string]interface{}, bool) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
		Message string                 `json:"message"`
	}
	json.NewDecoder(resp.Body).Decode(&envelope)
	if !envelope.Success {
		fmt.Printf("✗ %s (%d)\n", envelope.Message, resp.StatusCode)
		return nil, false
	}
	return envelope.Data, true
}

func decodeEnvelope(resp *http.Response) map[string]interface{} {
	var envelope struct {
		Data    map[string]interface{} `json:"data"`
		Message string                 `json:"message"`
	}
	json.NewDecoder(resp.Body).Decode(&envelope)
	if envelope.Data == nil {
		return map[string]interface{}{"message": envelope.Message}
	}
	envelope.Data["message"] = envelope.Message
	return envelope.Data
}

func getAPIURL() string {
	if url := os.Getenv("TENANTPLANE_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.tenantplane/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.tenantplane", 0700)
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
	fmt.Print(`Tenantplane CLI

Usage:
  tenantplane <command> [options]

Commands:
  auth        Session management (login, logout, who)
  tenant      Tenant moderation (list, get, log, approve, reject, suspend,
              reinstate, delete, recover, purge) - platform admin required
  invitation  Invitation management (list, create, resend, revoke)
  help        Show this help message

Environment Variables:
  TENANTPLANE_API    API endpoint (default: http://localhost:8080/api)

Examples:
  tenantplane auth login -email ops@example.com -password pass
  tenantplane tenant list -status PENDING
  tenantplane tenant approve acme
  tenantplane tenant reject acme -reason "incomplete paperwork"
  tenantplane invitation create acme -email new.hire@acme.io -role MANAGER
`)
}
