package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yourorg/sity/internal/pricing"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	c := newClient(getAPIURL(), loadToken())
	if err := run(c, os.Stdout, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func run(c *client, out io.Writer, command string, args []string) error {
	switch command {
	case "health":
		return health(c, out)
	case "signup":
		return signup(c, out, args)
	case "login":
		return login(c, out, args)
	case "logout":
		_ = os.Remove(tokenFile())
		fmt.Fprintln(out, "✓ Logged out")
		return nil
	case "rides":
		return handleRides(c, out, args)
	case "requests":
		return handleRequests(c, out, args)
	case "price":
		return price(out, args)
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func handleRides(c *client, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: sity rides <list|show|create|complete|cancel|driver>")
	}
	switch args[0] {
	case "list":
		return listRides(c, out)
	case "show":
		return rideAction(c, out, args[1:], "GET", "")
	case "create":
		return createRide(c, out, args[1:])
	case "complete":
		return rideAction(c, out, args[1:], "POST", "/complete")
	case "cancel":
		return rideAction(c, out, args[1:], "POST", "/cancel")
	case "driver":
		return driverRides(c, out, args[1:])
	default:
		return fmt.Errorf("unknown rides command: %s", args[0])
	}
}

func handleRequests(c *client, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: sity requests <create|list|accept|reject>")
	}
	switch args[0] {
	case "create":
		return createRequest(c, out, args[1:])
	case "list":
		return listRequests(c, out, args[1:])
	case "accept":
		return decideRequest(c, out, args[1:], "accept")
	case "reject":
		return decideRequest(c, out, args[1:], "reject")
	default:
		return fmt.Errorf("unknown requests command: %s", args[0])
	}
}

func health(c *client, out io.Writer) error {
	var res struct {
		Status string `json:"status"`
	}
	if err := c.do("GET", "/health", nil, &res); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ API %s\n", res.Status)
	return nil
}

func signup(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "university email")
	password := fs.String("password", "", "password")
	name := fs.String("name", "", "full name")
	phone := fs.String("phone", "", "phone number")
	university := fs.String("university", "", "university")
	car := fs.String("car", "", "make,model,color,plate (drivers only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	payload := map[string]any{
		"email":      *email,
		"password":   *password,
		"name":       *name,
		"phone":      *phone,
		"university": *university,
	}
	if *car != "" {
		parts := strings.Split(*car, ",")
		if len(parts) != 4 {
			return errors.New("-car must be make,model,color,plate")
		}
		payload["is_driver"] = true
		payload["car_details"] = map[string]string{
			"make": parts[0], "model": parts[1], "color": parts[2], "plate": parts[3],
		}
	}

	var res struct {
		Message string `json:"message"`
		User    struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := c.do("POST", "/signup", payload, &res); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s (user id %s)\n", res.Message, res.User.ID)
	return nil
}

func login(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "university email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var session struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
	}
	if err := c.do("POST", "/login", map[string]string{"email": *email, "password": *password}, &session); err != nil {
		return err
	}
	if err := saveToken(session.AccessToken); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	c.token = session.AccessToken
	fmt.Fprintf(out, "✓ Logged in as %s\n", session.UserID)
	return nil
}

type ride struct {
	ID                string  `json:"id"`
	DriverID          string  `json:"driver_id"`
	DepartureLocation string  `json:"departure_location"`
	Destination       string  `json:"destination"`
	DepartureTime     string  `json:"departure_time"`
	AvailableSeats    int     `json:"available_seats"`
	PricePerSeat      float64 `json:"price_per_seat"`
	Status            string  `json:"status"`
}

func listRides(c *client, out io.Writer) error {
	var res struct {
		Rides []ride `json:"rides"`
	}
	if err := c.do("GET", "/rides", nil, &res); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tDEPARTS\tSEATS\tPRICE")
	for _, r := range res.Rides {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t$%.2f\n", r.ID, r.DepartureLocation, r.Destination, r.DepartureTime, r.AvailableSeats, r.PricePerSeat)
	}
	return w.Flush()
}

func createRide(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("rides create", flag.ContinueOnError)
	from := fs.String("from", "", "departure location")
	to := fs.String("to", "", "destination")
	date := fs.String("date", "", "YYYY-MM-DD")
	clock := fs.String("time", "", "HH:MM")
	seats := fs.Int("seats", 1, "seats offered")
	priceFlag := fs.Float64("price", 0, "price per seat")
	desc := fs.String("description", "", "notes for riders")
	bidUp := fs.Bool("bid-up", false, "allow riders to bid up")
	hopIn := fs.Bool("hop-in", false, "allow hop-in riders")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var res struct {
		Ride ride `json:"ride"`
	}
	err := c.do("POST", "/rides", map[string]any{
		"departure":    *from,
		"destination":  *to,
		"date":         *date,
		"time":         *clock,
		"seats":        *seats,
		"price":        *priceFlag,
		"description":  *desc,
		"allow_bid_up": *bidUp,
		"allow_hop_in": *hopIn,
	}, &res)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Ride created: %s\n", res.Ride.ID)
	return nil
}

func rideAction(c *client, out io.Writer, args []string, method, suffix string) error {
	if len(args) < 1 {
		return errors.New("ride id required")
	}
	var res struct {
		Ride ride `json:"ride"`
	}
	if err := c.do(method, "/rides/"+args[0]+suffix, nil, &res); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s: %s -> %s at %s, %d seats, %s\n",
		res.Ride.ID, res.Ride.DepartureLocation, res.Ride.Destination, res.Ride.DepartureTime, res.Ride.AvailableSeats, res.Ride.Status)
	return nil
}

func driverRides(c *client, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errors.New("driver id required")
	}
	var res struct {
		RideIDs []string `json:"ride_ids"`
	}
	if err := c.do("GET", "/drivers/"+args[0]+"/rides", nil, &res); err != nil {
		return err
	}
	for _, id := range res.RideIDs {
		fmt.Fprintln(out, id)
	}
	return nil
}

type rideRequest struct {
	ID             string `json:"id"`
	RiderID        string `json:"rider_id"`
	SeatsRequested int    `json:"seats_requested"`
	Status         string `json:"status"`
}

func createRequest(c *client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("requests create", flag.ContinueOnError)
	rideID := fs.String("ride", "", "ride id")
	seats := fs.Int("seats", 1, "seats requested")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var res struct {
		Request rideRequest `json:"request"`
	}
	if err := c.do("POST", "/rides/"+*rideID+"/requests", map[string]int{"seats_requested": *seats}, &res); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Request %s is %s\n", res.Request.ID, res.Request.Status)
	return nil
}

func listRequests(c *client, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errors.New("ride id required")
	}
	var res struct {
		Requests []rideRequest `json:"requests"`
	}
	if err := c.do("GET", "/rides/"+args[0]+"/requests", nil, &res); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRIDER\tSEATS\tSTATUS")
	for _, r := range res.Requests {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.RiderID, r.SeatsRequested, r.Status)
	}
	return w.Flush()
}

func decideRequest(c *client, out io.Writer, args []string, decision string) error {
	if len(args) < 1 {
		return errors.New("request id required")
	}
	var res struct {
		Request rideRequest `json:"request"`
	}
	if err := c.do("POST", "/requests/"+args[0]+"/"+decision, nil, &res); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Request %s is %s\n", res.Request.ID, res.Request.Status)
	return nil
}

// price quotes locally; no server round trip needed
func price(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	distance := fs.Float64("distance", 0, "miles")
	duration := fs.Float64("duration", 0, "minutes")
	passengers := fs.Int("passengers", 1, "total passengers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q, err := pricing.Estimate(*distance, *duration, *passengers)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Total: $%d (base $%.2f + extra riders $%.2f), $%.2f each\n", q.Total, q.BaseCost, q.ExtraCost, q.PerPassenger)
	return nil
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// do sends body as JSON and decodes a 2xx response into out. Error bodies
// become errors carrying the server's message.
func (c *client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("SITY_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sity", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}

func printUsage() {
	fmt.Print(`Sity CLI

Usage:
  sity <command> [options]

Commands:
  health     Check the API
  signup     Create an account (-email -password -name [-car make,model,color,plate])
  login      Sign in and store the token in ~/.sity/token
  logout     Forget the stored token
  rides      Ride operations (list, show, create, complete, cancel, driver)
  requests   Seat requests (create, list, accept, reject)
  price      Quote a trip locally (-distance -duration -passengers)
  help       Show this help message

Environment Variables:
  SITY_API    API endpoint (default: http://localhost:8080/api)

Examples:
  sity signup -email ada@state.edu -password secret1 -name Ada
  sity login -email ada@state.edu -password secret1
  sity rides create -from "North Campus" -to Airport -date 2026-11-20 -time 08:30 -seats 3 -price 12.5
  sity requests accept <request-id>
`)
}
