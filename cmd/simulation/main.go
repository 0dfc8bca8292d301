package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradegate/customs-api/internal/auth"
	"github.com/tradegate/customs-api/internal/clearance"
	"github.com/tradegate/customs-api/internal/codec"
	"github.com/tradegate/customs-api/internal/database"
	"github.com/tradegate/customs-api/internal/guarantee"
	"github.com/tradegate/customs-api/internal/risk"
	"github.com/tradegate/customs-api/internal/transit"
	"github.com/tradegate/customs-api/internal/types"
)

const (
	minDeclarations = 15
	maxDeclarations = 150
	numWorkers      = 5
	serverAddress   = "http://localhost:8080"
)

// Goods pools spanning the full channel spread: unlisted chapters route
// green, vehicles and spirits pull documentary and inspection scrutiny,
// tobacco from high-risk origins escalates further.
var goodsPool = []struct {
	hsCode string
	origin string
	unit   string
}{
	{"640399", "DE", "PCE"},
	{"640411", "FR", "PCE"},
	{"871200", "CN", "PCE"},
	{"220300", "DE", "LTR"},
	{"240110", "PA", "KGM"},
	{"300490", "CN", "PCE"},
}

var brokers = []string{"BRK001", "BRK002", "BRK003", "BRK004", "BRK005"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// apiEnvelope matches the standard response wrapper.
type apiEnvelope struct {
	Success bool                       `json:"success"`
	Data    *types.DeclarationResponse `json:"data"`
}

// simulationClient handles HTTP communication with the customs API
type simulationClient struct {
	client *resty.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		client: resty.New().
			SetBaseURL(serverAddress).
			SetTimeout(10 * time.Second),
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"submit":   {name: "Submit Declaration"},
			"status":   {name: "Get Status"},
			"document": {name: "Document Check"},
			"inspect":  {name: "Inspection"},
			"payment":  {name: "Payment"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.client.SetAuthToken(token)

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rs := sc.stats[route]
	rs.addDuration(time.Since(start))
	if failed {
		rs.failures++
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	resp, err := sc.client.R().
		SetBody(auth.Credentials{APIKey: auth.TestAPIKey, APISecret: auth.TestAPISecret}).
		SetResult(&result).
		Post("/api/v1/auth/token")
	sc.record("auth", start, err != nil || resp.IsError())
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode())
	}

	return result.Data.Token, nil
}

// submitDeclaration encodes a declaration as a CUSDEC byte stream and
// submits it
func (sc *simulationClient) submitDeclaration(dec *types.Declaration) (*types.DeclarationResponse, error) {
	start := time.Now()

	env, body := codec.BuildDeclaration(dec, codec.FunctionOriginal)
	wire := codec.EncodeMessage(codec.DefaultDelimiters, env, body)

	var result apiEnvelope
	resp, err := sc.client.R().
		SetHeader("Content-Type", "application/edifact").
		SetBody(wire).
		SetResult(&result).
		Post("/api/v1/declarations")
	sc.record("submit", start, err != nil || resp.IsError())
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("submit failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Data == nil || result.Data.DeclarationID == "" {
		return nil, fmt.Errorf("no declaration ID in response: %s", resp.String())
	}

	return result.Data, nil
}

// getStatus retrieves the current declaration status
func (sc *simulationClient) getStatus(declarationID string) (*types.DeclarationResponse, error) {
	start := time.Now()

	var result apiEnvelope
	resp, err := sc.client.R().
		SetResult(&result).
		Get("/api/v1/declarations/" + declarationID)
	sc.record("status", start, err != nil || resp.IsError())
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Data, nil
}

// completeDocumentCheck reports the document set complete and compliant
func (sc *simulationClient) completeDocumentCheck(declarationID string) (*types.DeclarationResponse, error) {
	start := time.Now()

	var result apiEnvelope
	resp, err := sc.client.R().
		SetBody(map[string]bool{"complete": true, "compliant": true}).
		SetResult(&result).
		Post("/api/v1/internal/documents/" + declarationID)
	sc.record("document", start, err != nil || resp.IsError())
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("document check failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Data, nil
}

// recordInspection reports a compliant inspection outcome
func (sc *simulationClient) recordInspection(declarationID string) (*types.DeclarationResponse, error) {
	start := time.Now()

	var result apiEnvelope
	resp, err := sc.client.R().
		SetBody(map[string]string{"outcome": "compliant"}).
		SetResult(&result).
		Post("/api/v1/internal/inspections/" + declarationID)
	sc.record("inspect", start, err != nil || resp.IsError())
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("inspection failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Data, nil
}

// confirmPayment confirms the assessed duties in full
func (sc *simulationClient) confirmPayment(declarationID string, amount float64, currency string) (*types.DeclarationResponse, error) {
	start := time.Now()

	var result apiEnvelope
	resp, err := sc.client.R().
		SetBody(map[string]interface{}{"amount": amount, "currency": currency}).
		SetResult(&result).
		Post("/api/v1/internal/payments/" + declarationID)
	sc.record("payment", start, err != nil || resp.IsError())
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("payment failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// randomDeclaration builds a plausible import declaration with 1-3 goods
// items drawn from the pool
func randomDeclaration(workerID, seq int) *types.Declaration {
	dec := &types.Declaration{
		Reference:   fmt.Sprintf("SIM%d-%d-%d", workerID, seq, rand.Intn(1_000_000)),
		Type:        types.TypeImport,
		DeclarantID: brokers[rand.Intn(len(brokers))],
		ConsigneeID: fmt.Sprintf("CNE%03d", rand.Intn(50)),
		Currency:    "EUR",
	}

	numItems := rand.Intn(3) + 1
	for i := 0; i < numItems; i++ {
		goods := goodsPool[rand.Intn(len(goodsPool))]
		qty := float64(rand.Intn(200) + 1)
		value := float64(rand.Intn(20000) + 500)
		dec.Items = append(dec.Items, types.GoodsItem{
			Sequence:    i + 1,
			HSCode:      goods.hsCode,
			Origin:      goods.origin,
			Quantity:    qty,
			Unit:        goods.unit,
			NetWeight:   qty * 0.8,
			GrossWeight: qty,
			Value:       value,
		})
		dec.TotalValue += value
	}
	return dec
}

// main runs the customs clearance simulation
// It starts a local API server and simulates multiple concurrent broker clients
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetDeclarations := rand.Intn(maxDeclarations-minDeclarations) + minDeclarations
	log.Info().Int("target_declarations", targetDeclarations).Msg("Starting simulation")

	// Channel to collect submitted declarations
	submittedChan := make(chan *types.DeclarationResponse, targetDeclarations)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			submitDeclarations(workerID, targetDeclarations/numWorkers, simClient, submittedChan)
		}(i)
	}

	wg.Wait()
	close(submittedChan)

	var submitted []*types.DeclarationResponse
	for resp := range submittedChan {
		submitted = append(submitted, resp)
	}

	log.Info().Int("declarations_submitted", len(submitted)).Msg("All declarations submitted")

	// Collect statistics during processing
	stats := struct {
		Total          int
		Released       int
		FailedChecks   int
		FailedPayments int
		TotalDuties    float64
		StartTime      time.Time
		Channels       map[types.Channel]int
	}{
		StartTime: time.Now(),
		Channels:  make(map[types.Channel]int),
	}
	stats.Total = len(submitted)

	// Drive each declaration through its channel branch to release
	for _, dec := range submitted {
		stats.Channels[dec.Channel]++

		current := dec
		switch dec.State {
		case types.StateAwaitingDocumentCheck:
			current, err = simClient.completeDocumentCheck(dec.DeclarationID)
			if err != nil {
				log.Error().Err(err).Str("declaration_id", dec.DeclarationID).Msg("Failed document check")
				stats.FailedChecks++
				continue
			}
		case types.StateAwaitingInspection, types.StateAwaitingExamination:
			current, err = simClient.recordInspection(dec.DeclarationID)
			if err != nil {
				log.Error().Err(err).Str("declaration_id", dec.DeclarationID).Msg("Failed inspection")
				stats.FailedChecks++
				continue
			}
		}

		if current.State != types.StateAwaitingPayment {
			log.Warn().
				Str("declaration_id", dec.DeclarationID).
				Str("state", string(current.State)).
				Msg("Declaration not awaiting payment, skipping")
			continue
		}

		released, err := simClient.confirmPayment(dec.DeclarationID, current.PayableAmount, current.Currency)
		if err != nil {
			log.Error().Err(err).Str("declaration_id", dec.DeclarationID).Msg("Failed payment")
			stats.FailedPayments++
			continue
		}
		stats.Released++
		stats.TotalDuties += current.PayableAmount

		log.Info().
			Str("declaration_id", dec.DeclarationID).
			Str("channel", string(dec.Channel)).
			Str("state", string(released.State)).
			Float64("duties", current.PayableAmount).
			Msg("Declaration released")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("CUSTOMS CLEARANCE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Declaration Statistics
----------------------
Total Submitted:  %d
Released:         %d
Failed Checks:    %d
Failed Payments:  %d
Duties Collected: %.2f EUR
Duration:         %v

Channel Distribution
--------------------
`, stats.Total, stats.Released, stats.FailedChecks, stats.FailedPayments,
		stats.TotalDuties, duration.Round(time.Millisecond))

	// Print channel distribution with simple ASCII bar chart
	maxChannelCount := 0
	for _, count := range stats.Channels {
		if count > maxChannelCount {
			maxChannelCount = count
		}
	}
	for _, ch := range []types.Channel{types.ChannelGreen, types.ChannelYellow, types.ChannelOrange, types.ChannelRed} {
		count := stats.Channels[ch]
		barLength := 0
		if maxChannelCount > 0 {
			barLength = int(float64(count) / float64(maxChannelCount) * 20)
		}
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-7s: %s (%d)\n", ch, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	successRate := 0.0
	if stats.Total > 0 {
		successRate = float64(stats.Released) / float64(stats.Total) * 100
	}
	log.Info().
		Float64("success_rate", successRate).
		Int("total_declarations", stats.Total).
		Int("released", stats.Released).
		Float64("duties_collected", stats.TotalDuties).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// submitDeclarations generates and submits random declarations to the API
// Runs as a worker goroutine, sending accepted declarations to submittedChan
func submitDeclarations(workerID, numDeclarations int, simClient *simulationClient, submittedChan chan<- *types.DeclarationResponse) {
	for i := 0; i < numDeclarations; i++ {
		dec := randomDeclaration(workerID, i)

		resp, err := simClient.submitDeclaration(dec)
		if err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Str("reference", dec.Reference).
				Msg("Failed to submit declaration")
			continue
		}

		submittedChan <- resp
		log.Info().
			Int("worker_id", workerID).
			Str("declaration_id", resp.DeclarationID).
			Str("channel", string(resp.Channel)).
			Str("state", string(resp.State)).
			Float64("payable", resp.PayableAmount).
			Msg("Declaration submitted")

		// Random sleep between submissions
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}

// startServer initializes and starts the customs API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService("customs-secret-key")
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	reference := risk.NewStaticReference()
	engine := risk.NewEngine(risk.DefaultPolicy(), reference)
	guaranteeService := guarantee.NewService(db)
	documents := clearance.NewMemoryDocumentStore()
	clearanceService := clearance.NewService(db, engine, reference,
		guaranteeService, documents, clearance.LogNotifier{}, nil)
	transitService := transit.NewService(db, guaranteeService, clearanceService)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	clearanceHandlers := clearance.NewGinHandlers(clearanceService, documents)
	guaranteeHandlers := guarantee.NewGinHandlers(guaranteeService)
	transitHandlers := transit.NewGinHandlers(transitService)

	// Setup routes without auth middleware for the simulation
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		declarations := v1.Group("/declarations")
		{
			declarations.POST("", clearanceHandlers.SubmitHandler())
			declarations.GET("/:declaration_id", clearanceHandlers.StatusHandler())
			declarations.GET("/:declaration_id/profile", clearanceHandlers.ProfileHandler())
		}

		internal := v1.Group("/internal")
		{
			internal.POST("/documents/:declaration_id", clearanceHandlers.DocumentCheckHandler())
			internal.POST("/inspections/:declaration_id", clearanceHandlers.InspectionHandler())
			internal.POST("/payments/:declaration_id", clearanceHandlers.PaymentHandler())

			internal.POST("/guarantees", guaranteeHandlers.OpenGuaranteeHandler())
			internal.POST("/transit", transitHandlers.OpenHandler())
			internal.POST("/transit/:movement_id/exit", transitHandlers.ExitHandler())
		}
	}

	// Start the server
	return router.Run(":8080")
}
