package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/prediction"
	"github.com/ErwanAndreo/HospitalAi/simulation"
	"github.com/ErwanAndreo/HospitalAi/store"
)

// DashboardServer pushes live simulation state to WebSocket clients and
// serves the REST endpoints the dashboard polls.
type DashboardServer struct {
	Engine     *simulation.Engine
	Predictor  *prediction.Engine
	Store      store.Store
	clients    map[*websocket.Conn]bool
	broadcast  chan interface{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	logger     *zap.Logger

	updateInterval time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// NewDashboardServer creates a dashboard server
func NewDashboardServer(engine *simulation.Engine, predictor *prediction.Engine,
	st store.Store, logger *zap.Logger) *DashboardServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardServer{
		Engine:         engine,
		Predictor:      predictor,
		Store:          st,
		clients:        make(map[*websocket.Conn]bool),
		broadcast:      make(chan interface{}, 100),
		register:       make(chan *websocket.Conn),
		unregister:     make(chan *websocket.Conn),
		logger:         logger,
		updateInterval: 2 * time.Second,
	}
}

// Start launches the client hub and the update stream
func (ds *DashboardServer) Start() {
	go ds.run()
	go ds.streamUpdates()
	ds.logger.Info("dashboard server started")
}

// run handles client registration/unregistration and broadcasting
func (ds *DashboardServer) run() {
	for {
		select {
		case client := <-ds.register:
			ds.mu.Lock()
			ds.clients[client] = true
			count := len(ds.clients)
			ds.mu.Unlock()
			ds.logger.Info("dashboard client connected", zap.Int("clients", count))

			ds.sendInitialState(client)

		case client := <-ds.unregister:
			ds.mu.Lock()
			if _, ok := ds.clients[client]; ok {
				delete(ds.clients, client)
				client.Close()
			}
			count := len(ds.clients)
			ds.mu.Unlock()
			ds.logger.Info("dashboard client disconnected", zap.Int("clients", count))

		case message := <-ds.broadcast:
			ds.mu.Lock()
			for client := range ds.clients {
				if err := client.WriteJSON(message); err != nil {
					ds.logger.Warn("failed to send to client", zap.Error(err))
					client.Close()
					delete(ds.clients, client)
				}
			}
			ds.mu.Unlock()
		}
	}
}

// streamUpdates periodically sends simulation state to all clients
func (ds *DashboardServer) streamUpdates() {
	ticker := time.NewTicker(ds.updateInterval)
	defer ticker.Stop()

	for range ticker.C {
		ds.broadcast <- ds.buildStateUpdate()
	}
}

// HandleWebSocket upgrades the connection and registers the client
func (ds *DashboardServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ds.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ds.register <- conn

	go ds.handleClientMessages(conn)
}

// handleClientMessages processes commands from one client
func (ds *DashboardServer) handleClientMessages(conn *websocket.Conn) {
	defer func() {
		ds.unregister <- conn
	}()

	for {
		var msg map[string]interface{}
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ds.logger.Warn("failed to read client message", zap.Error(err))
			}
			break
		}

		ds.handleCommand(msg)
	}
}

// handleCommand processes a dashboard command
func (ds *DashboardServer) handleCommand(cmd map[string]interface{}) {
	cmdType, ok := cmd["type"].(string)
	if !ok {
		return
	}

	switch cmdType {
	case "SET_DEMO_MODE":
		enabled, _ := cmd["enabled"].(bool)
		ds.Engine.SetDemoMode(enabled)
		ds.broadcast <- map[string]interface{}{
			"type":    "DEMO_MODE",
			"enabled": enabled,
		}

	case "APPLY_RECOMMENDATION":
		action, _ := cmd["action"].(string)
		applied := ds.Engine.ApplyRecommendationEffect(action)
		ds.broadcast <- map[string]interface{}{
			"type":    "RECOMMENDATION_APPLIED",
			"action":  action,
			"applied": applied,
		}

	case "REQUEST_STATE":
		ds.broadcast <- ds.buildStateUpdate()
	}
}

// buildStateUpdate creates a complete state update
func (ds *DashboardServer) buildStateUpdate() map[string]interface{} {
	return map[string]interface{}{
		"type":      "STATE_UPDATE",
		"timestamp": time.Now().Unix(),
		"metrics":   ds.buildMetrics(),
		"events":    ds.buildActiveEvents(),
		"capacity":  ds.buildCapacity(),
		"demoMode":  ds.Engine.DemoMode(),
	}
}

// buildMetrics flattens the current metric vector for the wire
func (ds *DashboardServer) buildMetrics() map[string]interface{} {
	state := ds.Engine.CurrentMetrics()
	result := make(map[string]interface{}, len(state))
	for _, name := range metrics.AllNames() {
		result[string(name)] = map[string]interface{}{
			"value": state.Get(name),
			"unit":  name.Unit(),
		}
	}
	return result
}

// buildActiveEvents lists the live disruption events
func (ds *DashboardServer) buildActiveEvents() []map[string]interface{} {
	events := make([]map[string]interface{}, 0)
	for _, e := range ds.Engine.ActiveEvents() {
		events = append(events, map[string]interface{}{
			"id":          e.ID,
			"type":        e.Type,
			"startTime":   e.StartTime.Unix(),
			"duration":    int(e.Duration.Minutes()),
			"intensity":   e.Intensity,
			"departments": e.Departments,
			"description": e.Description,
		})
	}
	return events
}

// buildCapacity lists per-department bed utilization
func (ds *DashboardServer) buildCapacity() []map[string]interface{} {
	capacity := make([]map[string]interface{}, 0)
	overview, err := ds.Store.CapacityOverview()
	if err != nil {
		ds.logger.Warn("failed to load capacity overview", zap.Error(err))
		return capacity
	}
	for _, c := range overview {
		capacity = append(capacity, map[string]interface{}{
			"department":  c.Department,
			"totalBeds":   c.TotalBeds,
			"occupied":    c.OccupiedBeds,
			"utilization": c.UtilizationPercent,
		})
	}
	return capacity
}

// sendInitialState sends the complete current state to a new client
func (ds *DashboardServer) sendInitialState(client *websocket.Conn) {
	initialState := map[string]interface{}{
		"type":  "INITIAL_STATE",
		"state": ds.buildStateUpdate(),
	}
	if err := client.WriteJSON(initialState); err != nil {
		ds.logger.Warn("failed to send initial state", zap.Error(err))
	}
}

// MetricsHistory returns historical samples for charting
func (ds *DashboardServer) MetricsHistory(window time.Duration) []map[string]interface{} {
	history := make([]map[string]interface{}, 0)
	for _, name := range metrics.AllNames() {
		for _, sample := range ds.Engine.MetricHistory(name, window) {
			history = append(history, map[string]interface{}{
				"type":  string(name),
				"time":  sample.Timestamp.Unix(),
				"value": sample.Value,
			})
		}
	}
	return history
}

// HTTPHandler provides the REST endpoints
type HTTPHandler struct {
	Server *DashboardServer
}

// NewHTTPHandler creates an HTTP handler
func NewHTTPHandler(server *DashboardServer) *HTTPHandler {
	return &HTTPHandler{Server: server}
}

var promHandler = promhttp.Handler()

// ServeHTTP handles HTTP requests
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Enable CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.URL.Path {
	case "/ws":
		h.Server.HandleWebSocket(w, r)

	case "/api/state":
		h.handleGetState(w, r)

	case "/api/metrics":
		h.handleGetMetrics(w, r)

	case "/api/predictions":
		h.handleGetPredictions(w, r)

	case "/api/transports":
		h.handleGetTransports(w, r)

	case "/api/control":
		h.handleControl(w, r)

	case "/api/export":
		h.handleExport(w, r)

	case "/metrics":
		promHandler.ServeHTTP(w, r)

	default:
		http.NotFound(w, r)
	}
}

func (h *HTTPHandler) handleGetState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Server.buildStateUpdate())
}

func (h *HTTPHandler) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if d, err := time.ParseDuration(r.URL.Query().Get("window")); err == nil && d > 0 {
		window = d
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Server.MetricsHistory(window))
}

func (h *HTTPHandler) handleGetPredictions(w http.ResponseWriter, r *http.Request) {
	batch := h.Server.Predictor.GeneratePredictions()

	result := make([]map[string]interface{}, 0, len(batch))
	for _, p := range batch {
		result = append(result, map[string]interface{}{
			"type":       p.PredictionType,
			"value":      p.PredictedValue,
			"confidence": p.Confidence,
			"horizon":    p.TimeHorizonMinutes,
			"department": p.Department,
			"model":      p.ModelVersion,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) handleGetTransports(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	transports, err := h.Server.Store.ListTransports(status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := make([]map[string]interface{}, 0, len(transports))
	for _, t := range transports {
		entry := map[string]interface{}{
			"id":        t.ID,
			"from":      t.FromLocation,
			"to":        t.ToLocation,
			"priority":  t.Priority,
			"status":    t.Status,
			"estimated": t.EstimatedMinutes,
			"delay":     t.DelayMinutes,
		}
		if t.PlannedStartTime != nil {
			entry["plannedStart"] = t.PlannedStartTime.Unix()
		}
		result = append(result, entry)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cmd map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.Server.handleCommand(cmd)

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok"}`)
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")

	if format == "csv" {
		h.exportCSV(w)
	} else {
		h.exportJSON(w)
	}
}

func (h *HTTPHandler) exportCSV(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=hospital_metrics.csv")

	fmt.Fprintf(w, "Type,Time,Value\n")
	for _, m := range h.Server.MetricsHistory(time.Hour) {
		fmt.Fprintf(w, "%v,%v,%v\n", m["type"], m["time"], m["value"])
	}
}

func (h *HTTPHandler) exportJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=hospital_metrics.json")

	data := map[string]interface{}{
		"metrics": h.Server.MetricsHistory(time.Hour),
		"state":   h.Server.buildStateUpdate(),
	}
	json.NewEncoder(w).Encode(data)
}
