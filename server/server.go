// Package server exposes the agent network over HTTP: a chat endpoint,
// a websocket event stream per session, and catalog listings. Auth is a
// static bearer-token check; anything fancier belongs in front of this
// service.
package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/deanmachines/foundry/memory"
	"github.com/deanmachines/foundry/network"
	"github.com/deanmachines/foundry/pubsub"
	"github.com/go-openapi/swag"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	defaultMaxTurns     = 10
	defaultHistoryLimit = 50
	maxBodyBytes        = 1 << 20
)

// Options configures the HTTP API. Network is required; everything else
// has a working default.
type Options struct {
	Log          zerolog.Logger
	Network      *network.Network
	Memory       memory.Store
	Broker       pubsub.Broker[string]
	AuthTokens   []string
	CORSOrigins  []string
	MaxTurns     int
	HistoryLimit int
}

// Server is the HTTP front for a single agent network.
type Server struct {
	log          zerolog.Logger
	network      *network.Network
	memory       memory.Store
	broker       pubsub.Broker[string]
	validate     *validator.Validate
	authTokens   []string
	corsOrigins  []string
	maxTurns     int
	historyLimit int
	upgrader     websocket.Upgrader
	handler      http.Handler
}

// New builds the server and its route table. It panics when no network
// is provided.
func New(options Options) *Server {
	if options.Network == nil {
		panic("server: a network is required")
	}

	s := &Server{
		log:          options.Log,
		network:      options.Network,
		memory:       options.Memory,
		broker:       options.Broker,
		validate:     validator.New(),
		authTokens:   options.AuthTokens,
		corsOrigins:  options.CORSOrigins,
		maxTurns:     options.MaxTurns,
		historyLimit: options.HistoryLimit,
	}
	if s.memory == nil {
		s.memory = memory.NewInMem()
	}
	if s.broker == nil {
		s.broker = pubsub.Local[string]()
	}
	if s.maxTurns <= 0 {
		s.maxTurns = defaultMaxTurns
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.originAllowed,
	}

	s.routes()
	return s
}

// Handler returns the fully wrapped route table.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.auth)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/chat/stream", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/agents", s.handleAgents).Methods(http.MethodGet)
	api.HandleFunc("/tools", s.handleTools).Methods(http.MethodGet)

	chain := hlog.NewHandler(s.log)(
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		})(s.cors(r)),
	)
	s.handler = chain
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type agentInfo struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	roster := s.network.Agents()
	agents := make([]agentInfo, 0, len(roster))
	for _, member := range roster {
		agents = append(agents, agentInfo{
			Name:      member.Name(),
			Specialty: s.network.SpecialtyOf(member.Name()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"network": s.network.Name(),
		"agents":  agents,
	})
}

type toolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Agents      []string `json:"agents"`
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	byName := make(map[string]*toolInfo)
	for _, member := range s.network.Agents() {
		for _, def := range member.Tools() {
			info, ok := byName[def.Name]
			if !ok {
				info = &toolInfo{Name: def.Name, Description: def.Description}
				byName[def.Name] = info
			}
			info.Agents = append(info.Agents, member.Name())
		}
	}

	tools := make([]toolInfo, 0, len(byName))
	for _, info := range byName {
		tools = append(tools, *info)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

type apiError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := swag.WriteJSON(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed","code":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg, details string) {
	writeJSON(w, status, apiError{Error: msg, Code: code, Details: details})
}
