package httpapi

import (
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/bot"
	"github.com/freeeve/chessbot/internal/difficulty"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/movecheck"
)

// RouterConfig configures the HTTP API.
type RouterConfig struct {
	Manager        *bot.Manager
	Remote         movecheck.Validator // multiplayer move service, nil disables /v1/games
	Auth           *Auth
	AllowedOrigins []string // default "*"
	Pprof          bool
	Logger         zerolog.Logger
}

// Handler serves the bot API.
type Handler struct {
	mgr    *bot.Manager
	remote movecheck.Validator
	auth   *Auth
	log    zerolog.Logger
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Auth == nil {
		cfg.Auth = NewAuth("")
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	h := &Handler{
		mgr:    cfg.Manager,
		remote: cfg.Remote,
		auth:   cfg.Auth,
		log:    logx.Component(cfg.Logger, "http"),
	}
	if cfg.Auth.DevMode() {
		h.log.Warn().Msg("no JWT secret configured - trusting X-Player-ID")
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/stats", h.stats).Methods(http.MethodGet)

	api := r.PathPrefix("/v1/bot").Subrouter()
	api.Use(cfg.Auth.Middleware)
	api.HandleFunc("/games", h.createGame).Methods(http.MethodPost)
	api.HandleFunc("/games/{gameId}", h.getGame).Methods(http.MethodGet)
	api.HandleFunc("/games/{gameId}", h.closeGame).Methods(http.MethodDelete)
	api.HandleFunc("/games/{gameId}/move", h.move).Methods(http.MethodPost)
	api.HandleFunc("/games/{gameId}/resign", h.resign).Methods(http.MethodPost)
	api.HandleFunc("/games/{gameId}/ws", h.gameSocket).Methods(http.MethodGet)
	api.HandleFunc("/bestmove", h.bestMove).Methods(http.MethodPost)
	api.HandleFunc("/adaptive", h.adaptive).Methods(http.MethodGet)
	api.HandleFunc("/hints", h.hints).Methods(http.MethodGet)
	api.HandleFunc("/learning", h.resetLearning).Methods(http.MethodDelete)

	if cfg.Remote != nil {
		mp := r.PathPrefix("/v1/games").Subrouter()
		mp.Use(cfg.Auth.Middleware)
		mp.HandleFunc("/{gameId}/move", h.remoteMove).Methods(http.MethodPost)
	}

	if cfg.Pprof {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Player-ID", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(RequestID(AccessLog(cfg.Logger, r)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.mgr.Stats())
}

func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	tier, err := difficulty.ParseTier(req.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	gs, err := h.mgr.CreateGame(r.Context(), PlayerID(r.Context()), tier, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, gs)
}

func (h *Handler) getGame(w http.ResponseWriter, r *http.Request) {
	gs, err := h.mgr.Game(mux.Vars(r)["gameId"], PlayerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, gs)
}

func (h *Handler) closeGame(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.CloseGame(mux.Vars(r)["gameId"], PlayerID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	gs, err := h.mgr.PlayMove(r.Context(), mux.Vars(r)["gameId"], PlayerID(r.Context()), req.uci())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, gs)
}

func (h *Handler) resign(w http.ResponseWriter, r *http.Request) {
	gs, err := h.mgr.Resign(r.Context(), mux.Vars(r)["gameId"], PlayerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, gs)
}

func (h *Handler) bestMove(w http.ResponseWriter, r *http.Request) {
	var req BestMoveRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	tier, err := difficulty.ParseTier(req.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.FEN == "" {
		req.FEN = board.StartFEN
	}
	mv, err := h.mgr.BestMove(r.Context(), PlayerID(r.Context()), bot.Request{FEN: req.FEN, Tier: tier, Moves: req.Moves})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, BestMoveResponse{Move: mv, Fallback: mv == ""})
}

func (h *Handler) adaptive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.mgr.Adaptive(r.Context(), PlayerID(r.Context())))
}

func (h *Handler) hints(w http.ResponseWriter, r *http.Request) {
	var moves []string
	if q := r.URL.Query().Get("moves"); q != "" {
		moves = strings.FieldsFunc(q, func(c rune) bool { return c == ',' || c == ' ' })
	}
	writeJSON(w, h.mgr.Hints(r.Context(), PlayerID(r.Context()), moves))
}

func (h *Handler) resetLearning(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.ResetLearning(r.Context(), PlayerID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// remoteMove forwards a multiplayer move to the move service.
func (h *Handler) remoteMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	mr, err := movecheck.ParseMove(mux.Vars(r)["gameId"], req.uci())
	if err != nil {
		writeError(w, err)
		return
	}
	player := PlayerID(r.Context())
	resp, err := h.remote.Submit(movecheck.WithPlayer(r.Context(), player), mr)
	if err != nil {
		if movecheck.IsRetryable(err) {
			h.log.Warn().Err(err).Str("game", mr.GameID).Str("player", player).Msg("move service failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}
