package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bwise1/sidewalk_atlas/config"
	deps "github.com/bwise1/sidewalk_atlas/internal/debs"
	"github.com/bwise1/sidewalk_atlas/internal/http/overpass"
	"github.com/bwise1/sidewalk_atlas/internal/sidewalk"
	"github.com/bwise1/sidewalk_atlas/util"
	"github.com/bwise1/sidewalk_atlas/util/tracing"
	"github.com/bwise1/sidewalk_atlas/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultIdleTimeout    = time.Minute
	defaultReadTimeout    = 5 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultShutdownPeriod = 30 * time.Second
)

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

// ServerResponse is the envelope every handler returns; Data carries
// the endpoint-specific payload.
type ServerResponse struct {
	Message    string      `json:"message,omitempty"`
	Status     string      `json:"status"`
	StatusCode int         `json:"-"`
	Data       interface{} `json:"data,omitempty"`
}

type API struct {
	Server   *http.Server
	Config   *config.Config
	Deps     *deps.Dependencies
	DB       *pgxpool.Pool
	Store    sidewalk.Store
	Engine   *sidewalk.Engine
	Importer *sidewalk.Importer
	Overpass *overpass.Client
}

func (api *API) Init() {
	api.DB = api.Deps.Pool()
	api.Store = api.Deps.Store
	api.Engine = api.Deps.Engine
	api.Importer = api.Deps.Importer
	api.Overpass = api.Deps.Overpass
}

func (api *API) Serve() error {
	api.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout:  defaultIdleTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		Handler:      api.setUpServerHandler(),
	}
	return api.Server.ListenAndServe()
}

func (api *API) setUpServerHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(RequestTracing)

	mux.Get("/",
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Sidewalk Atlas API"))
		},
	)

	mux.Mount("/sidewalks", api.SidewalkRoutes())

	return mux
}

func (a *API) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownPeriod)
	defer cancel()

	err := a.Server.Shutdown(ctx)
	if err != nil {
		return err
	}
	return nil
}

func respondWithError(err error, message string, status string, tc *tracing.Context) *ServerResponse {
	if err != nil {
		log.Printf("[%s] %s: %v", tc.RequestID, message, err)
	}
	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, status string, message string) {
	if err != nil {
		log.Printf("%s: %v", message, err)
	}
	resp := ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
	respByte, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		http.Error(w, message, http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

func writeJSONResponse(w http.ResponseWriter, body []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Println("unable to write response body:", err)
	}
}
