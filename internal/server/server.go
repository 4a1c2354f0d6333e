package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type Method string

const (
	GET  Method = "GET"
	POST Method = "POST"
)

// Handler produces the response payload for a route.
type Handler func(r *http.Request) ([]byte, int, error)

type route struct {
	method  Method
	path    string
	exec    Handler
	raw     http.Handler
	rawPath string
}

// Server is the admin http surface of the process.
type Server struct {
	name   string
	port   int
	routes []route
	http   *http.Server
}

func NewServer(name string, port int) *Server {
	return &Server{
		name:   name,
		port:   port,
		routes: make([]route, 0),
	}
}

// AddRoute registers a json handler for the given method and path.
func (s *Server) AddRoute(method Method, path string, exec Handler) *Server {
	s.routes = append(s.routes, route{method: method, path: path, exec: exec})
	return s
}

// Handle mounts a plain http handler, used for the metrics scrape endpoint.
func (s *Server) Handle(path string, h http.Handler) *Server {
	s.routes = append(s.routes, route{rawPath: path, raw: h})
	return s
}

func (s *Server) handle(path string, exec Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		payload, code, err := exec(r)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("request failed")
			if code == 0 || code == http.StatusOK {
				code = http.StatusInternalServerError
			}
			payload, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		if code == 0 {
			code = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if _, err := w.Write(payload); err != nil {
			log.Error().Err(err).Str("path", path).Msg("could not write response")
		}
		log.Debug().
			Str("path", path).
			Int("code", code).
			Float64("ms", float64(time.Since(started).Microseconds())/1000.0).
			Msg("request served")
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	router := mux.NewRouter()
	router.HandleFunc("/live", s.handle("/live", func(r *http.Request) ([]byte, int, error) {
		return []byte(fmt.Sprintf(`{"server":"%s"}`, s.name)), http.StatusOK, nil
	})).Methods(string(GET))
	for _, rt := range s.routes {
		if rt.raw != nil {
			router.Handle(rt.rawPath, rt.raw)
			continue
		}
		router.HandleFunc(rt.path, s.handle(rt.path, rt.exec)).Methods(string(rt.method))
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Info().Str("server", s.name).Int("port", s.port).Msg("starting server")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Reply marshals the value as a json response body.
func Reply(v interface{}) ([]byte, int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return payload, http.StatusOK, nil
}
