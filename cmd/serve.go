package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"metroplan.dev/metro"
	"metroplan.dev/metro/parse"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the itinerary API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var addr string

func init() {
	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Address to listen on")
}

type server struct {
	planner *metro.Planner
	client  *metro.Client
}

func serve(cmd *cobra.Command, args []string) error {
	planner, client, err := LoadPlanner(context.Background())
	if err != nil {
		return err
	}

	s := &server{planner: planner, client: client}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/route/{origin}/{destination}", s.handleRoute)
	mux.HandleFunc("POST /api/itinerary/process", s.handleProcess)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	log.Infof("listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// GET /api/route/{origin}/{destination} fetches both legs upstream
// and replies with the assembled itinerary.
func (s *server) handleRoute(w http.ResponseWriter, r *http.Request) {
	origin := r.PathValue("origin")
	destination := r.PathValue("destination")

	primary, err := s.client.RouteInfo(r.Context(), origin, destination)
	if err != nil {
		if errors.Is(err, metro.ErrSameStation) || errors.Is(err, metro.ErrBadStationCode) {
			s.replyError(w, "route", http.StatusBadRequest, err)
			return
		}
		upstreamErrorsTotal.Inc()
		s.replyError(w, "route", http.StatusBadGateway, err)
		return
	}

	var transfer *parse.Payload
	if primary.Trip.Transfer {
		transferStation := s.planner.TransferStationFor(primary)
		if transferStation != "" {
			transfer, err = s.client.RouteInfo(r.Context(), transferStation, destination)
			if err != nil {
				// Degraded assembly beats a failed request.
				upstreamErrorsTotal.Inc()
				log.Warnf("fetching transfer leg %s-%s: %s", transferStation, destination, err)
				transfer = nil
			}
		}
	}

	s.assembleAndReply(w, "route", primary, transfer)
}

type processRequest struct {
	Data         json.RawMessage `json:"data"`
	TransferData json.RawMessage `json:"transferData"`
}

// POST /api/itinerary/process assembles an itinerary from payloads
// the caller already holds, without touching the upstream API.
func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req := processRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.replyError(w, "process", http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if len(req.Data) == 0 {
		s.replyError(w, "process", http.StatusBadRequest, metro.ErrMissingPayload)
		return
	}

	primary, err := parse.ParsePayload(req.Data)
	if err != nil {
		s.replyError(w, "process", http.StatusUnprocessableEntity, err)
		return
	}

	var transfer *parse.Payload
	if len(req.TransferData) > 0 {
		transfer, err = parse.ParsePayload(req.TransferData)
		if err != nil {
			s.replyError(w, "process", http.StatusUnprocessableEntity, err)
			return
		}
	}

	s.assembleAndReply(w, "process", primary, transfer)
}

func (s *server) assembleAndReply(w http.ResponseWriter, endpoint string, primary, transfer *parse.Payload) {
	started := time.Now()
	result, err := s.planner.Assemble(primary, transfer, time.Now())
	assembleDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		s.replyError(w, endpoint, http.StatusBadRequest, err)
		return
	}

	s.reply(w, endpoint, http.StatusOK, result)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.reply(w, "health", http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) reply(w http.ResponseWriter, endpoint string, status int, body interface{}) {
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("encoding response: %s", err)
	}
}

func (s *server) replyError(w http.ResponseWriter, endpoint string, status int, err error) {
	log.Debugf("%s: %s", endpoint, err)
	s.reply(w, endpoint, status, map[string]string{"error": err.Error()})
}
