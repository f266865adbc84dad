// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-lpc/vx1742/producer"
)

type statusResponse struct {
	State  string `json:"state"`
	Run    uint32 `json:"run"`
	Level  string `json:"level"`
	Status string `json:"status"`
}

func newRouter(reg *prometheus.Registry, p *producer.Producer) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := p.Status()
		resp := statusResponse{
			State:  p.State().String(),
			Run:    p.RunNumber(),
			Level:  st.Level.String(),
			Status: st.Msg,
		}
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(resp)
		if err != nil {
			log.Printf("could not encode status: %+v", err)
		}
	}).Methods("GET")
	return router
}

func serveHTTP(ctx context.Context, addr string, reg *prometheus.Registry, p *producer.Producer) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(reg, p),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not serve metrics on %q: %w", addr, err)
	}
	return nil
}
