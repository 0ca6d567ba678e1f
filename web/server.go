/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package web serves the sample members over HTTP with gorilla/mux.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/znxmin/data-jpa/domain"
	"github.com/znxmin/data-jpa/gateway"
	"github.com/znxmin/data-jpa/projection"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
	"github.com/znxmin/data-jpa/utils"
)

type Server struct {
	members *domain.MemberRepository
	logger  *logrus.Logger
	router  *mux.Router
}

func NewServer(members *domain.MemberRepository) *Server {
	s := &Server{
		members: members,
		logger:  utils.NewLogger("web"),
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestLogger)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/members/{id:[0-9]+}", s.findMember).Methods(http.MethodGet)
	s.router.HandleFunc("/members", s.listMemberDto).Methods(http.MethodGet)
	s.router.HandleFunc("/members-old", s.listMembers).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then drains open
// requests for up to five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// findMember answers with the bare username.
func (s *Server) findMember(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	member, err := s.members.FindOneBy(r.Context(), "findById", id)
	if err != nil {
		s.writeError(w, r, statusOf(err), err)
		return
	}
	if member == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("member not found"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(member.Username))
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r, 5, types.Desc("username"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	page, err := s.members.Page(r.Context(), req)
	if err != nil {
		s.writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// listMemberDto pages members as DTOs. The closed projection fetches the
// team with the page instead of once per member.
func (s *Server) listMemberDto(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r, 20)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	var views *types.Page[types.Row]
	err = s.members.Gateway().WithSession(r.Context(), func(ctx context.Context, sess *gateway.Session) error {
		var err error
		views, err = sess.PageProjected(ctx, query.New("Member", nil), req, domain.MemberDtoView)
		return err
	})
	if err != nil {
		s.writeError(w, r, statusOf(err), err)
		return
	}
	page, err := projection.IntoPage[domain.MemberDto](views)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidPageRequest),
		errors.Is(err, query.ErrUnknownField),
		errors.Is(err, query.ErrInvalidArguments),
		errors.Is(err, registry.ErrUnresolvedRelation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.WithField("req_uri", r.RequestURI).WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
