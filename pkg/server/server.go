/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package server exposes a SQL engine over TCP. Each connection gets its
// own session; frames are length-prefixed JSON requests and responses.
package server

import (
	"errors"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/BingCoke/CokeDB/embedded/kvstore"
	"github.com/BingCoke/CokeDB/embedded/sql"
	"github.com/BingCoke/CokeDB/pkg/logger"
)

var ErrAlreadyRunning = errors.New("server already running")

type Server struct {
	opts    *Options
	engine  *sql.Engine
	log     logger.Logger
	metrics *metrics

	uuid uuid.UUID

	mu         sync.Mutex
	listener   net.Listener
	metricsSrv *http.Server
	sessions   map[string]*session
	quit       chan struct{}
	wg         sync.WaitGroup
}

func (s *Server) addSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = map[string]*session{}
	}
	s.sessions[sess.id] = sess
}

func (s *Server) removeSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
}

// New creates a server around a fresh in-memory store.
func New(opts *Options) (*Server, error) {
	return NewWithStore(opts, kvstore.NewMemStore())
}

func NewWithStore(opts *Options, store kvstore.Store) (*Server, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	engine, err := sql.NewEngine(store)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewSimpleLogger("cokedb", os.Stderr)
	}

	return &Server{
		opts:    opts,
		engine:  engine,
		log:     log,
		metrics: newMetrics(),
		uuid:    uuid.New(),
	}, nil
}

func (s *Server) Engine() *sql.Engine {
	return s.engine
}

// Addr returns the bound listen address once the server started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves connections until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.opts.Bind())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.quit = make(chan struct{})

	if s.opts.MetricsPort > 0 {
		s.metricsSrv = s.metrics.serve(s.opts.MetricsBind())
	}
	s.mu.Unlock()

	s.log.Infof("server %s listening on %s", s.uuid, listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.log.Errorf("accept failed: %v", err)
				return
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(s, conn)
	s.addSession(sess)
	defer s.removeSession(sess)
	defer sess.close()

	s.metrics.connectedClients.Inc()
	defer s.metrics.connectedClients.Dec()

	s.log.Infof("client %s connected from %s", sess.id, conn.RemoteAddr())
	sess.serve()
	s.log.Infof("client %s disconnected", sess.id)
}

// Stop closes the listener and waits for in-flight sessions to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	listener := s.listener
	metricsSrv := s.metricsSrv
	s.listener = nil
	s.metricsSrv = nil
	if s.quit != nil {
		close(s.quit)
	}
	for _, sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	if listener == nil {
		return nil
	}

	err := listener.Close()
	if metricsSrv != nil {
		metricsSrv.Close()
	}

	s.wg.Wait()
	return err
}
