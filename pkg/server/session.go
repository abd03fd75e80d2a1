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

package server

import (
	"errors"
	"io"
	"net"

	"github.com/rs/xid"

	"github.com/BingCoke/CokeDB/embedded/sql"
	"github.com/BingCoke/CokeDB/pkg/api"
)

// session serves one client connection with its own SQL session, so
// transaction state stays per connection.
type session struct {
	id   string
	srv  *Server
	conn net.Conn
	sql  *sql.Session
}

func newSession(srv *Server, conn net.Conn) *session {
	return &session{
		id:   xid.New().String(),
		srv:  srv,
		conn: conn,
		sql:  srv.engine.NewSession(),
	}
}

// close rolls back any transaction the client abandoned.
func (s *session) close() {
	err := s.sql.Close()
	if err != nil && !errors.Is(err, sql.ErrTxAlreadyEnded) {
		s.srv.log.Warningf("client %s: rollback on close failed: %v", s.id, err)
	}
	s.conn.Close()
}

func (s *session) serve() {
	for {
		var req api.Request

		err := api.ReadFrame(s.conn, &req)
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			s.srv.log.Warningf("client %s: bad frame: %v", s.id, err)
			return
		}

		resp := s.handle(&req)

		err = api.WriteFrame(s.conn, resp)
		if err != nil {
			s.srv.log.Warningf("client %s: write failed: %v", s.id, err)
			return
		}
	}
}

func (s *session) handle(req *api.Request) *api.Response {
	s.srv.metrics.requestCounter.WithLabelValues(string(req.Type)).Inc()

	resp, err := s.dispatch(req)
	if err != nil {
		wireErr := api.ErrorFrom(err)
		s.srv.metrics.errorCounter.WithLabelValues(wireErr.Kind).Inc()
		return &api.Response{Type: api.ResponseError, Error: wireErr}
	}
	return resp
}

func (s *session) dispatch(req *api.Request) (*api.Response, error) {
	switch req.Type {
	case api.RequestExecute:
		rs, err := s.sql.Execute(req.SQL)
		if err != nil {
			return nil, err
		}
		return &api.Response{Type: api.ResponseResult, Result: rs}, nil

	case api.RequestListTables:
		tables, err := s.srv.engine.ListTables()
		if err != nil {
			return nil, err
		}
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.Name
		}
		return &api.Response{Type: api.ResponseTableList, Tables: names}, nil

	case api.RequestGetTable:
		t, err := s.srv.engine.CatalogTable(req.Table)
		if err != nil {
			return nil, err
		}
		return &api.Response{Type: api.ResponseSchema, Schema: api.SchemaFrom(t)}, nil

	case api.RequestStatus:
		st, err := s.srv.engine.Status()
		if err != nil {
			return nil, err
		}
		return &api.Response{
			Type:   api.ResponseStatus,
			Status: &api.Status{Txns: st.Txns, ActiveTxns: st.ActiveTxns},
		}, nil
	}
	return nil, errors.New("unknown request type")
}
