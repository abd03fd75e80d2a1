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

// Package client implements the CokeDB wire protocol. A client owns one
// connection and therefore one server-side session.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/BingCoke/CokeDB/embedded/sql"
	"github.com/BingCoke/CokeDB/pkg/api"
)

var ErrUnexpectedResponse = errors.New("unexpected response")

type Client struct {
	mu   sync.Mutex
	conn net.Conn

	// open transaction id, tracked from begin/commit/rollback results
	txID uint64
	inTx bool
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// TxID reports the transaction currently open on this connection.
func (c *Client) TxID() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txID, c.inTx
}

func (c *Client) call(req *api.Request) (*api.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := api.WriteFrame(c.conn, req)
	if err != nil {
		return nil, err
	}

	var resp api.Response
	err = api.ReadFrame(c.conn, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Type == api.ResponseError {
		return nil, resp.Error
	}
	return &resp, nil
}

// Execute runs one SQL statement on the server.
func (c *Client) Execute(sqlText string) (*sql.ResultSet, error) {
	resp, err := c.call(&api.Request{Type: api.RequestExecute, SQL: sqlText})
	if err != nil {
		return nil, err
	}
	if resp.Type != api.ResponseResult || resp.Result == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Type)
	}

	c.mu.Lock()
	switch resp.Result.Type {
	case sql.ResultBegin:
		c.txID, c.inTx = resp.Result.TxID, true
	case sql.ResultCommit, sql.ResultRollback:
		c.txID, c.inTx = 0, false
	}
	c.mu.Unlock()

	return resp.Result, nil
}

func (c *Client) ListTables() ([]string, error) {
	resp, err := c.call(&api.Request{Type: api.RequestListTables})
	if err != nil {
		return nil, err
	}
	if resp.Type != api.ResponseTableList {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Type)
	}
	return resp.Tables, nil
}

func (c *Client) GetTable(name string) (*api.TableSchema, error) {
	resp, err := c.call(&api.Request{Type: api.RequestGetTable, Table: name})
	if err != nil {
		return nil, err
	}
	if resp.Type != api.ResponseSchema || resp.Schema == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Type)
	}
	return resp.Schema, nil
}

func (c *Client) Status() (*api.Status, error) {
	resp, err := c.call(&api.Request{Type: api.RequestStatus})
	if err != nil {
		return nil, err
	}
	if resp.Type != api.ResponseStatus || resp.Status == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Type)
	}
	return resp.Status, nil
}
