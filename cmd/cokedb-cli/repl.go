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

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"

	"github.com/BingCoke/CokeDB/embedded/sql"
	"github.com/BingCoke/CokeDB/pkg/client"
)

var (
	promptColor = color.New(color.FgCyan)
	errColor    = color.New(color.FgRed)
	okColor     = color.New(color.FgGreen)
)

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cokedb_history")
}

func runRepl(c *client.Client) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if path := historyPath(); path != "" {
		if f, err := os.Open(path); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(path); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Println("CokeDB shell. Type !help for commands, exit to quit.")

	for {
		prompt := "cokedb> "
		if id, in := c.TxID(); in {
			prompt = fmt.Sprintf("cokedb:%d> ", id)
		}

		input, err := line.Prompt(promptColor.Sprint(prompt))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "exit" || input == "quit" {
			return nil
		}

		if strings.HasPrefix(input, "!") {
			err = runBang(c, input)
		} else {
			err = runStatement(c, input)
		}
		if err != nil {
			errColor.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func runBang(c *client.Client, input string) error {
	fields := strings.Fields(input)

	switch fields[0] {
	case "!help":
		fmt.Println("!tables          list tables")
		fmt.Println("!table <name>    show a table schema")
		fmt.Println("!status          show server status")
		fmt.Println("exit             quit the shell")
		return nil

	case "!tables":
		tables, err := c.ListTables()
		if err != nil {
			return err
		}
		for _, name := range tables {
			fmt.Println(name)
		}
		return nil

	case "!table":
		if len(fields) != 2 {
			return errors.New("usage: !table <name>")
		}
		schema, err := c.GetTable(fields[1])
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"column", "type", "attributes"})
		for _, col := range schema.Columns {
			var attrs []string
			if col.PrimaryKey {
				attrs = append(attrs, "primary key")
			}
			if col.Unique && !col.PrimaryKey {
				attrs = append(attrs, "unique")
			}
			if col.Indexed && !col.PrimaryKey {
				attrs = append(attrs, "indexed")
			}
			if col.Nullable {
				attrs = append(attrs, "nullable")
			}
			if col.Default != "" {
				attrs = append(attrs, "default "+col.Default)
			}
			table.Append([]string{col.Name, col.Type, strings.Join(attrs, ", ")})
		}
		table.Render()
		return nil

	case "!status":
		st, err := c.Status()
		if err != nil {
			return err
		}
		fmt.Printf("transactions: %d, active: %d\n", st.Txns, st.ActiveTxns)
		return nil
	}
	return fmt.Errorf("unknown command %s", fields[0])
}

func runStatement(c *client.Client, input string) error {
	rs, err := c.Execute(input)
	if err != nil {
		return err
	}

	switch rs.Type {
	case sql.ResultQuery:
		renderRows(rs)
	case sql.ResultExplain:
		fmt.Println(rs.Explain)
	case sql.ResultBegin:
		okColor.Printf("transaction %d started\n", rs.TxID)
	case sql.ResultCommit:
		okColor.Printf("transaction %d committed\n", rs.TxID)
	case sql.ResultRollback:
		okColor.Printf("transaction %d rolled back\n", rs.TxID)
	case sql.ResultCreateTable:
		okColor.Printf("table %s created\n", rs.Table)
	case sql.ResultDropTable:
		okColor.Printf("table %s dropped\n", rs.Table)
	default:
		okColor.Printf("%d row(s) affected\n", rs.Count)
	}
	return nil
}

func renderRows(rs *sql.ResultSet) {
	table := tablewriter.NewWriter(os.Stdout)

	header := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		switch {
		case col.Table != "" && col.Name != "":
			header[i] = col.Table + "." + col.Name
		case col.Name != "":
			header[i] = col.Name
		default:
			header[i] = fmt.Sprintf("#%d", i)
		}
	}
	table.SetHeader(header)

	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		table.Append(cells)
	}

	table.Render()
	fmt.Printf("%d row(s)\n", len(rs.Rows))
}
