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

package sql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DataType enumerates the dynamic types a Value can hold. TypeNull doubles
// as the type of the NULL value; columns are declared with the other four.
type DataType uint8

const (
	TypeNull DataType = iota
	TypeBool
	TypeInteger
	TypeFloat
	TypeString
)

func (t DataType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return "BOOL"
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeString:
		return "STRING"
	}
	return "UNKNOWN"
}

// Value is a tagged scalar. The struct is comparable, so values can be used
// directly as map keys (hash joins).
type Value struct {
	Type DataType
	B    bool
	I    int64
	F    float64
	S    string
}

func NullValue() Value {
	return Value{Type: TypeNull}
}

func BoolValue(b bool) Value {
	return Value{Type: TypeBool, B: b}
}

func IntegerValue(i int64) Value {
	return Value{Type: TypeInteger, I: i}
}

func FloatValue(f float64) Value {
	return Value{Type: TypeFloat, F: f}
}

func StringValue(s string) Value {
	return Value{Type: TypeString, S: s}
}

func (v Value) IsNull() bool {
	return v.Type == TypeNull
}

func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeBool:
		if v.B {
			return "TRUE"
		}
		return "FALSE"
	case TypeInteger:
		return strconv.FormatInt(v.I, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case TypeString:
		return v.S
	}
	return "?"
}

// typeRank places values on the global ordering axis:
// Null < Bool < Integer/Float < String.
func (v Value) typeRank() int {
	switch v.Type {
	case TypeNull:
		return 0
	case TypeBool:
		return 1
	case TypeInteger, TypeFloat:
		return 2
	case TypeString:
		return 3
	}
	return 4
}

func (v Value) asFloat() float64 {
	if v.Type == TypeInteger {
		return float64(v.I)
	}
	return v.F
}

// Compare imposes the total order used for sorting and grouping. All NULLs
// compare equal to each other; integers and floats compare numerically.
func (v Value) Compare(o Value) int {
	ra, rb := v.typeRank(), o.typeRank()
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch v.Type {
	case TypeNull:
		return 0
	case TypeBool:
		switch {
		case v.B == o.B:
			return 0
		case !v.B:
			return -1
		}
		return 1
	case TypeInteger, TypeFloat:
		if v.Type == TypeInteger && o.Type == TypeInteger {
			switch {
			case v.I == o.I:
				return 0
			case v.I < o.I:
				return -1
			}
			return 1
		}
		fa, fb := v.asFloat(), o.asFloat()
		switch {
		case fa == fb:
			return 0
		case fa < fb:
			return -1
		}
		return 1
	case TypeString:
		return strings.Compare(v.S, o.S)
	}
	return 0
}

type jsonValue struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// MarshalJSON keeps the wire form self-describing so a row round-trips all
// Value variants.
func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{}
	switch v.Type {
	case TypeNull:
		jv.Type = "null"
	case TypeBool:
		jv.Type = "bool"
		jv.Value = v.B
	case TypeInteger:
		jv.Type = "integer"
		jv.Value = v.I
	case TypeFloat:
		jv.Type = "float"
		jv.Value = v.F
	case TypeString:
		jv.Type = "string"
		jv.Value = v.S
	default:
		return nil, fmt.Errorf("%w: unknown value type %d", ErrUnexpected, v.Type)
	}
	return json.Marshal(jv)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	err := dec.Decode(&jv)
	if err != nil {
		return err
	}

	switch jv.Type {
	case "null":
		*v = NullValue()
	case "bool":
		b, ok := jv.Value.(bool)
		if !ok {
			return fmt.Errorf("%w: invalid bool value", ErrCorruptedData)
		}
		*v = BoolValue(b)
	case "integer":
		n, ok := jv.Value.(json.Number)
		if !ok {
			return fmt.Errorf("%w: invalid integer value", ErrCorruptedData)
		}
		i, err := n.Int64()
		if err != nil {
			return err
		}
		*v = IntegerValue(i)
	case "float":
		n, ok := jv.Value.(json.Number)
		if !ok {
			return fmt.Errorf("%w: invalid float value", ErrCorruptedData)
		}
		f, err := n.Float64()
		if err != nil {
			return err
		}
		*v = FloatValue(f)
	case "string":
		s, ok := jv.Value.(string)
		if !ok {
			return fmt.Errorf("%w: invalid string value", ErrCorruptedData)
		}
		*v = StringValue(s)
	default:
		return fmt.Errorf("%w: unknown value type %q", ErrCorruptedData, jv.Type)
	}
	return nil
}

// Row is an ordered tuple of values, one per output column.
type Row []Value
