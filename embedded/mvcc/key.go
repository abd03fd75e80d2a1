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

package mvcc

import (
	"fmt"

	"github.com/BingCoke/CokeDB/embedded/codec"
)

// Keyspace tags. Record entries sort after all transaction bookkeeping.
const (
	tagNextTxnID   byte = 0x01
	tagActiveTxn   byte = 0x02
	tagTxnSnapshot byte = 0x03
	tagTxnUpdate   byte = 0x04
	tagRecord      byte = 0xff
)

func keyNextTxnID() []byte {
	return []byte{tagNextTxnID}
}

func keyActiveTxn(id uint64) []byte {
	return append([]byte{tagActiveTxn}, codec.EncodeUint64(id)...)
}

func keyTxnSnapshot(id uint64) []byte {
	return append([]byte{tagTxnSnapshot}, codec.EncodeUint64(id)...)
}

func keyTxnUpdate(id uint64, recordKey []byte) []byte {
	k := append([]byte{tagTxnUpdate}, codec.EncodeUint64(id)...)
	return append(k, codec.EncodeBytes(recordKey)...)
}

func keyRecord(key []byte, version uint64) []byte {
	k := append([]byte{tagRecord}, codec.EncodeBytes(key)...)
	return append(k, codec.EncodeUint64(version)...)
}

func decodeActiveTxnKey(k []byte) (uint64, error) {
	bs := k
	tag, err := codec.TakeByte(&bs)
	if err != nil {
		return 0, err
	}
	if tag != tagActiveTxn {
		return 0, fmt.Errorf("%w: expected an active txn key, got tag %x", ErrCorruptedKeyspace, tag)
	}
	return codec.TakeUint64(&bs)
}

func decodeTxnUpdateKey(k []byte) (uint64, []byte, error) {
	bs := k
	tag, err := codec.TakeByte(&bs)
	if err != nil {
		return 0, nil, err
	}
	if tag != tagTxnUpdate {
		return 0, nil, fmt.Errorf("%w: expected a txn update key, got tag %x", ErrCorruptedKeyspace, tag)
	}
	id, err := codec.TakeUint64(&bs)
	if err != nil {
		return 0, nil, err
	}
	recordKey, err := codec.TakeBytes(&bs)
	if err != nil {
		return 0, nil, err
	}
	return id, recordKey, nil
}

func decodeRecordKey(k []byte) ([]byte, uint64, error) {
	bs := k
	tag, err := codec.TakeByte(&bs)
	if err != nil {
		return nil, 0, err
	}
	if tag != tagRecord {
		return nil, 0, fmt.Errorf("%w: expected a record key, got tag %x", ErrCorruptedKeyspace, tag)
	}
	key, err := codec.TakeBytes(&bs)
	if err != nil {
		return nil, 0, err
	}
	version, err := codec.TakeUint64(&bs)
	if err != nil {
		return nil, 0, err
	}
	return key, version, nil
}

// Record values carry a liveness marker so a tombstone is distinguishable
// from an empty value.
const (
	recordTombstone byte = 0x00
	recordLive      byte = 0x01
)

func encodeRecordValue(value []byte, tombstone bool) []byte {
	if tombstone {
		return []byte{recordTombstone}
	}
	return append([]byte{recordLive}, value...)
}

func decodeRecordValue(raw []byte) (value []byte, tombstone bool, err error) {
	if len(raw) == 0 {
		return nil, false, fmt.Errorf("%w: empty record value", ErrCorruptedKeyspace)
	}
	switch raw[0] {
	case recordTombstone:
		return nil, true, nil
	case recordLive:
		return raw[1:], false, nil
	}
	return nil, false, fmt.Errorf("%w: invalid record value marker %x", ErrCorruptedKeyspace, raw[0])
}

func encodeTxnSet(ids map[uint64]struct{}) []byte {
	enc := codec.EncodeUint64(uint64(len(ids)))
	for id := range ids {
		enc = append(enc, codec.EncodeUint64(id)...)
	}
	return enc
}

func decodeTxnSet(raw []byte) (map[uint64]struct{}, error) {
	bs := raw
	n, err := codec.TakeUint64(&bs)
	if err != nil {
		return nil, err
	}
	ids := make(map[uint64]struct{}, n)
	for i := uint64(0); i < n; i++ {
		id, err := codec.TakeUint64(&bs)
		if err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}
